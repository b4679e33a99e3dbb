// Package workspace owns the per-run scratch directory that stages write
// audio and download files into.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Workspace is one run's scratch directory under a shared root.
type Workspace struct {
	dir string
}

// New creates <root>/<runID>.
func New(root, runID string) (*Workspace, error) {
	if runID == "" {
		return nil, fmt.Errorf("workspace: empty run id")
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return &Workspace{dir: dir}, nil
}

// Path joins name onto the run directory; Path("") is the directory itself.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteFile writes data to name inside the run directory and returns the full path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// SaveJSON writes v as indented JSON, replacing name atomically.
func (w *Workspace) SaveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	pending, err := renameio.NewPendingFile(w.Path(name))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", name, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// Prune deletes every file in the run directory except the named ones.
// With no names the directory itself is removed.
func (w *Workspace) Prune(keep ...string) error {
	if len(keep) == 0 {
		return os.RemoveAll(w.dir)
	}
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read workspace %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if kept[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return fmt.Errorf("prune %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Confine resolves a slash separated key under root, rejecting traversal.
func Confine(root, key string) (string, error) {
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(cleanRoot, filepath.FromSlash(key))
	if target != cleanRoot && !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key %q: path traversal detected", key)
	}
	return target, nil
}
