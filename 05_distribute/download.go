package distribute

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/renameio/v2"
)

// minVideoBytes guards against saving an HTML error page as the video
const minVideoBytes = 100

type downloader struct {
	httpClient *http.Client
}

// download streams url into path, replacing it atomically
func (d *downloader) download(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "autovid-pipeline/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d", ErrDownload, resp.StatusCode)
	}

	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Cleanup()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if n < minVideoBytes {
		return 0, fmt.Errorf("%w: response too small (%d bytes)", ErrDownload, n)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	return n, nil
}
