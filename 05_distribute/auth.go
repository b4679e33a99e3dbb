package distribute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
)

// TokenStore persists the OAuth token between runs
type TokenStore struct {
	path string
}

// Load returns the stored token, or nil when none exists yet
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", s.path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", s.path, err)
	}
	return &tok, nil
}

// Save writes tok atomically with owner-only permissions
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("save token %s: %w", s.path, err)
	}
	return nil
}

// Authorizer produces an authenticated HTTP client for the YouTube API
type Authorizer struct {
	secretsFile string
	store       *TokenStore
	// notify receives the consent URL during the interactive flow
	notify func(ctx context.Context, authURL string)
}

// NewAuthorizer creates an Authorizer from configuration
func NewAuthorizer(cfg config.DistributionConfig) *Authorizer {
	return &Authorizer{
		secretsFile: cfg.ClientSecretsFile,
		store:       &TokenStore{path: cfg.TokenFile},
		notify: func(ctx context.Context, authURL string) {
			logger := logging.Component(ctx, "distribute")
			logger.Warn().Str("url", authURL).Msg("open this URL in a browser to authorize uploads")
		},
	}
}

// Client reuses a valid stored token, refreshes an expired one, and otherwise
// runs the browser consent flow once. New tokens are persisted.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	logger := logging.Component(ctx, "distribute")

	secrets, err := os.ReadFile(a.secretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(secrets, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	stored, err := a.store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable token")
		stored = nil
	}

	if stored != nil && (stored.Valid() || stored.RefreshToken != "") {
		fresh, err := conf.TokenSource(ctx, stored).Token()
		if err == nil {
			if fresh.AccessToken != stored.AccessToken {
				logger.Info().Msg("token refreshed")
				if err := a.store.Save(fresh); err != nil {
					logger.Warn().Err(err).Msg("could not persist refreshed token")
				}
			}
			return conf.Client(ctx, fresh), nil
		}
		logger.Warn().Err(err).Msg("token refresh failed, starting consent flow")
	}

	tok, err := a.consent(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(tok); err != nil {
		return nil, err
	}
	return conf.Client(ctx, tok), nil
}

// consent runs the installed-app flow with a loopback redirect on a random port
func (a *Authorizer) consent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("consent listener: %w", err)
	}

	conf := *base
	conf.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	codes := make(chan string, 1)
	failures := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			if e := q.Get("error"); e != "" {
				http.Error(w, "authorization denied", http.StatusForbidden)
				select {
				case failures <- fmt.Errorf("consent denied: %s", e):
				default:
				}
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			select {
			case codes <- code:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	a.notify(ctx, conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codes:
		tok, err := conf.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	case err := <-failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
