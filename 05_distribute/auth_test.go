package distribute

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"autovid-pipeline/config"
)

// tokenServer is a fake OAuth token endpoint that issues access-<n> tokens
func tokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"access-%d","token_type":"Bearer","refresh_token":"refresh-%s","expires_in":3600}`,
			n, r.Form.Get("grant_type"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newAuthorizer(t *testing.T, tokenURL string) (*Authorizer, string) {
	t.Helper()
	dir := t.TempDir()
	secrets := filepath.Join(dir, "client_secret.json")
	require.NoError(t, os.WriteFile(secrets, []byte(fmt.Sprintf(`{"installed":{
		"client_id":"cid","client_secret":"csecret",
		"auth_uri":"https://accounts.example/auth","token_uri":%q,
		"redirect_uris":["http://localhost"]}}`, tokenURL)), 0o600))

	tokenFile := filepath.Join(dir, "token.json")
	a := NewAuthorizer(config.DistributionConfig{ClientSecretsFile: secrets, TokenFile: tokenFile})
	return a, tokenFile
}

func TestAuthorizer_ReusesValidToken(t *testing.T) {
	srv, calls := tokenServer(t)
	a, _ := newAuthorizer(t, srv.URL)
	require.NoError(t, a.store.Save(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}))

	client, err := a.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Zero(t, calls.Load())
}

func TestAuthorizer_RefreshesAndPersists(t *testing.T) {
	srv, calls := tokenServer(t)
	a, _ := newAuthorizer(t, srv.URL)
	require.NoError(t, a.store.Save(&oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}))

	_, err := a.Client(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	saved, err := a.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", saved.AccessToken)
}

func TestAuthorizer_ConsentFlowOnce(t *testing.T) {
	srv, calls := tokenServer(t)
	a, tokenFile := newAuthorizer(t, srv.URL)

	a.notify = func(_ context.Context, authURL string) {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "offline", q.Get("access_type"))

		redirect := q.Get("redirect_uri") + "?code=abc&state=" + url.QueryEscape(q.Get("state"))
		resp, err := http.Get(redirect)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Client(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	a.notify = func(context.Context, string) { t.Fatal("consent must not run again") }
	_, err = a.Client(ctx)
	require.NoError(t, err)
}

func TestAuthorizer_ConsentRejectsWrongState(t *testing.T) {
	srv, _ := tokenServer(t)
	a, _ := newAuthorizer(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	a.notify = func(_ context.Context, authURL string) {
		u, _ := url.Parse(authURL)
		resp, err := http.Get(u.Query().Get("redirect_uri") + "?code=abc&state=forged")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	_, err := a.Client(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAuthorizer_MissingSecrets(t *testing.T) {
	a := NewAuthorizer(config.DistributionConfig{ClientSecretsFile: filepath.Join(t.TempDir(), "nope.json")})

	_, err := a.Client(context.Background())
	assert.ErrorContains(t, err, "client secrets")
}
