package mono

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/certs"
	"github.com/Veraticus/spendwise/internal/common"
)

const testKey = "test_pk_abc123"

func TestNewLinkServerRequiresKey(t *testing.T) {
	_, err := NewLinkServer("")
	require.ErrorIs(t, err, common.ErrMissingConfig)
	assert.Equal(t, NotConfiguredMessage, common.UserMessage(err))
}

func TestPageEmbedsKeyAndScript(t *testing.T) {
	s, err := NewLinkServer(testKey)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), ConnectScriptURL)
	assert.Contains(t, string(body), `"`+testKey+`"`)

	missing, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestExchangeDeliversCode(t *testing.T) {
	s, err := NewLinkServer(testKey)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/exchange", "application/json", strings.NewReader(`{"code":"code_xyz"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A second callback cannot replace the first outcome.
	resp, err = http.Post(srv.URL+"/close", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "code_xyz", code)
}

func TestCloseAndBadRequests(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		path    string
		body    string
	}{
		{name: "closed", path: "/close", wantErr: ErrClosed},
		{name: "empty code", path: "/exchange", body: `{"code":""}`, wantErr: ErrNoCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewLinkServer(testKey)
			require.NoError(t, err)
			srv := httptest.NewServer(s.Handler())
			defer srv.Close()

			resp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err = s.Wait(ctx)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWaitHonorsContext(t *testing.T) {
	s, err := NewLinkServer(testKey)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartServesOverTLS(t *testing.T) {
	cert, err := certs.NewStore(filepath.Join(t.TempDir(), "certs")).Certificate()
	require.NoError(t, err)

	s, err := NewLinkServer(testKey, WithTLS(cert))
	require.NoError(t, err)
	url, err := s.Start()
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()
	require.True(t, strings.HasPrefix(url, "https://localhost:"))

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}}
	resp, err := client.Post(url+"exchange", "application/json", strings.NewReader(`{"code":"code_tls"}`))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "code_tls", code)
}

func TestRunAnnouncesAndReturnsCode(t *testing.T) {
	s, err := NewLinkServer(testKey)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := s.Run(ctx, func(url string) {
		resp, postErr := http.Post(url+"exchange", "application/json", strings.NewReader(`{"code":"code_xyz"}`))
		require.NoError(t, postErr)
		_ = resp.Body.Close()
	})
	require.NoError(t, err)
	assert.Equal(t, "code_xyz", code)
}
