// Package mono runs the Mono Connect widget on a local page so a terminal
// user can authorize a bank account and hand the resulting code to the backend.
package mono

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/Veraticus/spendwise/internal/common"
)

// ConnectScriptURL is the hosted Mono Connect widget.
const ConnectScriptURL = "https://connect.withmono.com/connect.js"

// DefaultAddr listens on a random loopback port.
const DefaultAddr = "127.0.0.1:0"

// Errors returned by Wait.
var (
	ErrClosed = errors.New("bank connection window was closed")
	ErrNoCode = errors.New("widget returned no authorization code")
)

// NotConfiguredMessage is shown when no public key is configured.
const NotConfiguredMessage = "Mono Connect is not configured. Please contact support."

// LinkServer serves the widget page and waits for its authorization code.
type LinkServer struct {
	cert     *tls.Certificate
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
	results  chan result
	page     *template.Template
	key      string
	addr     string
	once     sync.Once
}

type result struct {
	err  error
	code string
}

// Option configures a LinkServer.
type Option func(*LinkServer)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *LinkServer) {
		s.addr = addr
	}
}

// WithTLS serves the page over HTTPS with cert.
func WithTLS(cert tls.Certificate) Option {
	return func(s *LinkServer) {
		s.cert = &cert
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LinkServer) {
		s.logger = logger
	}
}

// NewLinkServer prepares a page for publicKey. An empty key is a configuration error.
func NewLinkServer(publicKey string, opts ...Option) (*LinkServer, error) {
	if publicKey == "" {
		return nil, common.NewUserError(NotConfiguredMessage, common.ErrMissingConfig)
	}
	s := &LinkServer{
		key:     publicKey,
		addr:    DefaultAddr,
		results: make(chan result, 1),
		page:    template.Must(template.New("link").Parse(linkPage)),
		logger:  slog.Default().With("component", "mono"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the page and callback routes.
func (s *LinkServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.HandleFunc("POST /exchange", s.exchange)
	mux.HandleFunc("POST /close", s.closed)
	return mux
}

// Start listens and serves in the background. It returns the page URL.
func (s *LinkServer) Start() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheme := "http"
	if s.cert != nil {
		scheme = "https"
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*s.cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	go func() {
		var serveErr error
		if s.cert != nil {
			serveErr = s.server.ServeTLS(ln, "", "")
		} else {
			serveErr = s.server.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.deliver(result{err: fmt.Errorf("link server failed: %w", serveErr)})
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("%s://localhost:%d/", scheme, port)
	s.logger.Info("Bank link page ready", "url", url)
	return url, nil
}

// Wait blocks until the widget reports a code, the page is closed or ctx ends.
func (s *LinkServer) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.results:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops the server.
func (s *LinkServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Run starts the server, passes the page URL to announce and waits for the
// widget. The server is shut down before Run returns.
func (s *LinkServer) Run(ctx context.Context, announce func(url string)) (string, error) {
	url, err := s.Start()
	if err != nil {
		return "", err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Debug("Link server shutdown failed", "error", err)
		}
	}()

	if announce != nil {
		announce(url)
	}
	return s.Wait(ctx)
}

// deliver keeps the first outcome only.
func (s *LinkServer) deliver(r result) {
	s.once.Do(func() {
		s.results <- r
	})
}

func (s *LinkServer) servePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.page.Execute(w, struct {
		Script string
		Key    string
	}{Script: ConnectScriptURL, Key: s.key})
	if err != nil {
		s.logger.Warn("Failed to render link page", "error", err)
	}
}

func (s *LinkServer) exchange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request"})
		return
	}
	if body.Code == "" {
		s.deliver(result{err: ErrNoCode})
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Missing code"})
		return
	}

	s.logger.Debug("Received authorization code")
	s.deliver(result{code: body.Code})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *LinkServer) closed(w http.ResponseWriter, _ *http.Request) {
	s.deliver(result{err: ErrClosed})
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OpenBrowser tries to open url in the user's browser. Failure is logged only.
func OpenBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:gosec
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:gosec
	case "darwin":
		cmd = exec.Command("open", url) //nolint:gosec
	default:
		return
	}
	if err := cmd.Start(); err != nil {
		slog.Debug("Failed to open browser", "error", err)
	}
}

const linkPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Link a bank account - SpendWise</title>
    <script src="{{.Script}}"></script>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background-color: #f4f6fb; }
        .container { text-align: center; background: white; padding: 40px; border-radius: 12px;
                     box-shadow: 0 2px 10px rgba(0,0,0,0.08); max-width: 420px; }
        h1 { color: #1f2937; margin-bottom: 12px; }
        button { background-color: #4f46e5; color: white; padding: 12px 24px;
                 font-size: 16px; border: none; border-radius: 8px; cursor: pointer; }
        button:hover { background-color: #4338ca; }
        .error { color: #dc2626; margin-top: 20px; }
        .success { color: #16a34a; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Link a bank account</h1>
        <p>Connect your bank securely through Mono. Your credentials never reach SpendWise.</p>
        <button id="link-button">Connect bank</button>
        <div id="message"></div>
    </div>
    <script>
    const message = (cls, text) => {
        document.getElementById('message').innerHTML = '<div class="' + cls + '">' + text + '</div>';
    };
    let linked = false;
    const connect = new Connect({
        key: {{.Key}},
        onSuccess: ({ code }) => {
            linked = true;
            message('success', 'Linking your account...');
            fetch('/exchange', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ code })
            })
            .then(r => r.json())
            .then(data => data.success
                ? message('success', 'Done. You can close this tab and return to the terminal.')
                : message('error', data.error || 'Linking failed'))
            .catch(err => message('error', 'Network error: ' + err));
        },
        onClose: () => {
            if (!linked) {
                fetch('/close', { method: 'POST' });
                message('error', 'Bank connection closed.');
            }
        }
    });
    connect.setup();
    document.getElementById('link-button').onclick = () => connect.open();
    </script>
</body>
</html>`
