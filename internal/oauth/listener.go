package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"commitlens/internal/logging"
)

// CallbackMsg is a code delivered to the loopback listener.
type CallbackMsg struct {
	Code string
	Err  error // provider-reported error (e.g. access_denied)
}

// Listener receives the provider's redirect on a loopback address.
// HTTP handlers run on their own goroutines, so the expected state is
// guarded by a mutex; everything else is handed to the UI loop via a channel.
type Listener struct {
	srv   *http.Server
	ln    net.Listener
	codes chan CallbackMsg
	log   logging.Logger

	mu    sync.Mutex
	state string
}

// NewListener builds the listener without binding a port.
func NewListener(log logging.Logger) *Listener {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	l := &Listener{
		codes: make(chan CallbackMsg, 4),
		log:   log.With("component", "oauth-listener"),
	}
	l.srv = &http.Server{
		Handler:           l.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return l
}

// Listen binds addr and serves in the background.
func (l *Listener) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	l.ln = ln
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error("callback listener stopped", "error", err)
		}
	}()
	l.log.Info("callback listener started", "addr", ln.Addr().String())
	return nil
}

// Routes returns the callback router.
func (l *Listener) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", l.callback)
	r.Get("/callback", l.callback)
	return r
}

// Expect sets the state value the next redirect must carry.
// An empty state disables the check.
func (l *Listener) Expect(state string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}

// Wait returns a command that blocks until the next callback arrives.
func (l *Listener) Wait() tea.Cmd {
	return func() tea.Msg {
		msg, err := l.Next(context.Background())
		if err != nil {
			return nil
		}
		return msg
	}
}

// Next blocks until a callback arrives or ctx is done.
func (l *Listener) Next(ctx context.Context) (CallbackMsg, error) {
	select {
	case msg := <-l.codes:
		return msg, nil
	case <-ctx.Done():
		return CallbackMsg{}, ctx.Err()
	}
}

// Close stops the server.
func (l *Listener) Close() error {
	return l.srv.Close()
}

func (l *Listener) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	l.mu.Lock()
	expected := l.state
	l.mu.Unlock()
	if expected != "" && q.Get("state") != expected {
		l.log.Warn("callback with unexpected state")
		http.Error(w, "state mismatch; start the login again from the terminal", http.StatusBadRequest)
		return
	}

	var msg CallbackMsg
	switch {
	case q.Get("error") != "":
		msg.Err = fmt.Errorf("%s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") != "":
		msg.Code = q.Get("code")
	default:
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	select {
	case l.codes <- msg:
	default:
		l.log.Warn("dropping callback, queue full")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if msg.Err != nil {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, page("Login was not completed. Return to the terminal to try again."))
		return
	}
	fmt.Fprint(w, page("Login received. You can close this tab and return to the terminal."))
}

func page(text string) string {
	return "<!doctype html><html><body style=\"font-family:sans-serif;padding:2em\"><p>" +
		text + "</p></body></html>"
}
