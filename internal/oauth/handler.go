// Package oauth completes the authorization-code exchange exactly once per
// code and moves the session from anonymous to authenticated.
package oauth

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/logging"
	"commitlens/internal/model"
	"commitlens/internal/session"
)

const exchangeTimeout = 30 * time.Second

// State of the callback handler.
type State int

const (
	Idle State = iota
	Exchanging
	Done
)

func (s State) String() string {
	switch s {
	case Exchanging:
		return "exchanging"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// Exchanger trades a code for a credential. *api.Client satisfies it.
type Exchanger interface {
	ExchangeCode(ctx context.Context, provider, code string) (model.Credential, error)
}

// — messages ————————————————————————————————————————————————————————————————

// ExchangedMsg carries the result of one exchange request.
type ExchangedMsg struct {
	Code string
	Cred model.Credential
	Err  error
}

// AuthenticatedMsg tells the router to show the workspace.
type AuthenticatedMsg struct {
	User model.Identity
}

// Handler is driven from the UI loop only; it holds no locks.
type Handler struct {
	ex       Exchanger
	store    *session.Store
	provider string
	log      logging.Logger

	state State
	code  string // code being exchanged or last exchanged
	err   error
}

// NewHandler returns an idle handler.
func NewHandler(ex Exchanger, store *session.Store, provider string, log logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	return &Handler{
		ex:       ex,
		store:    store,
		provider: provider,
		log:      log.With("component", "oauth"),
	}
}

// State returns the current state.
func (h *Handler) State() State { return h.state }

// Err returns the last exchange failure, if any.
func (h *Handler) Err() error { return h.err }

// Start is called on load and whenever a callback code arrives. An empty code
// means "no callback": a valid stored credential goes straight to the
// workspace, anything partial is purged by the store without an error.
// A code already being exchanged, or already exchanged, is ignored.
func (h *Handler) Start(code string) tea.Cmd {
	ctx := context.Background()

	if code == "" {
		if cred, ok := h.store.Credential(ctx); ok {
			return authenticated(cred.User)
		}
		return nil
	}

	if code == h.code && (h.state == Exchanging || h.state == Done) {
		h.log.Debug("ignoring duplicate callback", "state", h.state.String())
		return nil
	}

	// restarted with a code that was already exchanged
	if h.store.Consumed(ctx, code) {
		h.state, h.code = Done, code
		if cred, ok := h.store.Credential(ctx); ok {
			return authenticated(cred.User)
		}
		return nil
	}

	h.state, h.code, h.err = Exchanging, code, nil
	h.log.Info("exchanging authorization code", "provider", h.provider)
	return exchangeCmd(h.ex, h.provider, code)
}

// Update applies an exchange result. Results for a code other than the one
// currently being exchanged are ignored.
func (h *Handler) Update(msg ExchangedMsg) tea.Cmd {
	if msg.Code != h.code || h.state != Exchanging {
		return nil
	}
	ctx := context.Background()

	if msg.Err != nil {
		h.fail(msg.Err)
		return nil
	}
	if err := h.store.Save(ctx, msg.Cred); err != nil {
		h.fail(err)
		return nil
	}
	if err := h.store.MarkConsumed(ctx, msg.Code); err != nil {
		h.log.Warn("could not record consumed code", "error", err)
	}
	h.state = Done
	h.log.Info("login complete", "login", msg.Cred.User.Login)
	return authenticated(msg.Cred.User)
}

// Reset prepares for a fresh login attempt.
func (h *Handler) Reset() {
	h.state, h.code, h.err = Idle, "", nil
}

func (h *Handler) fail(err error) {
	h.log.Warn("code exchange failed", "error", err)
	h.state, h.code, h.err = Idle, "", err
}

func exchangeCmd(ex Exchanger, provider, code string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
		defer cancel()
		cred, err := ex.ExchangeCode(ctx, provider, code)
		return ExchangedMsg{Code: code, Cred: cred, Err: err}
	}
}

func authenticated(user model.Identity) tea.Cmd {
	return func() tea.Msg { return AuthenticatedMsg{User: user} }
}
