package tui

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/api"
	"commitlens/internal/forge"
	"commitlens/internal/model"
	"commitlens/internal/oauth"
	"commitlens/internal/session"
	"commitlens/internal/storage"
	"commitlens/internal/workspace"
)

type stubBackend struct {
	exchanges atomic.Int32
	repos     []model.Repository
}

func (s *stubBackend) ExchangeCode(ctx context.Context, provider, code string) (model.Credential, error) {
	s.exchanges.Add(1)
	return model.Credential{Token: "tok", User: model.Identity{Login: "octocat"}}, nil
}

func (s *stubBackend) ListRepos(ctx context.Context, token string) ([]model.Repository, error) {
	return s.repos, nil
}

func (s *stubBackend) ListCommits(ctx context.Context, token string, repo model.Repository) ([]model.Commit, error) {
	return nil, nil
}

func (s *stubBackend) Overview(ctx context.Context, token string, repo model.Repository) (string, error) {
	return "", nil
}

func (s *stubBackend) AnalyzeCommit(ctx context.Context, token string, repo model.Repository, sha string) (api.AnalyzeResponse, error) {
	return api.AnalyzeResponse{}, nil
}

func (s *stubBackend) Chat(ctx context.Context, token string, repo model.Repository, req api.ChatRequest) ([]model.Exchange, error) {
	return nil, nil
}

func newRouter(t *testing.T, backend *stubBackend) (Model, *session.Store) {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	store := session.NewStore(kv, nil)

	f, _ := forge.New("github")
	m := New(Deps{
		Handler:   oauth.NewHandler(backend, store, "github", nil),
		Workspace: workspace.New(backend, store, nil),
		Forge:     f,
		Auth:      forge.AuthOpts{ClientID: "cid", RedirectURL: "http://localhost:3000/callback"},
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), store
}

// drive feeds msg and every message its commands produce back into m.
// Spinner ticks and other timers are not followed.
func drive(m Model, msg tea.Msg) Model {
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next, cmd := m.Update(queue[0])
		m = next.(Model)
		queue = append(queue[1:], expand(cmd)...)
	}
	return m
}

func expand(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, expand(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func TestRouter_StartsAtLogin(t *testing.T) {
	m, _ := newRouter(t, &stubBackend{})
	if m.view != viewLogin {
		t.Fatalf("expected login view, got %v", m.view)
	}
	if m.View() == "" {
		t.Error("expected login view to render")
	}
}

func TestRouter_CallbackLogsInOnce(t *testing.T) {
	backend := &stubBackend{repos: []model.Repository{{Owner: "acme", Name: "alpha"}}}
	m, store := newRouter(t, backend)

	// the browser may deliver the same redirect twice
	next, first := m.Update(oauth.CallbackMsg{Code: "C1"})
	m = next.(Model)
	next, second := m.Update(oauth.CallbackMsg{Code: "C1"})
	m = next.(Model)

	for _, msg := range append(expand(first), expand(second)...) {
		m = drive(m, msg)
	}

	if n := backend.exchanges.Load(); n != 1 {
		t.Errorf("expected exactly one exchange, got %d", n)
	}
	if m.view != viewWorkspace {
		t.Fatalf("expected workspace view, got %v", m.view)
	}
	if !store.LoggedIn(context.Background()) {
		t.Error("expected stored session")
	}
	if got := len(m.repoList.Items()); got != 1 {
		t.Errorf("expected 1 repository listed, got %d", got)
	}
}

func TestRouter_StoredSessionSkipsLogin(t *testing.T) {
	backend := &stubBackend{}
	m, store := newRouter(t, backend)
	store.Save(context.Background(), model.Credential{Token: "tok", User: model.Identity{Login: "octocat"}})

	m = drive(m, m.deps.Handler.Start("")())
	if m.view != viewWorkspace {
		t.Fatalf("expected workspace view, got %v", m.view)
	}
	if backend.exchanges.Load() != 0 {
		t.Error("expected no exchange")
	}
}

func TestRouter_LogoutReturnsToLogin(t *testing.T) {
	m, store := newRouter(t, &stubBackend{})
	store.Save(context.Background(), model.Credential{Token: "tok", User: model.Identity{Login: "octocat"}})
	m = drive(m, oauth.AuthenticatedMsg{User: model.Identity{Login: "octocat"}})

	m = drive(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})
	if m.view != viewLogin {
		t.Fatalf("expected login view, got %v", m.view)
	}
	if store.LoggedIn(context.Background()) {
		t.Error("expected session cleared")
	}
}

func TestRouter_ChatValidationShown(t *testing.T) {
	m, store := newRouter(t, &stubBackend{})
	store.Save(context.Background(), model.Credential{Token: "tok", User: model.Identity{Login: "octocat"}})
	m = drive(m, oauth.AuthenticatedMsg{User: model.Identity{Login: "octocat"}})

	m.setFocus(focusChat)
	m = drive(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.inputErr == "" {
		t.Error("expected validation message without a repository")
	}
}
