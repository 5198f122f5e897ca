package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/api"
	"commitlens/internal/model"
	"commitlens/internal/session"
	"commitlens/internal/storage"
)

// — fakes ———————————————————————————————————————————————————————————————————

type fakeClient struct {
	mu sync.Mutex

	repos    []model.Repository
	reposErr error

	commits    map[string][]model.Commit
	commitsErr error

	overview    map[string]string
	overviewErr error

	analyze    map[string]api.AnalyzeResponse
	analyzeErr error

	history []model.Exchange
	chatErr error

	calls    map[string]int
	chatReqs []api.ChatRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		commits:  map[string][]model.Commit{},
		overview: map[string]string{},
		analyze:  map[string]api.AnalyzeResponse{},
		calls:    map[string]int{},
	}
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) hit(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeClient) ListRepos(ctx context.Context, token string) ([]model.Repository, error) {
	f.hit("repos")
	return f.repos, f.reposErr
}

func (f *fakeClient) ListCommits(ctx context.Context, token string, repo model.Repository) ([]model.Commit, error) {
	f.hit("commits")
	return f.commits[repo.FullName()], f.commitsErr
}

func (f *fakeClient) Overview(ctx context.Context, token string, repo model.Repository) (string, error) {
	f.hit("overview")
	return f.overview[repo.FullName()], f.overviewErr
}

func (f *fakeClient) AnalyzeCommit(ctx context.Context, token string, repo model.Repository, sha string) (api.AnalyzeResponse, error) {
	f.hit("analyze")
	return f.analyze[sha], f.analyzeErr
}

func (f *fakeClient) Chat(ctx context.Context, token string, repo model.Repository, req api.ChatRequest) ([]model.Exchange, error) {
	f.hit("chat")
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	f.mu.Unlock()
	return f.history, f.chatErr
}

// — helpers —————————————————————————————————————————————————————————————————

var (
	repoA = model.Repository{Owner: "acme", Name: "alpha"}
	repoB = model.Repository{Owner: "acme", Name: "beta"}
	cred  = model.Credential{Token: "gho_secret", User: model.Identity{Login: "octocat"}}
)

func newStore(t *testing.T) (*session.Store, *storage.KV) {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return session.NewStore(kv, nil), kv
}

// collect runs cmd and flattens batches into the messages they produce.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// run feeds every message produced by cmd back into m until quiescent and
// returns any messages Update did not consume.
func run(m *Model, cmd tea.Cmd) []tea.Msg {
	var leftover []tea.Msg
	queue := collect(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		if _, ok := msg.(LoggedOutMsg); ok {
			leftover = append(leftover, msg)
			continue
		}
		queue = append(queue, collect(m.Update(msg))...)
	}
	return leftover
}

func activeModel(t *testing.T, client *fakeClient) (*Model, *session.Store) {
	t.Helper()
	store, _ := newStore(t)
	if err := store.Save(context.Background(), cred); err != nil {
		t.Fatal(err)
	}
	m := New(client, store, nil)
	run(m, m.Activate())
	return m, store
}

func loggedOutIn(msgs []tea.Msg) bool {
	for _, msg := range msgs {
		if _, ok := msg.(LoggedOutMsg); ok {
			return true
		}
	}
	return false
}

// — repository directory ————————————————————————————————————————————————————

func TestActivate_WithoutSessionRedirects(t *testing.T) {
	store, _ := newStore(t)
	client := newFakeClient()
	m := New(client, store, nil)

	out := run(m, m.Activate())
	if !loggedOutIn(out) {
		t.Fatal("expected redirect to login")
	}
	if client.count("repos") != 0 {
		t.Error("expected no repository fetch without a session")
	}
}

func TestActivate_LoadsRepos(t *testing.T) {
	client := newFakeClient()
	client.repos = []model.Repository{repoA, repoB}
	m, _ := activeModel(t, client)

	if m.ReposLoading() {
		t.Error("expected loading to finish")
	}
	if got := len(m.Repos()); got != 2 {
		t.Fatalf("expected 2 repos, got %d", got)
	}
	if client.count("repos") != 1 {
		t.Errorf("expected one fetch, got %d", client.count("repos"))
	}
	if m.User().Login != "octocat" {
		t.Errorf("expected octocat, got %q", m.User().Login)
	}
}

func TestRepos_FailureIsRetryable(t *testing.T) {
	client := newFakeClient()
	client.reposErr = &api.RemoteError{Status: 500, Detail: "boom"}
	m, store := activeModel(t, client)

	if m.ReposErr() == nil {
		t.Fatal("expected repository error")
	}
	if !store.LoggedIn(context.Background()) {
		t.Error("expected session kept on non-auth failure")
	}

	client.reposErr = nil
	client.repos = []model.Repository{repoA}
	run(m, m.Retry())
	if m.ReposErr() != nil || len(m.Repos()) != 1 {
		t.Errorf("expected retry to load repos, err=%v repos=%v", m.ReposErr(), m.Repos())
	}
}

func TestRepos_PreferredRepoSelected(t *testing.T) {
	client := newFakeClient()
	client.repos = []model.Repository{repoA, repoB}
	client.commits["acme/beta"] = []model.Commit{{SHA: "b1"}}
	store, _ := newStore(t)
	store.Save(context.Background(), cred)

	m := New(client, store, nil)
	m.Prefer("ACME", "Beta")
	run(m, m.Activate())

	sel, ok := m.Selected()
	if !ok || !sel.Same(repoB) {
		t.Fatalf("expected beta selected, got %+v (ok=%v)", sel, ok)
	}
	if len(m.Commits()) != 1 {
		t.Errorf("expected beta commits loaded, got %v", m.Commits())
	}
}

// — commit history ——————————————————————————————————————————————————————————

func TestSelectRepo_StaleCommitsDiscarded(t *testing.T) {
	client := newFakeClient()
	client.commits["acme/alpha"] = []model.Commit{{SHA: "a1"}, {SHA: "a2"}}
	client.commits["acme/beta"] = []model.Commit{{SHA: "b1"}}
	m, _ := activeModel(t, client)

	slowA := m.SelectRepo(repoA)
	fastB := m.SelectRepo(repoB)

	run(m, fastB)
	run(m, slowA) // A's replies arrive after B was selected

	commits := m.Commits()
	if len(commits) != 1 || commits[0].SHA != "b1" {
		t.Fatalf("expected only beta commits, got %+v", commits)
	}
}

func TestSelectRepo_ResetsDependentState(t *testing.T) {
	client := newFakeClient()
	client.analyze["a1"] = api.AnalyzeResponse{Analysis: "x", Diff: "diff --git a/f b/f\n"}
	client.history = []model.Exchange{{Question: "q", Answer: strPtr("a")}}
	m, _ := activeModel(t, client)

	run(m, m.SelectRepo(repoA))
	run(m, m.Analyze("a1"))
	cmd, err := m.Submit("q")
	if err != nil {
		t.Fatal(err)
	}
	run(m, cmd)

	run(m, m.SelectRepo(repoB))
	if m.Analysis() != nil {
		t.Error("expected analysis cleared")
	}
	if len(m.Transcript()) != 0 {
		t.Error("expected transcript cleared")
	}
	if m.Scope().Pinned() {
		t.Error("expected scope reset")
	}
}

func TestOverview_NotFoundKeepsCommits(t *testing.T) {
	client := newFakeClient()
	client.commits["acme/alpha"] = []model.Commit{{SHA: "a1"}}
	client.overviewErr = &api.RemoteError{Status: 404}
	m, _ := activeModel(t, client)

	run(m, m.SelectRepo(repoA))

	if len(m.Commits()) != 1 {
		t.Errorf("expected commits kept, got %v", m.Commits())
	}
	if m.Overview() != noOverview {
		t.Errorf("expected placeholder, got %q", m.Overview())
	}
	if m.Err() != nil {
		t.Errorf("expected no banner, got %v", m.Err())
	}
}

func TestOverview_FailureDegrades(t *testing.T) {
	client := newFakeClient()
	client.commits["acme/alpha"] = []model.Commit{{SHA: "a1"}}
	client.overviewErr = &api.RemoteError{Status: 502}
	m, _ := activeModel(t, client)

	run(m, m.SelectRepo(repoA))

	if len(m.Commits()) != 1 {
		t.Errorf("expected commits kept, got %v", m.Commits())
	}
	if !strings.HasPrefix(m.Overview(), "Overview unavailable") {
		t.Errorf("expected degraded placeholder, got %q", m.Overview())
	}
}

func TestOverview_Loaded(t *testing.T) {
	client := newFakeClient()
	client.overview["acme/alpha"] = "A tiny repo."
	m, _ := activeModel(t, client)

	run(m, m.SelectRepo(repoA))
	if m.Overview() != "A tiny repo." {
		t.Errorf("expected overview, got %q", m.Overview())
	}
}

// — authentication ——————————————————————————————————————————————————————————

func TestUnauthorized_PurgesSession(t *testing.T) {
	client := newFakeClient()
	client.commitsErr = api.ErrAuthExpired
	m, store := activeModel(t, client)

	out := run(m, m.SelectRepo(repoA))
	if !loggedOutIn(out) {
		t.Fatal("expected redirect to login")
	}
	if store.LoggedIn(context.Background()) {
		t.Error("expected credential purged")
	}
	if m.Active() {
		t.Error("expected workspace deactivated")
	}

	// a fresh start shows the login view
	out = run(m, m.Activate())
	if !loggedOutIn(out) {
		t.Error("expected login view after reload")
	}
}

func TestLogout(t *testing.T) {
	client := newFakeClient()
	m, store := activeModel(t, client)

	out := collect(m.Logout())
	if !loggedOutIn(out) {
		t.Fatal("expected LoggedOutMsg")
	}
	if store.LoggedIn(context.Background()) {
		t.Error("expected session cleared")
	}
}

// — analysis ————————————————————————————————————————————————————————————————

func TestAnalyze_PinsScopeAndParsesDiff(t *testing.T) {
	client := newFakeClient()
	client.analyze["c1"] = api.AnalyzeResponse{
		Diff:                 "diff --git a/x b/x\n@@ -1 +1 @@\n-a\n+b\ndiff --git a/y b/z\nrename from y\nrename to z\n",
		PreviousDiff:         "diff --git a/p b/p\n",
		Analysis:             "## Summary",
		Overview:             "fresh overview",
		CommitNumber:         7,
		PreviousCommitNumber: 6,
	}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	cmd := m.Analyze("c1")
	if m.Analyzing() != "c1" {
		t.Errorf("expected c1 in flight, got %q", m.Analyzing())
	}
	run(m, cmd)

	a := m.Analysis()
	if a == nil {
		t.Fatal("expected analysis")
	}
	if len(a.Diff) != 2 || a.Diff[0].Label != "modified x" || a.Diff[1].Label != "renamed y → z" {
		t.Errorf("unexpected diff %+v", a.Diff)
	}
	if len(a.PreviousDiff) != 1 {
		t.Errorf("expected previous diff parsed, got %d files", len(a.PreviousDiff))
	}
	if a.CommitNumber != 7 || a.PreviousNumber != 6 {
		t.Errorf("unexpected ordinals %d/%d", a.CommitNumber, a.PreviousNumber)
	}
	if m.Scope().SHA != "c1" {
		t.Errorf("expected scope pinned to c1, got %+v", m.Scope())
	}
	if m.Overview() != "fresh overview" {
		t.Errorf("expected overview replaced, got %q", m.Overview())
	}
	if m.Analyzing() != "" {
		t.Error("expected nothing in flight")
	}
}

func TestAnalyze_LatestRequestWins(t *testing.T) {
	client := newFakeClient()
	client.analyze["c1"] = api.AnalyzeResponse{Analysis: "first"}
	client.analyze["c2"] = api.AnalyzeResponse{Analysis: "second"}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	first := m.Analyze("c1")
	second := m.Analyze("c2")
	run(m, second)
	run(m, first)

	if a := m.Analysis(); a == nil || a.Text != "second" {
		t.Fatalf("expected second analysis, got %+v", a)
	}
	if m.Scope().SHA != "c2" {
		t.Errorf("expected scope c2, got %q", m.Scope().SHA)
	}
}

func TestAnalyze_RateLimited(t *testing.T) {
	client := newFakeClient()
	client.analyzeErr = &api.RateLimitError{RetryAfter: 120 * time.Second}
	m, store := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	run(m, m.Analyze("c1"))

	msg := api.Describe(m.AnalysisErr())
	if !strings.Contains(msg, "2 minutes") {
		t.Errorf("expected 2 minute wait, got %q", msg)
	}
	if !store.LoggedIn(context.Background()) {
		t.Error("expected session kept on rate limit")
	}
	if m.Scope().Pinned() {
		t.Error("expected scope not pinned after failure")
	}
}

func TestAnalyze_FailureKeepsPreviousDisplay(t *testing.T) {
	client := newFakeClient()
	client.analyze["c1"] = api.AnalyzeResponse{Analysis: "ok"}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))
	run(m, m.Analyze("c1"))

	client.analyzeErr = &api.RemoteError{Status: 500}
	run(m, m.Analyze("c2"))

	if a := m.Analysis(); a == nil || a.SHA != "c1" {
		t.Fatalf("expected c1 analysis kept, got %+v", a)
	}
	if m.Scope().SHA != "c1" {
		t.Errorf("expected scope unchanged, got %q", m.Scope().SHA)
	}
	if m.Err() == nil {
		t.Error("expected banner error")
	}

	client.analyzeErr = nil
	client.analyze["c2"] = api.AnalyzeResponse{Analysis: "retried"}
	run(m, m.Retry())
	if a := m.Analysis(); a == nil || a.Text != "retried" {
		t.Errorf("expected retry to analyze c2, got %+v", a)
	}
}

func TestCloseAnalysis_KeepsScope(t *testing.T) {
	client := newFakeClient()
	client.analyze["c1"] = api.AnalyzeResponse{Analysis: "ok"}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))
	run(m, m.Analyze("c1"))

	m.CloseAnalysis()
	if m.Analysis() != nil {
		t.Error("expected analysis closed")
	}
	if m.Scope().SHA != "c1" {
		t.Error("expected scope kept")
	}
}

// — conversation ————————————————————————————————————————————————————————————

func strPtr(s string) *string { return &s }

func TestSubmit_Validation(t *testing.T) {
	client := newFakeClient()
	m, _ := activeModel(t, client)

	var verr *ValidationError
	if _, err := m.Submit("hello"); !errors.As(err, &verr) || verr.Field != "repository" {
		t.Errorf("expected repository validation error, got %v", err)
	}

	run(m, m.SelectRepo(repoA))
	if _, err := m.Submit("   "); !errors.As(err, &verr) || verr.Field != "question" {
		t.Errorf("expected question validation error, got %v", err)
	}
	if client.count("chat") != 0 {
		t.Error("expected no chat request")
	}
	if len(m.Transcript()) != 0 {
		t.Error("expected no transcript entry")
	}
}

func TestSubmit_OptimisticThenReplaced(t *testing.T) {
	client := newFakeClient()
	client.history = []model.Exchange{
		{Question: "earlier", Answer: strPtr("yes")},
		{Question: "what changed?", Answer: strPtr("the parser")},
	}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	cmd, err := m.Submit("what changed?")
	if err != nil {
		t.Fatal(err)
	}
	got := m.Transcript()
	if len(got) != 1 || got[0].Speaker != model.SpeakerUser || got[0].Content != "what changed?" {
		t.Fatalf("expected optimistic user entry, got %+v", got)
	}
	if !m.ChatPending() {
		t.Error("expected chat pending")
	}

	run(m, cmd)

	want := []model.Entry{
		{Speaker: model.SpeakerUser, Content: "earlier"},
		{Speaker: model.SpeakerAssistant, Content: "yes"},
		{Speaker: model.SpeakerUser, Content: "what changed?"},
		{Speaker: model.SpeakerAssistant, Content: "the parser"},
	}
	got = m.Transcript()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if client.count("chat") != 1 {
		t.Errorf("expected one chat request, got %d", client.count("chat"))
	}
}

func TestSubmit_FailureAppendsLocalReply(t *testing.T) {
	client := newFakeClient()
	client.chatErr = &api.RemoteError{Status: 500, Detail: "model offline"}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	cmd, _ := m.Submit("hi")
	run(m, cmd)

	got := m.Transcript()
	if len(got) != 2 {
		t.Fatalf("expected question and error reply, got %+v", got)
	}
	if got[1].Speaker != model.SpeakerAssistant || !got[1].Local || !strings.Contains(got[1].Content, "model offline") {
		t.Errorf("unexpected error entry %+v", got[1])
	}

	// the failed exchange is not sent back as context
	client.chatErr = nil
	cmd, err := m.Submit("again")
	if err != nil {
		t.Fatal(err)
	}
	run(m, cmd)
	last := client.chatReqs[len(client.chatReqs)-1]
	if len(last.History) != 0 {
		t.Errorf("expected empty history, got %+v", last.History)
	}
}

func TestSubmit_ScopeAndClear(t *testing.T) {
	client := newFakeClient()
	client.analyze["c1"] = api.AnalyzeResponse{Analysis: "ok"}
	client.history = []model.Exchange{{Question: "q1", Answer: strPtr("a1")}}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))
	run(m, m.Analyze("c1"))

	cmd, _ := m.Submit("q1")
	run(m, cmd)
	if got := client.chatReqs[0].TargetSHA; got != "c1" {
		t.Errorf("expected pinned question, got target %q", got)
	}

	m.ClearScope()
	if len(m.Transcript()) != 2 {
		t.Errorf("expected transcript untouched, got %+v", m.Transcript())
	}

	client.history = append(client.history, model.Exchange{Question: "q2", Answer: strPtr("a2")})
	cmd, _ = m.Submit("q2")
	run(m, cmd)
	req := client.chatReqs[1]
	if req.TargetSHA != "" {
		t.Errorf("expected whole-repository question, got target %q", req.TargetSHA)
	}
	if len(req.History) != 1 || req.History[0].Question != "q1" || *req.History[0].Answer != "a1" {
		t.Errorf("unexpected history %+v", req.History)
	}
}

func TestSubmit_StaleAnswerAfterRepoChange(t *testing.T) {
	client := newFakeClient()
	client.history = []model.Exchange{{Question: "q", Answer: strPtr("a")}}
	m, _ := activeModel(t, client)
	run(m, m.SelectRepo(repoA))

	cmd, _ := m.Submit("q")
	run(m, m.SelectRepo(repoB))
	run(m, cmd)

	if len(m.Transcript()) != 0 {
		t.Errorf("expected answer for previous repo discarded, got %+v", m.Transcript())
	}
}

func TestFlatten_UnansweredQuestion(t *testing.T) {
	got := flatten([]model.Exchange{{Question: "q1", Answer: strPtr("a1")}, {Question: "q2"}})
	if len(got) != 3 || got[2].Speaker != model.SpeakerUser {
		t.Errorf("unexpected entries %+v", got)
	}
}
