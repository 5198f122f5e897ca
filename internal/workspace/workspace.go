// Package workspace holds the authenticated side of the app: the repository
// directory, the commit history of the selected repository, commit analysis
// and the repository chat.
//
// Every remote call runs as a tea.Cmd. Results carry the generation that was
// current when the request was issued, and Update drops any result whose
// generation no longer matches, so a late reply never lands on a newer
// selection.
package workspace

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/api"
	"commitlens/internal/logging"
	"commitlens/internal/model"
	"commitlens/internal/session"
)

// Client is the subset of the remote service the workspace needs.
type Client interface {
	ListRepos(ctx context.Context, token string) ([]model.Repository, error)
	ListCommits(ctx context.Context, token string, repo model.Repository) ([]model.Commit, error)
	Overview(ctx context.Context, token string, repo model.Repository) (string, error)
	AnalyzeCommit(ctx context.Context, token string, repo model.Repository, sha string) (api.AnalyzeResponse, error)
	Chat(ctx context.Context, token string, repo model.Repository, req api.ChatRequest) ([]model.Exchange, error)
}

// — messages ————————————————————————————————————————————————————————————————

// LoggedOutMsg asks the router to show the login view. Reason is empty for
// an explicit logout or a missing session.
type LoggedOutMsg struct {
	Reason string
}

type reposLoadedMsg struct {
	gen   int
	repos []model.Repository
	err   error
}

type commitsLoadedMsg struct {
	gen     int
	commits []model.Commit
	err     error
}

type overviewLoadedMsg struct {
	gen  int
	text string
	err  error
}

type analyzedMsg struct {
	repoGen int
	gen     int
	sha     string
	resp    api.AnalyzeResponse
	err     error
}

type chatAnsweredMsg struct {
	repoGen int
	gen     int
	history []model.Exchange
	err     error
}

// — model ———————————————————————————————————————————————————————————————————

// Model is owned by the UI loop. It is not safe for concurrent use.
type Model struct {
	client Client
	store  *session.Store
	log    logging.Logger

	active bool
	cred   model.Credential
	prefer *model.Repository

	// repository directory
	dirGen       int
	repos        []model.Repository
	reposLoading bool
	reposErr     error

	// selected repository
	repoGen         int
	selected        *model.Repository
	commits         []model.Commit
	commitsLoading  bool
	commitsErr      error
	overview        string
	overviewNote    string
	overviewLoading bool

	// analysis
	analyzeGen  int
	analyzing   string // in flight
	requested   string // last requested, for Retry
	analysis    *model.Analysis
	analysisErr error

	// conversation
	chatGen     int
	chatPending bool
	transcript  []model.Entry
	scope       model.Scope
}

// New returns an inactive workspace. Call Activate once the session is known.
func New(client Client, store *session.Store, log logging.Logger) *Model {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	return &Model{
		client: client,
		store:  store,
		log:    log.With("component", "workspace"),
	}
}

// Prefer marks a repository to select automatically once the directory
// loads, typically the origin of the current checkout.
func (m *Model) Prefer(owner, name string) {
	if owner == "" || name == "" {
		m.prefer = nil
		return
	}
	m.prefer = &model.Repository{Owner: owner, Name: name}
}

// Activate reads the session and loads the repository directory. Without a
// usable credential it redirects to login straight away.
func (m *Model) Activate() tea.Cmd {
	cred, ok := m.store.Credential(context.Background())
	if !ok {
		m.deactivate()
		return loggedOut("")
	}
	m.deactivate()
	m.active = true
	m.cred = cred
	return m.loadRepos()
}

// Logout clears the session and returns to the login view.
func (m *Model) Logout() tea.Cmd {
	if err := m.store.Clear(context.Background()); err != nil {
		m.log.Error("clear session", "error", err)
	}
	m.deactivate()
	return loggedOut("")
}

// Retry re-issues whichever critical fetch last failed.
func (m *Model) Retry() tea.Cmd {
	if !m.active {
		return nil
	}
	switch {
	case m.reposErr != nil:
		return m.loadRepos()
	case m.selected != nil && m.commitsErr != nil:
		m.commitsErr = nil
		m.commitsLoading = true
		return fetchCommitsCmd(m.client, m.cred.Token, *m.selected, m.repoGen)
	case m.analysisErr != nil && m.requested != "":
		return m.Analyze(m.requested)
	}
	return nil
}

// Update applies a result message. It returns a follow-up command, if any.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	if !m.active {
		return nil
	}
	switch msg := msg.(type) {
	case reposLoadedMsg:
		return m.onRepos(msg)
	case commitsLoadedMsg:
		return m.onCommits(msg)
	case overviewLoadedMsg:
		return m.onOverview(msg)
	case analyzedMsg:
		return m.onAnalyzed(msg)
	case chatAnsweredMsg:
		return m.onChat(msg)
	}
	return nil
}

// — accessors ———————————————————————————————————————————————————————————————

func (m *Model) Active() bool              { return m.active }
func (m *Model) User() model.Identity      { return m.cred.User }
func (m *Model) Repos() []model.Repository { return m.repos }
func (m *Model) ReposLoading() bool        { return m.reposLoading }
func (m *Model) ReposErr() error           { return m.reposErr }
func (m *Model) Commits() []model.Commit   { return m.commits }
func (m *Model) CommitsLoading() bool      { return m.commitsLoading }
func (m *Model) CommitsErr() error         { return m.commitsErr }
func (m *Model) OverviewLoading() bool     { return m.overviewLoading }
func (m *Model) Analyzing() string         { return m.analyzing }
func (m *Model) AnalysisErr() error        { return m.analysisErr }
func (m *Model) Scope() model.Scope        { return m.scope }
func (m *Model) ChatPending() bool         { return m.chatPending }

// Selected returns the selected repository.
func (m *Model) Selected() (model.Repository, bool) {
	if m.selected == nil {
		return model.Repository{}, false
	}
	return *m.selected, true
}

// Overview returns the overview text, or an explanatory placeholder when
// none could be loaded.
func (m *Model) Overview() string {
	if m.overview != "" {
		return m.overview
	}
	return m.overviewNote
}

// Analysis returns the displayed analysis, or nil.
func (m *Model) Analysis() *model.Analysis { return m.analysis }

// Transcript returns a copy of the conversation.
func (m *Model) Transcript() []model.Entry {
	out := make([]model.Entry, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// Err returns the most relevant critical-path error for a banner.
func (m *Model) Err() error {
	switch {
	case m.reposErr != nil:
		return m.reposErr
	case m.commitsErr != nil:
		return m.commitsErr
	default:
		return m.analysisErr
	}
}

// DismissErr hides the banner without retrying.
func (m *Model) DismissErr() {
	m.reposErr, m.commitsErr, m.analysisErr = nil, nil, nil
}

// — internals ———————————————————————————————————————————————————————————————

func (m *Model) deactivate() {
	*m = Model{
		client: m.client,
		store:  m.store,
		log:    m.log,
		prefer: m.prefer,
		// keep counters moving so nothing issued before survives
		dirGen:     m.dirGen + 1,
		repoGen:    m.repoGen + 1,
		analyzeGen: m.analyzeGen + 1,
		chatGen:    m.chatGen + 1,
	}
}

// handleErr purges the session on an auth failure. It reports whether the
// error was one.
func (m *Model) handleErr(err error) (tea.Cmd, bool) {
	if !api.IsAuthExpired(err) {
		return nil, false
	}
	m.log.Warn("credential rejected, logging out", "token", logging.TokenTail(m.cred.Token))
	if cerr := m.store.Clear(context.Background()); cerr != nil {
		m.log.Error("clear session", "error", cerr)
	}
	m.deactivate()
	return loggedOut(api.Describe(err)), true
}

func loggedOut(reason string) tea.Cmd {
	return func() tea.Msg { return LoggedOutMsg{Reason: reason} }
}

func sameRepo(a, b model.Repository) bool {
	return strings.EqualFold(a.Owner, b.Owner) && strings.EqualFold(a.Name, b.Name)
}
