package tui

import (
	"os/exec"
	"runtime"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"commitlens/internal/api"
	"commitlens/internal/forge"
	"commitlens/internal/logging"
	"commitlens/internal/oauth"
	"commitlens/internal/workspace"
)

// — state ———————————————————————————————————————————————————————————————————

type view int

const (
	viewLogin view = iota
	viewWorkspace
)

type focus int

const (
	focusRepos focus = iota
	focusCommits
	focusDetail
	focusChat
)

// — messages ————————————————————————————————————————————————————————————————

type browserOpenedMsg struct {
	err error
}

// — model ———————————————————————————————————————————————————————————————————

// Deps are the collaborators the router drives.
type Deps struct {
	Handler   *oauth.Handler
	Listener  *oauth.Listener // nil when no loopback listener is running
	Workspace *workspace.Model
	Forge     forge.Forge
	Auth      forge.AuthOpts
	Code      string // authorization code passed on the command line
	Log       logging.Logger
}

// Model routes between the login view and the workspace.
type Model struct {
	deps Deps
	log  logging.Logger

	view  view
	focus focus

	repoList   list.Model
	commitList list.Model
	detail     viewport.Model
	chatInput  textinput.Model
	spinner    spinner.Model

	width  int
	height int

	loginErr  string
	authURL   string
	inputErr  string
	lastShown string // detail content key, to keep scroll position
}

func New(d Deps) Model {
	if d.Log == nil {
		d.Log = logging.NewNoopLogger()
	}

	repos := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	repos.Title = "Repositories"
	repos.SetShowStatusBar(false)
	repos.SetShowHelp(false)
	repos.Styles.Title = titleStyle

	commits := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	commits.Title = "Commits"
	commits.SetShowStatusBar(false)
	commits.SetFilteringEnabled(false)
	commits.SetShowHelp(false)
	commits.Styles.Title = titleStyle

	ti := textinput.New()
	ti.Placeholder = "Ask about this repository…"
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = warnStyle

	return Model{
		deps:       d,
		log:        d.Log.With("component", "tui"),
		repoList:   repos,
		commitList: commits,
		detail:     viewport.New(0, 0),
		chatInput:  ti,
		spinner:    sp,
	}
}

// — commands ————————————————————————————————————————————————————————————————

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Run()
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		return browserOpenedMsg{err: OpenBrowser(url)}
	}
}

func (m Model) waitForCallback() tea.Cmd {
	if m.deps.Listener == nil {
		return nil
	}
	return m.deps.Listener.Wait()
}

// startLogin builds a fresh authorization URL and opens it.
func (m *Model) startLogin() tea.Cmd {
	m.deps.Handler.Reset()
	m.loginErr = ""

	opts := m.deps.Auth
	opts.State = uuid.NewString()
	url, err := forge.AuthorizeURL(m.deps.Forge, opts)
	if err != nil {
		m.loginErr = err.Error()
		return nil
	}
	if m.deps.Listener != nil {
		m.deps.Listener.Expect(opts.State)
	}
	m.authURL = url
	m.log.Info("opening authorization page", "forge", m.deps.Forge.Kind())
	return openURLCmd(url)
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.deps.Handler.Start(m.deps.Code),
		m.waitForCallback(),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.refresh()
		}
		return m, cmd

	case browserOpenedMsg:
		if msg.err != nil {
			m.log.Warn("could not open browser", "error", msg.err)
		}
		return m, nil

	case oauth.CallbackMsg:
		if msg.Err != nil {
			m.loginErr = "Login was not completed: " + msg.Err.Error()
			return m, m.waitForCallback()
		}
		return m, tea.Batch(m.deps.Handler.Start(msg.Code), m.waitForCallback())

	case oauth.ExchangedMsg:
		cmd := m.deps.Handler.Update(msg)
		if err := m.deps.Handler.Err(); err != nil {
			m.loginErr = "Login failed. " + api.Describe(err)
		}
		return m, cmd

	case oauth.AuthenticatedMsg:
		m.view = viewWorkspace
		m.focus = focusRepos
		m.loginErr = ""
		m.authURL = ""
		cmd := m.deps.Workspace.Activate()
		m.refresh()
		return m, cmd

	case workspace.LoggedOutMsg:
		m.view = viewLogin
		m.loginErr = msg.Reason
		m.inputErr = ""
		m.chatInput.Reset()
		m.chatInput.Blur()
		m.deps.Handler.Reset()
		m.refresh()
		return m, nil
	}

	if m.view == viewLogin {
		return m.updateLogin(msg)
	}

	if _, ok := msg.(tea.KeyMsg); !ok {
		cmd := m.deps.Workspace.Update(msg)
		m.refresh()
		return m, cmd
	}
	if m.focus == focusChat {
		return m.updateChat(msg)
	}
	return m.updateWorkspace(msg)
}

func (m Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "enter", "l":
		if m.deps.Handler.State() == oauth.Exchanging {
			return m, nil
		}
		return m, m.startLogin()
	}
	return m, nil
}

func (m Model) updateWorkspace(msg tea.Msg) (tea.Model, tea.Cmd) {
	ws := m.deps.Workspace
	key := msg.(tea.KeyMsg)

	// let the repo filter have its keys
	if m.focus == focusRepos && m.repoList.SettingFilter() {
		var cmd tea.Cmd
		m.repoList, cmd = m.repoList.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.setFocus((m.focus + 1) % 4)
		return m, textinputBlinkIf(m.focus == focusChat)
	case "shift+tab":
		m.setFocus((m.focus + 3) % 4)
		return m, textinputBlinkIf(m.focus == focusChat)
	case "/":
		if m.focus != focusRepos {
			m.setFocus(focusChat)
			return m, textinputBlinkIf(true)
		}
	case "r":
		cmd := ws.Retry()
		m.refresh()
		return m, cmd
	case "esc":
		ws.DismissErr()
		m.refresh()
		return m, nil
	case "x":
		ws.CloseAnalysis()
		m.refresh()
		return m, nil
	case "c":
		ws.ClearScope()
		m.refresh()
		return m, nil
	case "L":
		return m, ws.Logout()
	case "o":
		if url := m.webURL(); url != "" {
			return m, openURLCmd(url)
		}
		return m, nil
	case "enter":
		switch m.focus {
		case focusRepos:
			if it, ok := m.repoList.SelectedItem().(repoItem); ok {
				cmd := ws.SelectRepo(it.r)
				m.commitList.ResetSelected()
				m.setFocus(focusCommits)
				m.refresh()
				return m, cmd
			}
		case focusCommits:
			if it, ok := m.commitList.SelectedItem().(commitItem); ok {
				cmd := ws.Analyze(it.c.SHA)
				m.refresh()
				return m, cmd
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusRepos:
		m.repoList, cmd = m.repoList.Update(msg)
	case focusCommits:
		m.commitList, cmd = m.commitList.Update(msg)
	case focusDetail:
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

func (m Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	key := msg.(tea.KeyMsg)
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.inputErr = ""
		m.setFocus(focusCommits)
		return m, nil
	case "tab":
		m.setFocus(focusRepos)
		return m, nil
	case "enter":
		cmd, err := m.deps.Workspace.Submit(m.chatInput.Value())
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.inputErr = ""
		m.chatInput.Reset()
		m.refresh()
		return m, cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

// — helpers —————————————————————————————————————————————————————————————————

func textinputBlinkIf(ok bool) tea.Cmd {
	if ok {
		return textinput.Blink
	}
	return nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusChat {
		m.chatInput.Focus()
	} else {
		m.chatInput.Blur()
	}
}

func (m Model) busy() bool {
	ws := m.deps.Workspace
	return m.deps.Handler.State() == oauth.Exchanging ||
		ws.ReposLoading() || ws.CommitsLoading() || ws.OverviewLoading() ||
		ws.Analyzing() != "" || ws.ChatPending()
}

// webURL is the page for the focused commit, or the selected repository.
func (m Model) webURL() string {
	repo, ok := m.deps.Workspace.Selected()
	if m.focus == focusRepos || !ok {
		if it, ok := m.repoList.SelectedItem().(repoItem); ok {
			return m.deps.Forge.RepoURL(it.r)
		}
		return ""
	}
	if it, ok := m.commitList.SelectedItem().(commitItem); ok && m.focus == focusCommits {
		return m.deps.Forge.CommitURL(repo, it.c.SHA)
	}
	if a := m.deps.Workspace.Analysis(); a != nil {
		return m.deps.Forge.CommitURL(repo, a.SHA)
	}
	return m.deps.Forge.RepoURL(repo)
}
