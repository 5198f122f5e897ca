package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"commitlens/internal/api"
	"commitlens/internal/model"
	"commitlens/internal/oauth"
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	addStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	delStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(64)
)

// — layout helpers ——————————————————————————————————————————————————————————

const chatHeight = 12

func (m Model) columns() (left, right int) {
	left = m.width / 3
	return left, m.width - left
}

// bodyHeight is everything above the help bar and banner.
func (m Model) bodyHeight() int {
	return max(m.height-3, 4)
}

func (m *Model) layout() {
	lw, rw := m.columns()
	bh := m.bodyHeight()
	m.repoList.SetSize(lw, bh/2)
	m.commitList.SetSize(lw, bh-bh/2)
	m.detail.Width = rw - 6
	m.detail.Height = max(bh-chatHeight-1, 3)
	m.chatInput.Width = rw - 10
	m.refresh()
}

// refresh copies workspace state into the widgets.
func (m *Model) refresh() {
	ws := m.deps.Workspace
	if len(m.repoList.Items()) != len(ws.Repos()) || !m.repoListMatches() {
		m.repoList.SetItems(repoItems(ws.Repos()))
	}
	if len(m.commitList.Items()) != len(ws.Commits()) || !m.commitListMatches() {
		m.commitList.SetItems(commitItems(ws.Commits()))
	}

	content, key := m.detailContent()
	m.detail.SetContent(content)
	if key != m.lastShown {
		m.detail.GotoTop()
		m.lastShown = key
	}
}

func (m Model) repoListMatches() bool {
	repos := m.deps.Workspace.Repos()
	for i, it := range m.repoList.Items() {
		if r, ok := it.(repoItem); !ok || !r.r.Same(repos[i]) {
			return false
		}
	}
	return true
}

func (m Model) commitListMatches() bool {
	commits := m.deps.Workspace.Commits()
	for i, it := range m.commitList.Items() {
		if c, ok := it.(commitItem); !ok || c.c.SHA != commits[i].SHA {
			return false
		}
	}
	return true
}

// — views ———————————————————————————————————————————————————————————————————

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.view == viewLogin {
		return m.renderLogin()
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.paneTitle(m.repoList.View(), m.focus == focusRepos),
		m.paneTitle(m.commitList.View(), m.focus == focusCommits),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.renderRight())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderBanner(), m.renderHelp())
}

func (m Model) paneTitle(s string, focused bool) string {
	if focused {
		return s
	}
	return dimStyle.Render(s)
}

func (m Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("commitlens") + "\n\n")

	switch m.deps.Handler.State() {
	case oauth.Exchanging:
		b.WriteString(m.spinner.View() + " Completing login…\n")
	default:
		b.WriteString(fmt.Sprintf("Sign in with %s to browse your repositories.\n\n", m.deps.Forge.Kind()))
		b.WriteString(dimStyle.Render("Enter opens the authorization page in your browser.") + "\n")
		if m.authURL != "" {
			b.WriteString("\n" + labelStyle.Render("If nothing opened, visit:") + "\n")
			b.WriteString(m.authURL + "\n")
		}
	}
	if m.loginErr != "" {
		b.WriteString("\n" + errStyle.Render(m.loginErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Enter log in · q quit"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) renderRight() string {
	_, rw := m.columns()
	bh := m.bodyHeight()

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(rw - 1).
		Height(bh)

	detail := m.detail.View()
	sep := dimStyle.Render(strings.Repeat("─", max(rw-6, 0)))
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, detail, sep, m.renderChat(rw-6)))
}

// detailContent renders the scrollable pane. key changes whenever the
// subject changes, so the pane scrolls back to the top.
func (m Model) detailContent() (content, key string) {
	ws := m.deps.Workspace
	repo, ok := ws.Selected()
	if !ok {
		return dimStyle.Render("Select a repository and press Enter."), ""
	}

	var b strings.Builder
	b.WriteString(detailHeadStyle.Render(repo.FullName()) + "\n\n")

	switch {
	case ws.OverviewLoading():
		b.WriteString(m.spinner.View() + dimStyle.Render(" Loading overview…") + "\n")
	default:
		b.WriteString(ws.Overview() + "\n")
	}
	b.WriteString("\n")

	key = repo.FullName()
	if sha := ws.Analyzing(); sha != "" {
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Analyzing %s…\n\n", short(sha)))
	}
	if a := ws.Analysis(); a != nil {
		key += "@" + a.SHA
		b.WriteString(renderAnalysis(a, m.detail.Width))
	} else if ws.CommitsLoading() {
		b.WriteString(m.spinner.View() + dimStyle.Render(" Loading commits…") + "\n")
	} else if len(ws.Commits()) == 0 && ws.CommitsErr() == nil {
		b.WriteString(dimStyle.Render("No commits found") + "\n")
	} else {
		b.WriteString(dimStyle.Render("Select a commit and press Enter to analyze it.") + "\n")
	}
	return b.String(), key
}

func renderAnalysis(a *model.Analysis, width int) string {
	var b strings.Builder
	sep := dimStyle.Render(strings.Repeat("─", max(width, 0)))

	head := "Commit " + short(a.SHA)
	if a.CommitNumber > 0 {
		head += fmt.Sprintf(" (#%d", a.CommitNumber)
		if a.PreviousNumber > 0 {
			head += fmt.Sprintf(", previous #%d", a.PreviousNumber)
		}
		head += ")"
	}
	b.WriteString(boldStyle.Render(head) + "\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(width, 10)).Render(a.Text) + "\n\n")

	b.WriteString(sep + "\n")
	b.WriteString(renderDiff(a.Diff))
	if len(a.PreviousDiff) > 0 {
		b.WriteString("\n" + sep + "\n")
		b.WriteString(labelStyle.Render("Previous commit") + "\n\n")
		b.WriteString(renderDiff(a.PreviousDiff))
	}
	return b.String()
}

func renderDiff(files []model.FileDiff) string {
	if len(files) == 0 {
		return dimStyle.Render("No changes") + "\n"
	}
	var b strings.Builder
	for _, f := range files {
		b.WriteString(boldStyle.Render(f.Label) + "\n")
		for _, line := range strings.Split(f.Hunk, "\n") {
			switch {
			case strings.HasPrefix(line, "@@"):
				b.WriteString(hunkStyle.Render(line))
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				b.WriteString(dimStyle.Render(line))
			case strings.HasPrefix(line, "+"):
				b.WriteString(addStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				b.WriteString(delStyle.Render(line))
			default:
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderChat(width int) string {
	ws := m.deps.Workspace

	scope := "whole repository"
	if s := ws.Scope(); s.Pinned() {
		scope = "commit " + short(s.SHA) + dimStyle.Render("  (c clears)")
	}

	var lines []string
	wrap := lipgloss.NewStyle().Width(max(width, 10))
	for _, e := range ws.Transcript() {
		var who string
		switch {
		case e.Local:
			who = errStyle.Render("error")
		case e.Speaker == model.SpeakerUser:
			who = userStyle.Render("you")
		default:
			who = assistantStyle.Render("assistant")
		}
		lines = append(lines, strings.Split(wrap.Render(who+"  "+e.Content), "\n")...)
	}
	if ws.ChatPending() {
		lines = append(lines, m.spinner.View()+dimStyle.Render(" thinking…"))
	}

	avail := chatHeight - 4
	if len(lines) > avail {
		lines = lines[len(lines)-avail:]
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("Chat · ") + scope + "\n")
	b.WriteString(strings.Join(lines, "\n") + "\n")
	b.WriteString(m.chatInput.View())
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr))
	}
	return b.String()
}

func (m Model) renderBanner() string {
	err := m.deps.Workspace.Err()
	if err == nil {
		return ""
	}
	return errStyle.Render("  "+api.Describe(err)) + dimStyle.Render("  r retry · esc dismiss")
}

func (m Model) renderHelp() string {
	var text string
	switch m.focus {
	case focusChat:
		text = "Enter send   Esc back   Tab next pane"
	case focusDetail:
		text = "↑/↓ scroll   Tab next pane   x close   o open   q quit"
	default:
		text = "↑/↓ navigate   Enter select   Tab next pane   / chat   o open   x close   c clear scope   r retry   L logout   q quit"
	}
	who := ""
	if u := m.deps.Workspace.User(); u.Login != "" {
		who = okStyle.Render("● ") + u.Login + "   "
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(who+text)
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
