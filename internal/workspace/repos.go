package workspace

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/api"
	"commitlens/internal/model"
)

const noOverview = "No overview available for this repository."

func (m *Model) loadRepos() tea.Cmd {
	m.dirGen++
	m.reposLoading = true
	m.reposErr = nil
	return fetchReposCmd(m.client, m.cred.Token, m.dirGen)
}

// SelectRepo makes repo current. Commits, overview, analysis, scope and
// transcript from the previous repository are dropped, and commits and
// overview are fetched independently.
func (m *Model) SelectRepo(repo model.Repository) tea.Cmd {
	if !m.active {
		return nil
	}
	m.repoGen++
	m.analyzeGen++
	m.chatGen++

	r := repo
	m.selected = &r
	m.commits = nil
	m.commitsLoading = true
	m.commitsErr = nil
	m.overview = ""
	m.overviewNote = ""
	m.overviewLoading = true
	m.analyzing = ""
	m.requested = ""
	m.analysis = nil
	m.analysisErr = nil
	m.chatPending = false
	m.transcript = nil
	m.scope = model.Scope{}

	m.log.Debug("repository selected", "repo", repo.FullName())
	return tea.Batch(
		fetchCommitsCmd(m.client, m.cred.Token, repo, m.repoGen),
		fetchOverviewCmd(m.client, m.cred.Token, repo, m.repoGen),
	)
}

func (m *Model) onRepos(msg reposLoadedMsg) tea.Cmd {
	if msg.gen != m.dirGen {
		return nil
	}
	m.reposLoading = false
	if msg.err != nil {
		if cmd, ok := m.handleErr(msg.err); ok {
			return cmd
		}
		m.log.Warn("list repositories failed", "error", msg.err)
		m.reposErr = msg.err
		return nil
	}
	m.reposErr = nil
	m.repos = msg.repos

	if m.selected == nil && m.prefer != nil {
		for _, r := range m.repos {
			if sameRepo(r, *m.prefer) {
				return m.SelectRepo(r)
			}
		}
	}
	return nil
}

func (m *Model) onCommits(msg commitsLoadedMsg) tea.Cmd {
	if msg.gen != m.repoGen {
		m.log.Debug("discarding stale commits", "gen", msg.gen, "current", m.repoGen)
		return nil
	}
	m.commitsLoading = false
	if msg.err != nil {
		if cmd, ok := m.handleErr(msg.err); ok {
			return cmd
		}
		m.log.Warn("list commits failed", "error", msg.err)
		m.commitsErr = msg.err
		return nil
	}
	m.commitsErr = nil
	m.commits = msg.commits
	return nil
}

// onOverview never touches commits: overview failures only change the
// placeholder text.
func (m *Model) onOverview(msg overviewLoadedMsg) tea.Cmd {
	if msg.gen != m.repoGen {
		return nil
	}
	m.overviewLoading = false
	switch {
	case msg.err == nil && msg.text != "":
		m.overview = msg.text
	case msg.err == nil, api.IsNotFound(msg.err):
		m.overviewNote = noOverview
	default:
		if cmd, ok := m.handleErr(msg.err); ok {
			return cmd
		}
		m.log.Debug("overview unavailable", "error", msg.err)
		m.overviewNote = "Overview unavailable: " + api.Describe(msg.err)
	}
	return nil
}

func fetchReposCmd(c Client, token string, gen int) tea.Cmd {
	return func() tea.Msg {
		repos, err := c.ListRepos(context.Background(), token)
		return reposLoadedMsg{gen: gen, repos: repos, err: err}
	}
}

func fetchCommitsCmd(c Client, token string, repo model.Repository, gen int) tea.Cmd {
	return func() tea.Msg {
		commits, err := c.ListCommits(context.Background(), token, repo)
		return commitsLoadedMsg{gen: gen, commits: commits, err: err}
	}
}

func fetchOverviewCmd(c Client, token string, repo model.Repository, gen int) tea.Cmd {
	return func() tea.Msg {
		text, err := c.Overview(context.Background(), token, repo)
		return overviewLoadedMsg{gen: gen, text: text, err: err}
	}
}
