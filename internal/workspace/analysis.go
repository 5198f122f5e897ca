package workspace

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/diff"
	"commitlens/internal/model"
)

// Analyze requests the diff and analysis of sha in the selected repository.
// Only the most recent request is ever displayed.
func (m *Model) Analyze(sha string) tea.Cmd {
	if !m.active || m.selected == nil || sha == "" {
		return nil
	}
	m.analyzeGen++
	m.analyzing = sha
	m.requested = sha
	m.analysisErr = nil
	return analyzeCmd(m.client, m.cred.Token, *m.selected, sha, m.repoGen, m.analyzeGen)
}

// CloseAnalysis hides the diff and analysis panes. Scope and transcript are
// left alone.
func (m *Model) CloseAnalysis() {
	m.analyzeGen++
	m.analyzing = ""
	m.requested = ""
	m.analysis = nil
	m.analysisErr = nil
}

func (m *Model) onAnalyzed(msg analyzedMsg) tea.Cmd {
	if msg.repoGen != m.repoGen || msg.gen != m.analyzeGen {
		m.log.Debug("discarding stale analysis", "sha", msg.sha)
		return nil
	}
	m.analyzing = ""
	if msg.err != nil {
		if cmd, ok := m.handleErr(msg.err); ok {
			return cmd
		}
		// previous analysis stays on screen; scope is not pinned
		m.log.Warn("analyze failed", "sha", msg.sha, "error", msg.err)
		m.analysisErr = msg.err
		return nil
	}

	sha := msg.resp.SHA
	if sha == "" {
		sha = msg.sha
	}
	m.analysis = &model.Analysis{
		SHA:            sha,
		Text:           msg.resp.Analysis,
		Overview:       msg.resp.Overview,
		Diff:           diff.Parse(msg.resp.Diff),
		PreviousDiff:   diff.Parse(msg.resp.PreviousDiff),
		CommitNumber:   msg.resp.CommitNumber,
		PreviousNumber: msg.resp.PreviousCommitNumber,
	}
	if msg.resp.Overview != "" {
		m.overview = msg.resp.Overview
	}
	m.analysisErr = nil
	m.scope = model.Scope{SHA: msg.sha}
	return nil
}

func analyzeCmd(c Client, token string, repo model.Repository, sha string, repoGen, gen int) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.AnalyzeCommit(context.Background(), token, repo, sha)
		return analyzedMsg{repoGen: repoGen, gen: gen, sha: sha, resp: resp, err: err}
	}
}
