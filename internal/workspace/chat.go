package workspace

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"commitlens/internal/api"
	"commitlens/internal/model"
)

// ValidationError is a local precondition failure. It never reaches the
// network.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// Submit asks question in the current scope. The question is appended to
// the transcript before the request is issued; the transcript is replaced by
// the server's history when the answer arrives.
func (m *Model) Submit(question string) (tea.Cmd, error) {
	q := strings.TrimSpace(question)
	if !m.active || m.selected == nil {
		return nil, &ValidationError{Field: "repository", Msg: "Select a repository first."}
	}
	if q == "" {
		return nil, &ValidationError{Field: "question", Msg: "Question cannot be empty."}
	}
	if m.chatPending {
		return nil, &ValidationError{Field: "question", Msg: "Still waiting for the previous answer."}
	}

	req := api.ChatRequest{
		Question:  q,
		TargetSHA: m.scope.SHA,
		History:   historyOf(m.transcript),
	}
	m.transcript = append(m.transcript, model.Entry{Speaker: model.SpeakerUser, Content: q})
	m.chatGen++
	m.chatPending = true

	return chatCmd(m.client, m.cred.Token, *m.selected, req, m.repoGen, m.chatGen), nil
}

// ClearScope unpins the conversation from a commit. The transcript is kept.
func (m *Model) ClearScope() {
	m.scope = model.Scope{}
}

func (m *Model) onChat(msg chatAnsweredMsg) tea.Cmd {
	if msg.repoGen != m.repoGen || msg.gen != m.chatGen {
		return nil
	}
	m.chatPending = false
	if msg.err != nil {
		if cmd, ok := m.handleErr(msg.err); ok {
			return cmd
		}
		m.log.Warn("chat failed", "error", msg.err)
		m.transcript = append(m.transcript, model.Entry{
			Speaker: model.SpeakerAssistant,
			Content: api.Describe(msg.err),
			Local:   true,
		})
		return nil
	}
	m.transcript = flatten(msg.history)
	return nil
}

// flatten turns server history into transcript entries, question before
// answer, in server order. Unanswered questions have no assistant entry.
func flatten(history []model.Exchange) []model.Entry {
	entries := make([]model.Entry, 0, 2*len(history))
	for _, ex := range history {
		entries = append(entries, model.Entry{Speaker: model.SpeakerUser, Content: ex.Question})
		if ex.Answer != nil {
			entries = append(entries, model.Entry{Speaker: model.SpeakerAssistant, Content: *ex.Answer})
		}
	}
	return entries
}

// historyOf pairs answered questions back up for the request body. Local
// error replies and questions they answered are left out.
func historyOf(entries []model.Entry) []model.Exchange {
	history := []model.Exchange{}
	var pending *string
	for _, e := range entries {
		if e.Local {
			pending = nil
			continue
		}
		switch e.Speaker {
		case model.SpeakerUser:
			q := e.Content
			pending = &q
		case model.SpeakerAssistant:
			if pending == nil {
				continue
			}
			a := e.Content
			history = append(history, model.Exchange{Question: *pending, Answer: &a})
			pending = nil
		}
	}
	return history
}

func chatCmd(c Client, token string, repo model.Repository, req api.ChatRequest, repoGen, gen int) tea.Cmd {
	return func() tea.Msg {
		history, err := c.Chat(context.Background(), token, repo, req)
		return chatAnsweredMsg{repoGen: repoGen, gen: gen, history: history, err: err}
	}
}
