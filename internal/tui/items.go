package tui

import (
	"github.com/charmbracelet/bubbles/list"

	"commitlens/internal/model"
)

// — list items ——————————————————————————————————————————————————————————————

type repoItem struct {
	r model.Repository
}

func (i repoItem) Title() string { return i.r.FullName() }

func (i repoItem) Description() string {
	if i.r.Private {
		return "private"
	}
	return "public"
}

func (i repoItem) FilterValue() string { return i.r.FullName() }

type commitItem struct {
	c model.Commit
}

func (i commitItem) Title() string { return i.c.Short() + " " + i.c.Subject() }

func (i commitItem) Description() string {
	if i.c.Date.IsZero() {
		return i.c.Author
	}
	return i.c.Author + " · " + i.c.Date.Local().Format("2006-01-02 15:04")
}

func (i commitItem) FilterValue() string { return i.c.Message }

func repoItems(repos []model.Repository) []list.Item {
	items := make([]list.Item, len(repos))
	for i, r := range repos {
		items[i] = repoItem{r: r}
	}
	return items
}

func commitItems(commits []model.Commit) []list.Item {
	items := make([]list.Item, len(commits))
	for i, c := range commits {
		items[i] = commitItem{c: c}
	}
	return items
}
