package forge

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/gitlab"

	"commitlens/internal/model"
)

type gitLab struct{}

func (g *gitLab) Kind() string { return "gitlab" }

func (g *gitLab) Endpoint() oauth2.Endpoint { return gitlab.Endpoint }

func (g *gitLab) DefaultScopes() []string { return []string{"read_api", "read_user"} }

func (g *gitLab) RepoURL(repo model.Repository) string {
	return webURL("https://gitlab.com", repo)
}

// GitLab routes commit pages under the "-" separator.
func (g *gitLab) CommitURL(repo model.Repository, sha string) string {
	return g.RepoURL(repo) + "/-/commit/" + sha
}
