package forge

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"commitlens/internal/model"
)

type gitHub struct{}

func (g *gitHub) Kind() string { return "github" }

func (g *gitHub) Endpoint() oauth2.Endpoint { return github.Endpoint }

// repo covers private repositories; user covers the profile.
func (g *gitHub) DefaultScopes() []string { return []string{"repo", "user"} }

func (g *gitHub) RepoURL(repo model.Repository) string {
	return webURL("https://github.com", repo)
}

func (g *gitHub) CommitURL(repo model.Repository, sha string) string {
	return g.RepoURL(repo) + "/commit/" + sha
}
