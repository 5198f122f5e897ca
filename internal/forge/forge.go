package forge

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"commitlens/internal/model"
)

// Forge abstracts the code-hosting provider the user authenticates against.
type Forge interface {
	Kind() string // "github" | "gitlab"
	Endpoint() oauth2.Endpoint
	DefaultScopes() []string
	RepoURL(repo model.Repository) string
	CommitURL(repo model.Repository, sha string) string
}

// AuthOpts are the parameters for building an authorization URL.
type AuthOpts struct {
	ClientID    string
	RedirectURL string
	Scopes      []string // empty means the forge defaults
	State       string
}

// New returns the forge for kind.
func New(kind string) (Forge, error) {
	switch strings.ToLower(kind) {
	case "github", "":
		return &gitHub{}, nil
	case "gitlab":
		return &gitLab{}, nil
	default:
		return nil, fmt.Errorf("unknown forge %q", kind)
	}
}

// Detect returns the forge for a remote host, or nil if unrecognised.
func Detect(host string) Forge {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "github"):
		return &gitHub{}
	case strings.Contains(host, "gitlab"):
		return &gitLab{}
	default:
		return nil
	}
}

// AuthorizeURL returns the page the user visits to grant access.
func AuthorizeURL(f Forge, opts AuthOpts) (string, error) {
	if opts.ClientID == "" {
		return "", fmt.Errorf("oauth.client_id is not configured")
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = f.DefaultScopes()
	}
	cfg := &oauth2.Config{
		ClientID:    opts.ClientID,
		RedirectURL: opts.RedirectURL,
		Endpoint:    f.Endpoint(),
		Scopes:      scopes,
	}
	return cfg.AuthCodeURL(opts.State), nil
}

func webURL(base string, repo model.Repository) string {
	if repo.HTMLURL != "" {
		return strings.TrimRight(repo.HTMLURL, "/")
	}
	return base + "/" + repo.Owner + "/" + repo.Name
}
