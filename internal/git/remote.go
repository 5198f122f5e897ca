package git

import (
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// Remote is a parsed clone URL.
type Remote struct {
	Host  string
	Owner string // may contain "/" for nested GitLab groups
	Name  string
}

// RepoRoot returns the absolute path of the git repository containing dir.
func RepoRoot(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Origin returns the parsed origin remote of the repository containing dir.
func Origin(dir string) (Remote, error) {
	out, err := exec.Command("git", "-C", dir, "remote", "get-url", "origin").Output()
	if err != nil {
		return Remote{}, fmt.Errorf("git remote get-url: %w", err)
	}
	r, ok := ParseRemote(strings.TrimSpace(string(out)))
	if !ok {
		return Remote{}, fmt.Errorf("unrecognised remote %q", strings.TrimSpace(string(out)))
	}
	return r, nil
}

// ParseRemote understands https, ssh:// and scp-style (git@host:owner/name) URLs.
func ParseRemote(raw string) (Remote, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}, false
	}

	var host, path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, false
		}
		host, path = u.Hostname(), u.Path
	} else {
		// scp-like: [user@]host:path
		at := strings.LastIndex(raw, "@")
		hostPath := raw[at+1:]
		h, p, ok := strings.Cut(hostPath, ":")
		if !ok {
			return Remote{}, false
		}
		host, path = h, p
	}

	path = strings.Trim(strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git"), "/")
	idx := strings.LastIndex(path, "/")
	if host == "" || idx <= 0 || idx == len(path)-1 {
		return Remote{}, false
	}
	return Remote{
		Host:  strings.ToLower(host),
		Owner: path[:idx],
		Name:  path[idx+1:],
	}, true
}
