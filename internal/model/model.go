package model

import (
	"strings"
	"time"
)

// Identity is the authenticated user as reported by the OAuth exchange.
type Identity struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// Credential pairs the bearer token with the identity it was issued to.
type Credential struct {
	Token string
	User  Identity
}

// Valid reports whether both the token and a non-empty login are present.
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.User.Login) != ""
}

// Repository identifies a repository by (owner, name).
type Repository struct {
	ID      int64
	Owner   string
	Name    string
	HTMLURL string
	Private bool
}

// FullName returns "owner/name".
func (r Repository) FullName() string { return r.Owner + "/" + r.Name }

// Same reports whether r and o name the same repository.
func (r Repository) Same(o Repository) bool {
	return r.Owner == o.Owner && r.Name == o.Name
}

// Commit is an immutable commit reference. Order is whatever the server returned.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// Short returns the abbreviated sha.
func (c Commit) Short() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return subject
}

// FileStatus classifies a per-file diff record.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileDeleted  FileStatus = "deleted"
	FileModified FileStatus = "modified"
	FileRenamed  FileStatus = "renamed"
	FileCopied   FileStatus = "copied"
)

// FileDiff is one file's slice of a unified diff.
type FileDiff struct {
	Header  string // the "diff --git a/... b/..." line
	Label   string // e.g. "modified x", "renamed y → z"
	OldPath string
	NewPath string
	Status  FileStatus
	Hunk    string // every line after the header, up to the next file
}

// Analysis is the result of analyzing one commit.
type Analysis struct {
	SHA            string
	Text           string // markdown
	Overview       string
	Diff           []FileDiff
	PreviousDiff   []FileDiff
	CommitNumber   int // 0 when the server did not report one
	PreviousNumber int
}

// Speaker identifies who authored a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one line of the conversation transcript.
type Entry struct {
	Speaker Speaker
	Content string
	Local   bool // client-side error reply, never sent back as history
}

// Scope selects what chat questions are answered against.
// An empty SHA means the whole repository.
type Scope struct {
	SHA string
}

// Pinned reports whether the scope is pinned to one commit.
func (s Scope) Pinned() bool { return s.SHA != "" }

// Exchange is one question/answer pair in the server's canonical history.
type Exchange struct {
	Question string  `json:"question"`
	Answer   *string `json:"answer,omitempty"`
}
