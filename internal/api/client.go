// Package api talks to the analysis backend. Every authenticated call carries
// the bearer token as the access_token query parameter.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"commitlens/internal/logging"
	"commitlens/internal/model"
)

const maxErrorBody = 64 << 10

// Client is a thin JSON client over net/http.
type Client struct {
	base *url.URL
	http *http.Client
	log  logging.Logger
	now  func() time.Time
}

// New returns a client rooted at baseURL.
func New(baseURL string, timeout time.Duration, log logging.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if log == nil {
		log = logging.NewNoopLogger()
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  log.With("component", "api"),
		now:  time.Now,
	}, nil
}

// — wire types ——————————————————————————————————————————————————————————————

type exchangeResponse struct {
	AccessToken string          `json:"access_token"`
	User        *model.Identity `json:"user"`
}

type repoJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Private bool   `json:"private"`
	Owner   struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// commitJSON accepts both the nested provider shape and the flattened shape
// some backend versions return.
type commitJSON struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
		Committer struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// AnalyzeResponse is the raw analyze payload.
type AnalyzeResponse struct {
	SHA                  string `json:"sha"`
	Diff                 string `json:"diff"`
	PreviousDiff         string `json:"previous_diff"`
	Analysis             string `json:"analysis"`
	Overview             string `json:"overview"`
	CommitNumber         int    `json:"commit_number"`
	PreviousCommitNumber int    `json:"previous_commit_number"`
}

// ChatRequest is one question plus the transcript context.
type ChatRequest struct {
	Question  string           `json:"question"`
	TargetSHA string           `json:"target_sha,omitempty"`
	History   []model.Exchange `json:"history"`
}

type chatResponse struct {
	History []model.Exchange `json:"history"`
}

type errorBody struct {
	Detail     json.RawMessage `json:"detail"`
	RetryAfter *float64        `json:"retry_after"`
}

// — operations ——————————————————————————————————————————————————————————————

// ExchangeCode trades a one-time authorization code for a credential.
func (c *Client) ExchangeCode(ctx context.Context, provider, code string) (model.Credential, error) {
	q := url.Values{"code": {code}}
	var resp exchangeResponse
	if err := c.do(ctx, http.MethodGet, c.path("auth", provider, "callback"), q, nil, &resp); err != nil {
		return model.Credential{}, err
	}
	cred := model.Credential{Token: resp.AccessToken}
	if resp.User != nil {
		cred.User = *resp.User
	}
	if !cred.Valid() {
		return model.Credential{}, fmt.Errorf("authorization succeeded but the server response is missing the token or user login")
	}
	return cred, nil
}

// ListRepos returns the repositories visible to token.
func (c *Client) ListRepos(ctx context.Context, token string) ([]model.Repository, error) {
	var raw []repoJSON
	if err := c.do(ctx, http.MethodGet, c.path("repos"), bearer(token), nil, &raw); err != nil {
		return nil, err
	}
	repos := make([]model.Repository, 0, len(raw))
	for _, r := range raw {
		if r.Owner.Login == "" || r.Name == "" {
			c.log.Warn("skipping repository without owner or name", "id", r.ID)
			continue
		}
		repos = append(repos, model.Repository{
			ID:      r.ID,
			Owner:   r.Owner.Login,
			Name:    r.Name,
			HTMLURL: r.HTMLURL,
			Private: r.Private,
		})
	}
	return repos, nil
}

// ListCommits returns commits in server order.
func (c *Client) ListCommits(ctx context.Context, token string, repo model.Repository) ([]model.Commit, error) {
	var raw []commitJSON
	if err := c.do(ctx, http.MethodGet, c.path("repos", repo.Owner, repo.Name, "commits"), bearer(token), nil, &raw); err != nil {
		return nil, err
	}
	commits := make([]model.Commit, 0, len(raw))
	for _, r := range raw {
		commits = append(commits, model.Commit{
			SHA:     r.SHA,
			Message: firstNonEmpty(r.Commit.Message, r.Message),
			Author:  firstNonEmpty(r.Commit.Author.Name, r.Commit.Committer.Name),
			Date:    parseTime(firstNonEmpty(r.Commit.Author.Date, r.Commit.Committer.Date, r.Date)),
		})
	}
	return commits, nil
}

// Overview returns the AI summary of a repository. A 404 surfaces as an
// error for which IsNotFound is true.
func (c *Client) Overview(ctx context.Context, token string, repo model.Repository) (string, error) {
	var resp struct {
		Overview string `json:"overview"`
	}
	if err := c.do(ctx, http.MethodGet, c.path("repos", repo.Owner, repo.Name, "overview"), bearer(token), nil, &resp); err != nil {
		return "", err
	}
	return resp.Overview, nil
}

// AnalyzeCommit requests the diff and AI analysis of one commit.
func (c *Client) AnalyzeCommit(ctx context.Context, token string, repo model.Repository, sha string) (AnalyzeResponse, error) {
	var resp AnalyzeResponse
	p := c.path("repos", repo.Owner, repo.Name, "commits", sha, "analyze")
	if err := c.do(ctx, http.MethodPost, p, bearer(token), struct{}{}, &resp); err != nil {
		return AnalyzeResponse{}, err
	}
	return resp, nil
}

// Chat asks a question and returns the server's canonical history.
func (c *Client) Chat(ctx context.Context, token string, repo model.Repository, req ChatRequest) ([]model.Exchange, error) {
	q := bearer(token)
	q.Set("question", req.Question)
	if req.TargetSHA != "" {
		q.Set("target_sha", req.TargetSHA)
	}
	if req.History == nil {
		req.History = []model.Exchange{}
	}
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, c.path("repos", repo.Owner, repo.Name, "chat"), q, req, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// — transport ———————————————————————————————————————————————————————————————

func (c *Client) path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	rel, err := url.Parse(strings.TrimRight(c.base.EscapedPath(), "/") + path)
	if err != nil {
		return fmt.Errorf("build path: %w", err)
	}
	u := *c.base
	u.Path, u.RawPath = rel.Path, rel.RawPath
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return &RemoteError{Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", c.now().Sub(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrAuthExpired
	case http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		if wait == 0 && eb.RetryAfter != nil && *eb.RetryAfter > 0 {
			wait = time.Duration(*eb.RetryAfter * float64(time.Second))
		}
		return &RateLimitError{RetryAfter: wait}
	}
	return &RemoteError{Status: resp.StatusCode, Detail: detailText(eb.Detail, raw)}
}

// detailText extracts a FastAPI-style "detail", which may be a string or a
// structured validation list.
func detailText(detail json.RawMessage, raw []byte) string {
	if len(detail) > 0 {
		var s string
		if err := json.Unmarshal(detail, &s); err == nil {
			return s
		}
		return trimOutput(detail)
	}
	return strings.TrimSpace(trimOutput(raw))
}

func bearer(token string) url.Values {
	return url.Values{"access_token": {token}}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func trimOutput(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}
