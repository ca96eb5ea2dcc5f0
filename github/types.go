// Package github provides the GitHub API client, credential broker, and
// webhook handling for the reviewer.
package github

import "time"

// WebhookEvent represents a pull_request webhook event.
type WebhookEvent struct {
	Action       string        `json:"action"`
	Number       int           `json:"number"`
	PullRequest  *PullRequest  `json:"pull_request,omitempty"`
	Repository   *Repository   `json:"repository"`
	Installation *Installation `json:"installation,omitempty"`
	Sender       *User         `json:"sender"`
}

// PullRequest represents a GitHub pull request.
type PullRequest struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	State   string `json:"state"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// Repository represents a GitHub repository.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         *User  `json:"owner"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// User represents a GitHub user or organization.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Installation represents a GitHub App installation reference in a webhook payload.
type Installation struct {
	ID int64 `json:"id"`
}

// CodeDiff represents one changed file in a pull request, as returned by the
// pulls/{n}/files endpoint. Patch is empty for binary files and renames without
// content changes; such files are excluded from review.
type CodeDiff struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"` // added, removed, modified, renamed, copied, changed, unchanged
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
}

// ReviewComment represents a comment anchored to a specific line in a pull
// request review. Line is meaningful only on the RIGHT side.
type ReviewComment struct {
	Path      string `json:"path"`
	Body      string `json:"body"`
	Line      int    `json:"line,omitempty"`
	Side      string `json:"side,omitempty"`     // LEFT or RIGHT
	Position  int    `json:"position,omitempty"` // deprecated offset form
	StartLine int    `json:"start_line,omitempty"`
	StartSide string `json:"start_side,omitempty"`
}

// ReviewRequest represents a request to create a pull request review.
type ReviewRequest struct {
	Body     string          `json:"body,omitempty"`
	Event    string          `json:"event"` // APPROVE, REQUEST_CHANGES, COMMENT
	Comments []ReviewComment `json:"comments,omitempty"`
}

// Review represents a created pull request review.
type Review struct {
	ID          int64     `json:"id"`
	User        *User     `json:"user"`
	Body        string    `json:"body"`
	State       string    `json:"state"`
	HTMLURL     string    `json:"html_url"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FileContent represents the content of a file from the contents endpoint.
type FileContent struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// IssueCommentEvent represents an issue_comment webhook event. PR comments
// arrive through the issues API, so a comment on a PR carries an Issue whose
// PullRequest link is non-nil.
type IssueCommentEvent struct {
	Action       string        `json:"action"` // created, edited, deleted
	Issue        *Issue        `json:"issue"`
	Comment      *IssueComment `json:"comment"`
	Repository   *Repository   `json:"repository"`
	Installation *Installation `json:"installation,omitempty"`
	Sender       *User         `json:"sender"`
}

// Issue represents a GitHub issue (PRs are also issues).
type Issue struct {
	ID          int64        `json:"id"`
	Number      int          `json:"number"`
	Title       string       `json:"title"`
	State       string       `json:"state"`
	PullRequest *IssuePRLink `json:"pull_request,omitempty"` // non-nil iff the issue is a PR
}

// IssuePRLink contains PR-specific URLs when an issue is a PR.
type IssuePRLink struct {
	URL     string `json:"url"`
	HTMLURL string `json:"html_url"`
	DiffURL string `json:"diff_url"`
}

// IssueComment represents a comment on an issue or PR.
type IssueComment struct {
	ID   int64  `json:"id"`
	User *User  `json:"user"`
	Body string `json:"body"`
}
