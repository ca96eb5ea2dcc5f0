package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ReviewCommand is the comment token that triggers an on-demand review.
const ReviewCommand = "/review"

var (
	// ErrInvalidSignature indicates the webhook signature verification failed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingSignature indicates the webhook signature header is missing.
	ErrMissingSignature = errors.New("missing webhook signature")
)

// WebhookHandler verifies and classifies GitHub webhook deliveries.
type WebhookHandler struct {
	secret []byte
}

// NewWebhookHandler creates a new webhook handler with the given shared secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{
		secret: []byte(secret),
	}
}

// VerifySignature verifies the webhook payload signature.
// The signature header should be in the format "sha256=<hex-encoded-signature>".
// An empty header is never treated as "no signature required".
func (h *WebhookHandler) VerifySignature(payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return ErrMissingSignature
	}

	// Parse signature header (format: sha256=<signature>)
	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return ErrInvalidSignature
	}

	signature, err := hex.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	// Compute expected signature
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time and does not short-circuit on length
	if !hmac.Equal(signature, expected) {
		return ErrInvalidSignature
	}

	return nil
}

// ParsePullRequestEvent parses a pull_request webhook payload.
func (h *WebhookHandler) ParsePullRequestEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if event.PullRequest == nil {
		return nil, errors.New("payload is not a pull request event")
	}
	if event.Repository == nil || event.Repository.Owner == nil {
		return nil, errors.New("payload is missing repository")
	}

	return &event, nil
}

// ShouldProcess determines if a pull_request event should trigger a review.
// Returns true for actions: opened, synchronize.
func (h *WebhookHandler) ShouldProcess(eventType string, event *WebhookEvent) bool {
	if eventType != "pull_request" {
		return false
	}

	switch event.Action {
	case "opened", "synchronize":
		return true
	default:
		return false
	}
}

// ParseIssueCommentEvent parses an issue_comment webhook payload.
func (h *WebhookHandler) ParseIssueCommentEvent(payload []byte) (*IssueCommentEvent, error) {
	var event IssueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse issue comment payload: %w", err)
	}

	if event.Comment == nil {
		return nil, errors.New("payload is missing comment")
	}
	if event.Issue == nil {
		return nil, errors.New("payload is missing issue")
	}
	if event.Repository == nil || event.Repository.Owner == nil {
		return nil, errors.New("payload is missing repository")
	}

	return &event, nil
}

// ShouldProcessIssueComment determines if an issue comment should trigger a review.
// Returns true if:
//   - The action is "created"
//   - The issue is a pull request (has a pull_request link)
//   - The comment body starts with the /review command
func (h *WebhookHandler) ShouldProcessIssueComment(event *IssueCommentEvent) bool {
	if event.Action != "created" {
		return false
	}

	if event.Issue == nil || event.Issue.PullRequest == nil {
		return false // Not a PR comment
	}

	if event.Comment == nil {
		return false
	}

	return HasReviewCommand(event.Comment.Body)
}

// HasReviewCommand reports whether a comment body, after trimming whitespace,
// starts with the /review command.
func HasReviewCommand(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), ReviewCommand)
}

// SplitFullName splits an "owner/repo" full name into its parts.
func SplitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository full name: %q", fullName)
	}
	return parts[0], parts[1], nil
}
