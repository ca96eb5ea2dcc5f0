// Package main runs the reviewloop webhook server.
//
// Configuration via environment variables (a local .env file is honored):
//
//	GITHUB_WEBHOOK_SECRET   - Webhook signature verification secret (required)
//	GITHUB_TOKEN            - Personal access token (exclusive with app credentials)
//	GITHUB_APP_ID           - GitHub App ID
//	GITHUB_PRIVATE_KEY      - GitHub App private key in PEM format
//	GITHUB_PRIVATE_KEY_PATH - Path to the private key file (alternative to inline)
//	AI_API_KEY              - Review model API key (required)
//	AI_MODEL                - Review model (default: claude-sonnet-4-20250514)
//	PORT                    - HTTP server port (default: 8080)
//	LOG_LEVEL               - debug, info, warn, error (default: info)
//
// Usage:
//
//	go run cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reviewloop/reviewloop/ai"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/github"
	"github.com/reviewloop/reviewloop/review"
)

var (
	logger         *slog.Logger
	webhookHandler *github.WebhookHandler
	reviewer       *review.Reviewer
)

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(settings.LogLevel),
	}))

	if err := initialize(settings); err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/github", handleWebhook)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/", handleRoot)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for model API calls
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", settings.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func initialize(settings *config.Settings) error {
	webhookHandler = github.NewWebhookHandler(settings.WebhookSecret)

	var appAuth *github.AppAuth
	if settings.HasAppCredentials() {
		pem, err := settings.PrivateKeyPEM()
		if err != nil {
			return err
		}
		appAuth, err = github.NewAppAuth(settings.AppID, pem)
		if err != nil {
			return err
		}
	}

	tokens, err := github.NewTokenSource(settings.Token, appAuth)
	if err != nil {
		return err
	}

	githubClient := github.NewClient(tokens)

	modelClient := ai.NewClient(settings.AIAPIKey, logger,
		ai.WithModel(settings.AIModel),
		ai.WithBaseURL(settings.AIBaseURL),
	)

	loader := config.NewLoader(githubClient)
	reviewer = review.NewReviewer(githubClient, modelClient, loader, logger)

	logger.Info("initialized",
		"model", settings.AIModel,
		"app_auth", settings.HasAppCredentials(),
	)

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"name":   "reviewloop",
		"status": "running",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	logger.Info("received webhook", "event", eventType, "size", len(payload))

	// Signature comes first: an unauthenticated payload is never parsed.
	signature := r.Header.Get("X-Hub-Signature-256")
	if err := webhookHandler.VerifySignature(payload, signature); err != nil {
		logger.Error("signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	switch eventType {
	case "ping":
		logger.Info("received ping")
		jsonResponse(w, http.StatusOK, map[string]string{"message": "pong"})
	case "pull_request":
		handlePullRequest(w, eventType, payload)
	case "issue_comment":
		handleIssueComment(w, payload)
	default:
		logger.Info("ignoring event", "type", eventType)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "event ignored"})
	}
}

func handlePullRequest(w http.ResponseWriter, eventType string, payload []byte) {
	event, err := webhookHandler.ParsePullRequestEvent(payload)
	if err != nil {
		logger.Error("failed to parse event", "error", err)
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	if !webhookHandler.ShouldProcess(eventType, event) {
		logger.Info("skipping event", "action", event.Action)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "event skipped"})
		return
	}

	logger.Info("processing PR",
		"repo", event.Repository.FullName,
		"pr", event.Number,
		"action", event.Action,
	)

	// Respond immediately; the review runs in the background.
	jsonResponse(w, http.StatusOK, map[string]string{"message": "review started"})

	owner := event.Repository.Owner.Login
	repo := event.Repository.Name
	runReview(owner, repo, event.Number, review.TriggerEvent)
}

func handleIssueComment(w http.ResponseWriter, payload []byte) {
	event, err := webhookHandler.ParseIssueCommentEvent(payload)
	if err != nil {
		logger.Error("failed to parse issue comment event", "error", err)
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	if !webhookHandler.ShouldProcessIssueComment(event) {
		logger.Info("ignoring comment", "action", event.Action)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "comment ignored"})
		return
	}

	logger.Info("processing review command",
		"repo", event.Repository.FullName,
		"pr", event.Issue.Number,
		"user", event.Comment.User.Login,
	)

	jsonResponse(w, http.StatusOK, map[string]string{"message": "review started"})

	owner := event.Repository.Owner.Login
	repo := event.Repository.Name
	runReview(owner, repo, event.Issue.Number, review.TriggerCommand)
}

func runReview(owner, repo string, prNumber int, trigger review.Trigger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := reviewer.Run(ctx, owner, repo, prNumber, trigger); err != nil {
			logger.Error("review failed", "error", err)
		}
	}()
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
