// Package main runs a one-off review of a pull request from the command line.
// It reuses the server's environment configuration but needs no webhook
// secret, which makes it handy for trying out prompts and repository configs.
//
// Usage:
//
//	go run cmd/local/main.go -repo owner/name -pr 42
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/reviewloop/reviewloop/ai"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/github"
	"github.com/reviewloop/reviewloop/review"
)

func main() {
	repoFlag := flag.String("repo", "", "repository as owner/name")
	prFlag := flag.Int("pr", 0, "pull request number")
	checkKey := flag.Bool("check-key", false, "validate the model API key and exit")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))

	if err := run(logger, *repoFlag, *prFlag, *checkKey); err != nil {
		logger.Error("review failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, repoFlag string, prNumber int, checkKey bool) error {
	_ = godotenv.Load()

	// The local runner reads the same variables as the server but skips
	// Settings.Validate: no webhook secret is needed here.
	var settings config.Settings
	if err := env.Parse(&settings); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if settings.AIAPIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}

	ctx := context.Background()

	if checkKey {
		var opts []ai.Option
		if settings.AIBaseURL != "" {
			opts = append(opts, ai.WithBaseURL(settings.AIBaseURL))
		}
		if err := ai.ValidateAPIKey(ctx, settings.AIAPIKey, opts...); err != nil {
			return err
		}
		logger.Info("API key is valid", "key", ai.ExtractKeyHint(settings.AIAPIKey))
		return nil
	}

	owner, repo, err := splitRepo(repoFlag)
	if err != nil {
		return err
	}
	if prNumber <= 0 {
		return fmt.Errorf("-pr must be a positive pull request number")
	}

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
	reviewer := review.NewReviewer(githubClient, modelClient, config.NewLoader(githubClient), logger)

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	return reviewer.Run(runCtx, owner, repo, prNumber, review.TriggerCommand)
}

func splitRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("-repo must be owner/name, got %q", s)
	}
	return owner, repo, nil
}
