package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewloop/reviewloop/ai"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/github"
)

// Trigger identifies what initiated a review run.
type Trigger string

const (
	// TriggerEvent marks runs started by an automatic pull_request delivery.
	TriggerEvent Trigger = "event"
	// TriggerCommand marks runs started by an explicit /review comment.
	TriggerCommand Trigger = "command"
)

// PlatformClient is the slice of the hosting-platform API the orchestrator
// depends on.
type PlatformClient interface {
	GetPullRequestDiff(ctx context.Context, owner, repo string, prNumber int) ([]github.CodeDiff, error)
	PostReview(ctx context.Context, owner, repo string, prNumber int, review *github.ReviewRequest) (*github.Review, error)
}

// ModelClient produces review comments for a set of annotated file diffs.
type ModelClient interface {
	Review(ctx context.Context, files []ai.FileDiff, contextNote, instructions string) ([]github.ReviewComment, error)
}

// ConfigSource loads per-repository review configuration.
type ConfigSource interface {
	Load(ctx context.Context, owner, repo string) (*config.Config, error)
}

// Reviewer coordinates a review run: it pulls the changed files, annotates
// their diffs with new-file line numbers, requests one combined model review,
// and posts the resulting comments as a single COMMENT review.
type Reviewer struct {
	platform PlatformClient
	model    ModelClient
	configs  ConfigSource
	logger   *slog.Logger
}

// NewReviewer creates a Reviewer. configs may be nil, in which case every
// repository is reviewed with the default configuration.
func NewReviewer(platform PlatformClient, model ModelClient, configs ConfigSource, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		platform: platform,
		model:    model,
		configs:  configs,
		logger:   logger,
	}
}

// Run reviews one pull request. Platform failures are logged with full
// context and returned to the caller; a failed model call degrades to
// "no comments" and the run completes successfully.
func (r *Reviewer) Run(ctx context.Context, owner, repo string, prNumber int, trigger Trigger) error {
	logger := r.logger.With("owner", owner, "repo", repo, "pr", prNumber)
	logger.Info("starting review", "trigger", string(trigger))

	cfg := r.loadConfig(ctx, owner, repo, logger)
	if !cfg.Enabled {
		logger.Info("review skipped: disabled by repository config")
		return nil
	}
	if trigger == TriggerEvent && !cfg.ShouldReviewOnEvent() {
		logger.Info("review skipped: repository config requires /review command", "config_trigger", cfg.Trigger)
		return nil
	}

	diffs, err := r.platform.GetPullRequestDiff(ctx, owner, repo, prNumber)
	if err != nil {
		logger.Error("failed to fetch pull request files", "error", err)
		return fmt.Errorf("failed to fetch files for %s/%s#%d: %w", owner, repo, prNumber, err)
	}

	if len(diffs) == 0 {
		logger.Info("no files to review")
		return nil
	}

	files := r.eligibleFiles(diffs, cfg)
	if len(files) == 0 {
		logger.Info("no reviewable patches", "total_files", len(diffs))
		return nil
	}

	contextNote := fmt.Sprintf("Pull Request #%d in %s/%s", prNumber, owner, repo)
	comments, err := r.model.Review(ctx, files, contextNote, cfg.Instructions)
	if err != nil {
		// Model failures never fail the run; the review degrades to
		// "no issues found".
		logger.Warn("model review failed, treating as no comments", "error", err)
		comments = nil
	}

	if len(comments) == 0 {
		logger.Info("no issues found", "files_reviewed", len(files))
		return nil
	}

	posted, err := r.platform.PostReview(ctx, owner, repo, prNumber, &github.ReviewRequest{
		Event:    "COMMENT",
		Comments: comments,
	})
	if err != nil {
		logger.Error("failed to post review", "error", err, "comments", len(comments))
		return fmt.Errorf("failed to post review for %s/%s#%d: %w", owner, repo, prNumber, err)
	}

	logger.Info("posted review", "review_id", posted.ID, "comments", len(comments), "url", posted.HTMLURL)
	return nil
}

// loadConfig fetches the repository's review config, falling back to the
// defaults when the loader is absent or the fetch fails.
func (r *Reviewer) loadConfig(ctx context.Context, owner, repo string, logger *slog.Logger) *config.Config {
	if r.configs == nil {
		return config.DefaultConfig()
	}

	cfg, err := r.configs.Load(ctx, owner, repo)
	if err != nil {
		logger.Warn("failed to load repository config, using defaults", "error", err)
		return config.DefaultConfig()
	}
	return cfg
}

// eligibleFiles filters the changed files down to those carrying a patch and
// not excluded by the repository config, annotating each surviving diff.
func (r *Reviewer) eligibleFiles(diffs []github.CodeDiff, cfg *config.Config) []ai.FileDiff {
	files := make([]ai.FileDiff, 0, len(diffs))
	for _, d := range diffs {
		if d.Patch == "" {
			// Binary files and content-free renames carry no patch.
			continue
		}
		if cfg.ShouldExcludeFile(d.Filename) {
			continue
		}
		files = append(files, ai.FileDiff{
			Name: d.Filename,
			Diff: AnnotateDiffWithLineNumbers(d.Patch),
		})
	}
	return files
}
