package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/reviewloop/reviewloop/ai"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/github"
)

type fakePlatform struct {
	diffs    []github.CodeDiff
	diffErr  error
	postErr  error
	posted   []*github.ReviewRequest
	diffCall int
}

func (f *fakePlatform) GetPullRequestDiff(_ context.Context, _, _ string, _ int) ([]github.CodeDiff, error) {
	f.diffCall++
	return f.diffs, f.diffErr
}

func (f *fakePlatform) PostReview(_ context.Context, _, _ string, _ int, review *github.ReviewRequest) (*github.Review, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.posted = append(f.posted, review)
	return &github.Review{ID: 1, State: "COMMENTED"}, nil
}

type fakeModel struct {
	comments []github.ReviewComment
	err      error
	calls    int
	files    []ai.FileDiff
	context  string
	guidance string
}

func (f *fakeModel) Review(_ context.Context, files []ai.FileDiff, contextNote, instructions string) ([]github.ReviewComment, error) {
	f.calls++
	f.files = files
	f.context = contextNote
	f.guidance = instructions
	return f.comments, f.err
}

type fakeConfigs struct {
	cfg *config.Config
	err error
}

func (f *fakeConfigs) Load(_ context.Context, _, _ string) (*config.Config, error) {
	return f.cfg, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPostsReview(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{
			{Filename: "main.go", Patch: "@@ -1 +1,2 @@\n old\n+new"},
			{Filename: "logo.png"}, // binary, no patch
		},
	}
	model := &fakeModel{
		comments: []github.ReviewComment{
			{Path: "main.go", Body: "check this", Line: 2, Side: "RIGHT"},
		},
	}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 42, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
	if len(model.files) != 1 {
		t.Fatalf("model received %d files, want 1 (binary excluded)", len(model.files))
	}
	if model.files[0].Name != "main.go" {
		t.Errorf("file name = %q, want main.go", model.files[0].Name)
	}
	if model.files[0].Diff == platform.diffs[0].Patch {
		t.Error("diff should be annotated, not the raw patch")
	}
	if model.context != "Pull Request #42 in octocat/hello" {
		t.Errorf("context note = %q", model.context)
	}

	if len(platform.posted) != 1 {
		t.Fatalf("posted %d reviews, want 1", len(platform.posted))
	}
	posted := platform.posted[0]
	if posted.Event != "COMMENT" {
		t.Errorf("Event = %q, want COMMENT", posted.Event)
	}
	if len(posted.Comments) != 1 || posted.Comments[0].Path != "main.go" {
		t.Errorf("Comments = %+v", posted.Comments)
	}
}

func TestRunNoComments(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"}},
	}
	model := &fakeModel{} // model finds nothing

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(platform.posted) != 0 {
		t.Errorf("posted %d reviews, want 0", len(platform.posted))
	}
}

func TestRunNoFiles(t *testing.T) {
	platform := &fakePlatform{}
	model := &fakeModel{}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0", model.calls)
	}
}

func TestRunOnlyBinaryFiles(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{{Filename: "logo.png"}, {Filename: "data.bin"}},
	}
	model := &fakeModel{}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0", model.calls)
	}
}

func TestRunDiffFetchFails(t *testing.T) {
	platform := &fakePlatform{diffErr: errors.New("boom")}
	model := &fakeModel{}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err == nil {
		t.Fatal("Run() should return the platform error")
	}
	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0", model.calls)
	}
}

func TestRunModelFailureDegradesToNoComments(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"}},
	}
	model := &fakeModel{err: errors.New("model timeout")}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v, model failures should not fail the run", err)
	}
	if len(platform.posted) != 0 {
		t.Errorf("posted %d reviews, want 0", len(platform.posted))
	}
}

func TestRunPostFailurePropagates(t *testing.T) {
	platform := &fakePlatform{
		diffs:   []github.CodeDiff{{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"}},
		postErr: errors.New("422"),
	}
	model := &fakeModel{
		comments: []github.ReviewComment{{Path: "main.go", Body: "x", Line: 1, Side: "RIGHT"}},
	}

	reviewer := NewReviewer(platform, model, nil, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err == nil {
		t.Fatal("Run() should return the post error")
	}
}

func TestRunRespectsRepoConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *config.Config
		cfgErr     error
		trigger    Trigger
		wantFetch  bool
		wantReview bool
	}{
		{
			name:       "disabled repo",
			cfg:        &config.Config{Enabled: false, Trigger: config.TriggerAuto},
			trigger:    TriggerEvent,
			wantFetch:  false,
			wantReview: false,
		},
		{
			name:       "on-request skips events",
			cfg:        &config.Config{Enabled: true, Trigger: config.TriggerOnRequest},
			trigger:    TriggerEvent,
			wantFetch:  false,
			wantReview: false,
		},
		{
			name:       "on-request honors command",
			cfg:        &config.Config{Enabled: true, Trigger: config.TriggerOnRequest},
			trigger:    TriggerCommand,
			wantFetch:  true,
			wantReview: true,
		},
		{
			name:       "config load failure falls back to defaults",
			cfgErr:     errors.New("fetch failed"),
			trigger:    TriggerEvent,
			wantFetch:  true,
			wantReview: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := &fakePlatform{
				diffs: []github.CodeDiff{{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"}},
			}
			model := &fakeModel{
				comments: []github.ReviewComment{{Path: "main.go", Body: "x", Line: 1, Side: "RIGHT"}},
			}
			configs := &fakeConfigs{cfg: tt.cfg, err: tt.cfgErr}

			reviewer := NewReviewer(platform, model, configs, testLogger())
			if err := reviewer.Run(context.Background(), "octocat", "hello", 1, tt.trigger); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if gotFetch := platform.diffCall > 0; gotFetch != tt.wantFetch {
				t.Errorf("fetched diffs = %v, want %v", gotFetch, tt.wantFetch)
			}
			if gotReview := len(platform.posted) > 0; gotReview != tt.wantReview {
				t.Errorf("posted review = %v, want %v", gotReview, tt.wantReview)
			}
		})
	}
}

func TestRunAppliesExcludePatterns(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{
			{Filename: "vendor/lib/lib.go", Patch: "@@ -1 +1 @@\n-a\n+b"},
			{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"},
		},
	}
	model := &fakeModel{}
	configs := &fakeConfigs{cfg: &config.Config{
		Enabled: true,
		Trigger: config.TriggerAuto,
		Exclude: []string{"vendor/**"},
	}}

	reviewer := NewReviewer(platform, model, configs, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(model.files) != 1 || model.files[0].Name != "main.go" {
		t.Errorf("model files = %+v, want only main.go", model.files)
	}
}

func TestRunPassesInstructions(t *testing.T) {
	platform := &fakePlatform{
		diffs: []github.CodeDiff{{Filename: "main.go", Patch: "@@ -1 +1 @@\n-a\n+b"}},
	}
	model := &fakeModel{}
	configs := &fakeConfigs{cfg: &config.Config{
		Enabled:      true,
		Trigger:      config.TriggerAuto,
		Instructions: "Focus on security",
	}}

	reviewer := NewReviewer(platform, model, configs, testLogger())
	if err := reviewer.Run(context.Background(), "octocat", "hello", 1, TriggerEvent); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.guidance != "Focus on security" {
		t.Errorf("instructions = %q, want %q", model.guidance, "Focus on security")
	}
}
