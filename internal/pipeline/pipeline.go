// Package pipeline holds the stages of a metadata run: fetch pages into a
// batch, generate frontmatter, then publish it as a pull request or review,
// plus the edge deploy stage.
package pipeline

import (
	"context"
	"time"

	"docmeta/internal/github"
	"docmeta/internal/llm"
	"docmeta/internal/retry"

	"go.uber.org/zap"
)

// Hosting is the part of the GitHub API the stages use.
type Hosting interface {
	GetFileContent(ctx context.Context, path, ref string) (string, error)
	GetRawContent(ctx context.Context, rawURL string) (string, error)
	ListDirectory(ctx context.Context, dir, ref string) ([]github.ContentEntry, error)
	ListPullRequestFiles(ctx context.Context, number int) ([]github.PullRequestFile, error)

	GetRef(ctx context.Context, ref string) (github.Ref, error)
	CreateBranch(ctx context.Context, ref, sha string) (github.Ref, bool, error)
	CreateBlob(ctx context.Context, content string) (string, error)
	CreateTree(ctx context.Context, baseTree string, entries []github.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, message, tree string, parents []string) (string, error)
	UpdateRef(ctx context.Context, ref, sha string, force bool) error
	CreatePullRequest(ctx context.Context, pr github.NewPullRequest) (github.PullRequest, error)
	CreateReview(ctx context.Context, number int, review github.Review) (github.ReviewResult, error)
}

var _ Hosting = (*github.Client)(nil)

func headsRef(branch string) string {
	return "heads/" + branch
}

// completionPolicy retries transient completion failures and logs each retry.
func completionPolicy(logger *zap.Logger) retry.Policy {
	policy := retry.Default(llm.IsTransient)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return policy
}

// withDefaults fills the classifier and retry hook of p from current.
func withDefaults(p, current retry.Policy) retry.Policy {
	if p.IsTransient == nil {
		p.IsTransient = llm.IsTransient
	}
	if p.OnRetry == nil {
		p.OnRetry = current.OnRetry
	}
	return p
}
