package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"docmeta/internal/batch"
	"docmeta/internal/frontmatter"
	"docmeta/internal/github"

	"go.uber.org/zap"
)

const (
	CommitMessage = "[ai-generated]Update metadata for all documentation files"
	PRTitle       = "[AI PR] Metadata Update: Generated metadata for documentation files"
)

// PRCreator commits generated blocks to a branch and opens a pull request.
type PRCreator struct {
	hosting Hosting
	base    string
	head    string
	logger  *zap.Logger
}

func NewPRCreator(hosting Hosting, base, head string, logger *zap.Logger) *PRCreator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PRCreator{hosting: hosting, base: base, head: head, logger: logger.With(zap.String("stage", "create-pr"))}
}

type PRResult struct {
	Branch        string
	BranchCreated bool
	Commit        string
	Files         []string
	// PullRequest is zero when a pull request for the branch was already open.
	PullRequest github.PullRequest
}

// Run rewrites every document of generated on the head branch in a single
// commit. Blobs already created are left behind if a later step fails.
func (p *PRCreator) Run(ctx context.Context, generated batch.Batch) (PRResult, error) {
	res := PRResult{Branch: p.head}
	if err := generated.RequireNonEmpty(); err != nil {
		return res, err
	}

	baseRef, err := p.hosting.GetRef(ctx, headsRef(p.base))
	if err != nil {
		return res, err
	}
	branch, created, err := p.hosting.CreateBranch(ctx, headsRef(p.head), baseRef.Object.SHA)
	if err != nil {
		return res, err
	}
	res.BranchCreated = created
	if created {
		p.logger.Info("created branch", zap.String("branch", p.head), zap.String("from", p.base))
	} else {
		p.logger.Info("branch already exists, reusing", zap.String("branch", p.head))
	}
	branchSHA := branch.Object.SHA

	var entries []github.TreeEntry
	for _, sec := range generated {
		current, err := p.hosting.GetFileContent(ctx, sec.Path, p.head)
		if err != nil {
			return res, err
		}
		updated := frontmatter.ResolveFullRewrite(current, sec.Content)
		if updated == current {
			p.logger.Info("metadata unchanged", zap.String("path", sec.Path))
			continue
		}
		sha, err := p.hosting.CreateBlob(ctx, updated)
		if err != nil {
			return res, fmt.Errorf("%s: %w", sec.Path, err)
		}
		entries = append(entries, github.BlobEntry(sec.Path, sha))
		res.Files = append(res.Files, sec.Path)
	}
	if len(entries) == 0 {
		return res, fmt.Errorf("no document changed: %w", batch.ErrEmptyBatch)
	}

	tree, err := p.hosting.CreateTree(ctx, branchSHA, entries)
	if err != nil {
		return res, err
	}
	commit, err := p.hosting.CreateCommit(ctx, CommitMessage, tree, []string{branchSHA})
	if err != nil {
		return res, err
	}
	if err := p.hosting.UpdateRef(ctx, headsRef(p.head), commit, false); err != nil {
		return res, err
	}
	res.Commit = commit

	pr, err := p.hosting.CreatePullRequest(ctx, github.NewPullRequest{Title: PRTitle, Head: p.head, Base: p.base})
	if err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			p.logger.Info("pull request already open, branch updated", zap.String("branch", p.head), zap.String("reason", apiErr.Message))
			return res, nil
		}
		return res, err
	}
	res.PullRequest = pr
	p.logger.Info("pull request created", zap.Int("number", pr.Number), zap.String("url", pr.HTMLURL), zap.Int("files", len(entries)))
	return res, nil
}
