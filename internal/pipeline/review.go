package pipeline

import (
	"context"
	"fmt"

	"docmeta/internal/batch"
	"docmeta/internal/frontmatter"
	"docmeta/internal/github"

	"go.uber.org/zap"
)

const (
	ReviewBody  = "AI suggestions"
	ReviewEvent = "COMMENT"
)

// Reviewer posts generated blocks as suggestions on an open pull request.
type Reviewer struct {
	hosting Hosting
	logger  *zap.Logger
}

func NewReviewer(hosting Hosting, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{hosting: hosting, logger: logger.With(zap.String("stage", "review"))}
}

type ReviewOutcome struct {
	Review   github.ReviewResult
	Comments []github.ReviewComment
}

// Run creates one review on pull request number with a suggestion per
// document of generated that the pull request touches.
func (r *Reviewer) Run(ctx context.Context, number int, generated batch.Batch) (ReviewOutcome, error) {
	var out ReviewOutcome
	if err := generated.RequireNonEmpty(); err != nil {
		return out, err
	}

	files, err := r.hosting.ListPullRequestFiles(ctx, number)
	if err != nil {
		return out, err
	}
	byName := make(map[string]github.PullRequestFile, len(files))
	for _, f := range files {
		byName[f.Filename] = f
	}

	for _, sec := range generated {
		file, ok := byName[sec.Path]
		if !ok {
			r.logger.Warn("target file not found in PR, skipping", zap.String("path", sec.Path))
			continue
		}
		content, err := r.hosting.GetRawContent(ctx, file.RawURL)
		if err != nil {
			return out, fmt.Errorf("%s: %w", sec.Path, err)
		}
		s := frontmatter.ResolveSuggestion(content, sec.Content)
		out.Comments = append(out.Comments, github.SuggestionComment(file.Filename, s.StartLine, s.EndLine, s.Body()))
	}

	if len(out.Comments) == 0 {
		return out, fmt.Errorf("no valid files to review: %w", batch.ErrEmptyBatch)
	}

	res, err := r.hosting.CreateReview(ctx, number, github.Review{
		Body:     ReviewBody,
		Event:    ReviewEvent,
		Comments: out.Comments,
	})
	if err != nil {
		return out, err
	}
	out.Review = res
	r.logger.Info("review created",
		zap.Int64("id", res.ID),
		zap.String("state", res.State),
		zap.String("url", res.HTMLURL),
		zap.Int("comments", len(out.Comments)),
	)
	return out, nil
}
