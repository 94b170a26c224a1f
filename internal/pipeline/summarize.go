package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"docmeta/internal/batch"
	"docmeta/internal/deploy"
	"docmeta/internal/llm"
	"docmeta/internal/retry"
	"docmeta/internal/storage"

	"go.uber.org/zap"
)

// SummarizeOptions locate the published pages on the edge.
type SummarizeOptions struct {
	Org           string
	Env           string
	ContentBranch string
	PathPrefix    string
	PagesDir      string
}

// PageSummary is the outcome for one page. Err is set when the page was
// skipped or its completion failed.
type PageSummary struct {
	Path    string
	URL     string
	Summary string
	Err     error
}

// RunLedger records the runs of a stage.
type RunLedger interface {
	StartRun(ctx context.Context, stage string) (*storage.Run, error)
	FinishRun(ctx context.Context, run *storage.Run) error
}

// Summarizer asks the model for a short bulleted summary of each changed
// page, addressed by its edge preview URL.
type Summarizer struct {
	completer llm.Completer
	prompts   *llm.PromptBuilder
	policy    retry.Policy
	target    deploy.Target
	opts      SummarizeOptions
	ledger    RunLedger
	logger    *zap.Logger
}

func NewSummarizer(completer llm.Completer, prompts *llm.PromptBuilder, opts SummarizeOptions, ledger RunLedger, logger *zap.Logger) (*Summarizer, error) {
	target, err := deploy.ResolveTarget(opts.Env)
	if err != nil {
		return nil, err
	}
	if opts.ContentBranch == "" {
		return nil, fmt.Errorf("summarize: content branch is required")
	}
	if opts.Org == "" {
		opts.Org = deploy.DefaultOrg
	}
	if prompts == nil {
		prompts = llm.NewPromptBuilder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("stage", "summarize"))

	return &Summarizer{
		completer: completer,
		prompts:   prompts,
		policy:    completionPolicy(logger),
		target:    target,
		opts:      opts,
		ledger:    ledger,
		logger:    logger,
	}, nil
}

// WithRetryPolicy replaces the retry policy, keeping the transient classifier
// when p has none.
func (s *Summarizer) WithRetryPolicy(p retry.Policy) *Summarizer {
	s.policy = withDefaults(p, s.policy)
	return s
}

// PageURL returns the edge preview address of a repository file, without
// its extension.
func (s *Summarizer) PageURL(file string) string {
	p := deploy.PagePath(file, s.opts.PagesDir, s.opts.PathPrefix)
	p = strings.TrimSuffix(p, path.Ext(p))
	return s.target.PageURL(s.opts.Org, s.opts.ContentBranch, p)
}

// Run summarizes files one at a time. Files other than markdown are
// skipped. A cancelled context aborts the run; when no page could be
// summarized the last failure is returned.
func (s *Summarizer) Run(ctx context.Context, files []string) ([]PageSummary, error) {
	var run *storage.Run
	if s.ledger != nil {
		r, err := s.ledger.StartRun(ctx, "summarize")
		if err != nil {
			return nil, err
		}
		run = r
	}

	var (
		out         []PageSummary
		runErr      error
		lastFailure error
		done        int
	)
	for _, file := range files {
		res, err := s.summarizeOne(ctx, file)
		if err != nil {
			runErr = err
			break
		}
		out = append(out, res)
		if res.Err != nil {
			lastFailure = res.Err
			continue
		}
		done++
	}
	switch {
	case runErr != nil:
	case done == 0 && lastFailure != nil:
		runErr = fmt.Errorf("no page summarized, last: %w", lastFailure)
	case done == 0:
		runErr = fmt.Errorf("no pages to summarize: %w", batch.ErrEmptyBatch)
	}

	if run != nil {
		run.Processed = done
		run.Failed = len(out) - done
		if runErr != nil {
			run.Status = storage.RunFailed
		} else {
			run.Status = storage.RunSucceeded
		}
		if err := s.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return out, runErr
}

func (s *Summarizer) summarizeOne(ctx context.Context, file string) (PageSummary, error) {
	res := PageSummary{Path: file}
	logger := s.logger.With(zap.String("path", file))
	if !strings.HasSuffix(file, ".md") {
		res.Err = fmt.Errorf("only .md files are summarized")
		logger.Info("skipping file", zap.Error(res.Err))
		return res, nil
	}

	res.URL = s.PageURL(file)
	req := s.prompts.BuildSummaryPrompt(res.URL)
	text, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.completer.Complete(ctx, req)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Err = err
		logger.Error("summary failed",
			zap.String("url", res.URL),
			zap.Int("status", llm.StatusOf(err)),
			zap.Error(err),
		)
		return res, nil
	}

	res.Summary = strings.TrimSpace(text)
	logger.Info("page summarized",
		zap.String("url", res.URL),
		zap.String("summary", res.Summary),
	)
	return res, nil
}
