package pipeline

import (
	"context"
	"fmt"

	"docmeta/internal/batch"
	"docmeta/internal/complexity"
	"docmeta/internal/frontmatter"
	"docmeta/internal/llm"
	"docmeta/internal/retry"
	"docmeta/internal/storage"

	"go.uber.org/zap"
)

// Generator produces a metadata block for every document of a batch.
type Generator struct {
	completer llm.Completer
	prompts   *llm.PromptBuilder
	policy    retry.Policy
	ledger    storage.Ledger
	logger    *zap.Logger

	// SkipUnchanged reuses the ledger block of a document whose content
	// hash was already generated, without calling the model.
	SkipUnchanged bool
}

func NewGenerator(completer llm.Completer, prompts *llm.PromptBuilder, ledger storage.Ledger, logger *zap.Logger) *Generator {
	if prompts == nil {
		prompts = llm.NewPromptBuilder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("stage", "generate"))

	return &Generator{
		completer: completer,
		prompts:   prompts,
		policy:    completionPolicy(logger),
		ledger:    ledger,
		logger:    logger,
	}
}

// WithRetryPolicy replaces the retry policy, keeping the transient classifier
// when p has none.
func (g *Generator) WithRetryPolicy(p retry.Policy) *Generator {
	g.policy = withDefaults(p, g.policy)
	return g
}

type GenerateResult struct {
	RunID  string
	Output batch.Batch
	// Generated counts model calls that produced a block.
	Generated int
	Reused    int
	Skipped   int
}

// Run generates documents one at a time, in batch order. A document whose
// completion fails permanently, or yields no valid metadata, is logged and
// left out of the output; a cancelled context aborts the run. When every
// document is left out the last failure is returned.
func (g *Generator) Run(ctx context.Context, in batch.Batch) (GenerateResult, error) {
	var res GenerateResult
	if err := in.RequireNonEmpty(); err != nil {
		return res, err
	}

	var run *storage.Run
	if g.ledger != nil {
		r, err := g.ledger.StartRun(ctx, "generate")
		if err != nil {
			return res, err
		}
		run = r
		res.RunID = r.ID
	}

	logger := g.logger
	if res.RunID != "" {
		logger = logger.With(zap.String("run_id", res.RunID))
	}

	var runErr, lastFailure error
	for _, sec := range in {
		block, status, failure, err := g.generateOne(ctx, logger, res.RunID, sec)
		if err != nil {
			runErr = err
			break
		}
		if failure != nil {
			lastFailure = failure
		}
		switch status {
		case storage.DocGenerated:
			res.Generated++
		case storage.DocReused:
			res.Reused++
		default:
			res.Skipped++
			continue
		}
		res.Output = append(res.Output, batch.Section{Path: sec.Path, Content: block})
	}
	if runErr == nil && len(res.Output) == 0 && lastFailure != nil {
		runErr = fmt.Errorf("all %d documents failed, last: %w", res.Skipped, lastFailure)
	}

	if run != nil {
		run.Processed = res.Generated + res.Reused
		run.Skipped = res.Skipped
		switch {
		case runErr != nil:
			run.Status = storage.RunFailed
		case len(res.Output) == 0:
			run.Status = storage.RunEmpty
		default:
			run.Status = storage.RunSucceeded
		}
		if err := g.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("failed to record run", zap.Error(err))
		}
	}

	if runErr != nil {
		return res, runErr
	}
	logger.Info("generation finished",
		zap.Int("generated", res.Generated),
		zap.Int("reused", res.Reused),
		zap.Int("skipped", res.Skipped),
	)
	return res, res.Output.RequireNonEmpty()
}

// generateOne returns the final block for sec and its ledger status. A
// skipped document also reports why. Only context errors are returned as
// err; every other failure skips the document.
func (g *Generator) generateOne(ctx context.Context, logger *zap.Logger, runID string, sec batch.Section) (block, status string, failure, err error) {
	logger = logger.With(zap.String("path", sec.Path))

	d := frontmatter.Detect(sec.Content)
	score := complexity.Classify(d.Body)
	hash := storage.HashContent(sec.Content)

	record := storage.DocumentRecord{
		RunID:       runID,
		Path:        sec.Path,
		ContentHash: hash,
		FAQCount:    score.FAQCount,
	}

	if g.SkipUnchanged && g.ledger != nil {
		prev, ok, err := g.ledger.LookupBlock(ctx, sec.Path, hash)
		if err != nil {
			logger.Warn("ledger lookup failed", zap.Error(err))
		} else if ok {
			logger.Info("content unchanged, reusing block", zap.String("from_run", prev.RunID))
			record.Block = prev.Block
			record.Status = storage.DocReused
			g.save(ctx, logger, record)
			return prev.Block, storage.DocReused, nil, nil
		}
	}

	var req llm.Request
	existing := ""
	if d.Present {
		existing = d.Block
		req = g.prompts.BuildEditPrompt(d.Block, d.Body, score.FAQCount)
	} else {
		req = g.prompts.BuildCreatePrompt(sec.Content, score.FAQCount)
	}

	text, err := retry.DoValue(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.completer.Complete(ctx, req)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", nil, ctxErr
		}
		logger.Error("generation failed, skipping document",
			zap.Int("status", llm.StatusOf(err)),
			zap.Error(err),
		)
		return "", g.skip(ctx, logger, record, err), err, nil
	}

	block, err = frontmatter.MergeFields(existing, text, frontmatter.H1Title(d.Body))
	if err == nil {
		err = frontmatter.Validate(block)
	}
	if err != nil {
		logger.Warn("completion yielded no usable metadata, skipping document",
			zap.String("completion", text),
			zap.Error(err),
		)
		return "", g.skip(ctx, logger, record, err), err, nil
	}
	logger.Debug("generated block",
		zap.String("complexity", string(score.Score)),
		zap.Int("faqs", score.FAQCount),
		zap.Bool("had_metadata", d.Present),
	)

	record.Block = block
	record.Status = storage.DocGenerated
	g.save(ctx, logger, record)
	return block, storage.DocGenerated, nil, nil
}

func (g *Generator) skip(ctx context.Context, logger *zap.Logger, rec storage.DocumentRecord, cause error) string {
	rec.Status = storage.DocSkipped
	rec.Error = cause.Error()
	g.save(ctx, logger, rec)
	return storage.DocSkipped
}

func (g *Generator) save(ctx context.Context, logger *zap.Logger, rec storage.DocumentRecord) {
	if g.ledger == nil {
		return
	}
	if err := g.ledger.SaveDocument(ctx, rec); err != nil {
		logger.Warn("failed to record document", zap.Error(err))
	}
}
