package pipeline

import (
	"context"

	"docmeta/internal/deploy"
	"docmeta/internal/storage"

	"go.uber.org/zap"
)

// DeployLedger is where deploy runs are recorded.
type DeployLedger interface {
	StartRun(ctx context.Context, stage string) (*storage.Run, error)
	FinishRun(ctx context.Context, run *storage.Run) error
	SaveDeployResults(ctx context.Context, runID string, results []storage.DeployRecord) error
}

// Deploy runs an edge operation over changed and deleted files and records
// the per-file results.
type Deploy struct {
	deployer *deploy.Deployer
	ledger   DeployLedger
	logger   *zap.Logger
}

func NewDeploy(deployer *deploy.Deployer, ledger DeployLedger, logger *zap.Logger) *Deploy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deploy{deployer: deployer, ledger: ledger, logger: logger.With(zap.String("stage", "deploy"))}
}

func (d *Deploy) Run(ctx context.Context, op deploy.Operation, changes, deletions []string) (deploy.Summary, error) {
	var run *storage.Run
	if d.ledger != nil {
		r, err := d.ledger.StartRun(ctx, "deploy:"+string(op))
		if err != nil {
			return nil, err
		}
		run = r
	}

	summary, err := d.deployer.Run(ctx, op, changes, deletions)
	if run == nil {
		return summary, err
	}

	records := make([]storage.DeployRecord, 0, len(summary))
	for _, r := range summary {
		records = append(records, storage.DeployRecord{
			Path:       r.Path,
			Operation:  string(op),
			Method:     r.Method,
			Status:     string(r.Status),
			HTTPStatus: r.HTTPStatus,
			Note:       r.Note,
		})
	}

	bg := context.WithoutCancel(ctx)
	if serr := d.ledger.SaveDeployResults(bg, run.ID, records); serr != nil {
		d.logger.Warn("failed to record deploy results", zap.String("run_id", run.ID), zap.Error(serr))
	}
	run.Processed = summary.Count(deploy.StatusSuccess)
	run.Failed = summary.Count(deploy.StatusError)
	run.Skipped = summary.Count(deploy.StatusSkipped)
	switch {
	case err != nil || run.Failed > 0:
		run.Status = storage.RunFailed
	case len(summary) == 0:
		run.Status = storage.RunEmpty
	default:
		run.Status = storage.RunSucceeded
	}
	if ferr := d.ledger.FinishRun(bg, run); ferr != nil {
		d.logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(ferr))
	}
	return summary, err
}
