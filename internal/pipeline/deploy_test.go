package pipeline

import (
	"context"
	"net/http"
	"testing"

	"docmeta/internal/deploy"
	"docmeta/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusPublisher map[string]int

func (p statusPublisher) Trigger(_ context.Context, _ string, url string, _ http.Header) (int, error) {
	for suffix, status := range p {
		if len(url) >= len(suffix) && url[len(url)-len(suffix):] == suffix {
			return status, nil
		}
	}
	return http.StatusOK, nil
}

func TestDeploy_RecordsResults(t *testing.T) {
	ledger := newLedger(t)
	deployer, err := deploy.NewDeployer(statusPublisher{"/bad.md": 404}, deploy.Options{Env: "prod"}, nil)
	require.NoError(t, err)

	summary, err := NewDeploy(deployer, ledger, nil).Run(context.Background(), deploy.Live,
		[]string{"src/pages/good.md", "src/pages/bad.md", "src/pages/pic.png"},
		[]string{"src/pages/old.md"},
	)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, deploy.StatusError, summary[0].Status)

	runs, err := ledger.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "deploy:live", runs[0].Stage)
	assert.Equal(t, storage.RunFailed, runs[0].Status)
	assert.Equal(t, 2, runs[0].Processed)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 1, runs[0].Skipped)

	records, err := ledger.DeployResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestDeploy_WithoutLedger(t *testing.T) {
	deployer, err := deploy.NewDeployer(statusPublisher{}, deploy.Options{Env: "stage"}, nil)
	require.NoError(t, err)

	summary, err := NewDeploy(deployer, nil, nil).Run(context.Background(), deploy.Cache, []string{"src/pages/a.md"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(deploy.StatusSuccess))
}
