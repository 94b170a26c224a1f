package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAdminURL  = "https://admin.hlx.page"
	DefaultOrg       = "adobedocs"
	DefaultBatchSize = 5
)

type Status string

const (
	StatusError   Status = "error"
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 0
	case StatusSuccess:
		return 1
	default:
		return 2
	}
}

func (s Status) label() string {
	switch s {
	case StatusError:
		return "❌ Error"
	case StatusSuccess:
		return "✅ Success"
	default:
		return "⚠️ Skipped"
	}
}

// Result is the outcome of one file.
type Result struct {
	Path       string
	Method     string
	Status     Status
	HTTPStatus int
	Note       string
}

type Options struct {
	AdminURL      string
	Org           string
	Env           string
	ContentBranch string
	PathPrefix    string
	PagesDir      string
	BatchSize     int
}

type Deployer struct {
	pub    Publisher
	opts   Options
	target Target
	logger *zap.Logger
}

func NewDeployer(pub Publisher, opts Options, logger *zap.Logger) (*Deployer, error) {
	target, err := ResolveTarget(opts.Env)
	if err != nil {
		return nil, err
	}
	if opts.AdminURL == "" {
		opts.AdminURL = DefaultAdminURL
	}
	if opts.Org == "" {
		opts.Org = DefaultOrg
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PagesDir == "" {
		opts.PagesDir = "src/pages/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deployer{pub: pub, opts: opts, target: target, logger: logger}, nil
}

type job struct {
	file   string
	method string
}

// Run applies op to changes with POST, then to deletions with DELETE, in
// batches. Each batch finishes before the next one starts and the two lists
// never share a batch. Failures are reported per file; only context
// cancellation stops the run.
func (d *Deployer) Run(ctx context.Context, op Operation, changes, deletions []string) (Summary, error) {
	changed, err := d.runBatches(ctx, op, changes, http.MethodPost)
	if err != nil {
		return nil, err
	}
	deleted, err := d.runBatches(ctx, op, deletions, http.MethodDelete)
	if err != nil {
		return nil, err
	}

	summary := append(Summary(changed), deleted...)
	summary.Sort()
	return summary, nil
}

func (d *Deployer) runBatches(ctx context.Context, op Operation, files []string, method string) ([]Result, error) {
	results := make([]Result, len(files))
	for start := 0; start < len(files); start += d.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+d.opts.BatchSize, len(files))

		var g errgroup.Group
		g.SetLimit(d.opts.BatchSize)
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = d.trigger(ctx, op, job{file: files[i], method: method})
				return nil
			})
		}
		_ = g.Wait()
	}
	return results, nil
}

func (d *Deployer) trigger(ctx context.Context, op Operation, j job) Result {
	if !Deployable(j.file) {
		d.logger.Warn("skipping file", zap.String("path", j.file), zap.String("reason", "only .md or .json files are allowed"))
		return Result{Path: j.file, Method: j.method, Status: StatusSkipped, Note: "Only .md or .json files are allowed"}
	}

	pagePath := PagePath(j.file, d.opts.PagesDir, d.opts.PathPrefix)
	url := d.target.URL(d.opts.AdminURL, d.opts.Org, op, pagePath)
	verb := string(op)
	if j.method == http.MethodDelete {
		verb = "Delete " + verb
	}

	status, err := d.pub.Trigger(ctx, j.method, url, d.target.Headers(op, d.opts.ContentBranch))
	if err != nil || status >= 400 {
		d.logger.Error("deploy failed",
			zap.String("path", pagePath),
			zap.String("method", j.method),
			zap.String("url", url),
			zap.Int("status", status),
			zap.Error(err),
		)
		return Result{Path: pagePath, Method: j.method, Status: StatusError, HTTPStatus: status, Note: fmt.Sprintf("HTTP %s - %s failed", statusText(status), verb)}
	}

	d.logger.Info("deployed", zap.String("path", pagePath), zap.String("method", j.method), zap.Int("status", status))
	return Result{Path: pagePath, Method: j.method, Status: StatusSuccess, HTTPStatus: status, Note: fmt.Sprintf("HTTP %d - %s completed", status, verb)}
}

func statusText(status int) string {
	if status == 0 {
		return "Unknown"
	}
	return fmt.Sprint(status)
}

// Summary is the ordered list of per-file results of a run.
type Summary []Result

// Sort orders errors first, then successes, then skipped files, each by path.
func (s Summary) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if ri, rj := s[i].Status.rank(), s[j].Status.rank(); ri != rj {
			return ri < rj
		}
		return s[i].Path < s[j].Path
	})
}

// ByPath indexes results by path. A path deployed and deleted in the same
// run keeps the last result.
func (s Summary) ByPath() map[string]Result {
	m := make(map[string]Result, len(s))
	for _, r := range s {
		m[r.Path] = r
	}
	return m
}

// Count returns how many results have status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s {
		if r.Status == status {
			n++
		}
	}
	return n
}

// WriteTable renders the summary as an aligned text table.
func (s Summary) WriteTable(w io.Writer, op Operation) error {
	if _, err := fmt.Fprintf(w, "Operation: %s\n\n", op); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Upload File Path\tDeploy Status\tNotes")
	for _, r := range s {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Path, r.Status.label(), r.Note)
	}
	return tw.Flush()
}
