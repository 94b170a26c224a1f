package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docmeta/internal/batch"
	"docmeta/internal/crawler"
	"docmeta/internal/git"
	"docmeta/internal/pages"

	"go.uber.org/zap"
)

type Source string

const (
	// SourceChanged fetches an explicit list of paths.
	SourceChanged Source = "changed"
	// SourcePR fetches the files of a pull request.
	SourcePR Source = "pr"
	// SourceAll fetches every page below the pages directory.
	SourceAll Source = "all"
	// SourceLocal reads pages from a local checkout.
	SourceLocal Source = "local"
)

type FetchRequest struct {
	Source   Source
	Paths    []string
	PRNumber int
	// Ref is the branch, tag or sha to read remote content at.
	Ref string
	// LocalRoot is a directory inside the checkout for SourceLocal.
	LocalRoot string
	// BaseRef limits SourceLocal to pages changed since this revision.
	// Empty means every page.
	BaseRef string
}

type Fetcher struct {
	hosting Hosting
	filter  pages.Filter
	logger  *zap.Logger
}

func NewFetcher(hosting Hosting, filter pages.Filter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{hosting: hosting, filter: filter, logger: logger.With(zap.String("stage", "fetch"))}
}

// Run collects the pages selected by req into a batch. Files that fail the
// page filter or cannot be read are logged and left out. An empty result
// returns batch.ErrEmptyBatch alongside the empty batch.
func (f *Fetcher) Run(ctx context.Context, req FetchRequest) (batch.Batch, error) {
	var (
		out batch.Batch
		err error
	)
	switch req.Source {
	case SourceChanged:
		out, err = f.fetchRemote(ctx, req.Paths, req.Ref)
	case SourcePR:
		out, err = f.fetchPR(ctx, req.PRNumber)
	case SourceAll:
		out, err = f.fetchAll(ctx, req.Ref)
	case SourceLocal:
		out, err = f.fetchLocal(ctx, req.LocalRoot, req.BaseRef)
	default:
		return nil, fmt.Errorf("unknown fetch source %q", req.Source)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Info("fetch finished", zap.String("source", string(req.Source)), zap.Int("documents", len(out)))
	return out, out.RequireNonEmpty()
}

// Notice describes an empty result of source for the batch file.
func (f *Fetcher) Notice(source Source) string {
	switch source {
	case SourceAll:
		return f.filter.EmptyNotice(strings.TrimSuffix(f.filter.PagesDir(), "/") + " directory")
	case SourcePR:
		return f.filter.EmptyNotice("pull request files")
	default:
		return f.filter.EmptyNotice("changed files")
	}
}

func (f *Fetcher) keep(path string) bool {
	ok, reason := f.filter.Check(path)
	if !ok {
		f.logger.Debug("skipping file", zap.String("path", path), zap.String("reason", reason))
	}
	return ok
}

func (f *Fetcher) fetchRemote(ctx context.Context, paths []string, ref string) (batch.Batch, error) {
	var out batch.Batch
	for _, p := range paths {
		if !f.keep(p) {
			continue
		}
		content, err := f.hosting.GetFileContent(ctx, p, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("failed to fetch content", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, batch.Section{Path: p, Content: content})
	}
	return out, nil
}

func (f *Fetcher) fetchPR(ctx context.Context, number int) (batch.Batch, error) {
	files, err := f.hosting.ListPullRequestFiles(ctx, number)
	if err != nil {
		return nil, err
	}

	var out batch.Batch
	for _, file := range files {
		if file.Status == "removed" || !f.keep(file.Filename) {
			continue
		}
		content, err := f.hosting.GetRawContent(ctx, file.RawURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("failed to fetch content", zap.String("path", file.Filename), zap.Error(err))
			continue
		}
		out = append(out, batch.Section{Path: file.Filename, Content: content})
	}
	return out, nil
}

func (f *Fetcher) fetchAll(ctx context.Context, ref string) (batch.Batch, error) {
	entries, err := f.hosting.ListDirectory(ctx, f.filter.PagesDir(), ref)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return f.fetchRemote(ctx, paths, ref)
}

func (f *Fetcher) fetchLocal(ctx context.Context, root, baseRef string) (batch.Batch, error) {
	if root == "" {
		root = "."
	}

	var paths []string
	if baseRef != "" {
		repo, err := git.Open(root)
		if err != nil {
			return nil, err
		}
		changed, err := repo.ChangedFiles(baseRef)
		if err != nil {
			return nil, err
		}
		root = repo.Root()
		present, _ := git.Split(changed)
		for _, p := range present {
			if f.keep(p) {
				paths = append(paths, p)
			}
		}
	} else {
		found, err := crawler.NewCrawler(f.filter).ScanPages(root)
		if err != nil {
			return nil, fmt.Errorf("scan pages: %w", err)
		}
		paths = found
	}

	var out batch.Batch
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			f.logger.Warn("failed to read page", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, batch.Section{Path: p, Content: string(data)})
	}
	return out, nil
}
