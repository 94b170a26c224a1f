package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"docmeta/internal/github"
)

// fakeHosting is an in-memory repository with one branch namespace.
type fakeHosting struct {
	mu sync.Mutex

	files    map[string]string // path -> content, any ref
	raw      map[string]string // raw url -> content
	dir      []github.ContentEntry
	prFiles  []github.PullRequestFile
	refs     map[string]string // heads/x -> sha
	failPath string
	prStatus int

	blobs   []string
	trees   [][]github.TreeEntry
	commits []string
	updated map[string]string
	prs     []github.NewPullRequest
	reviews []github.Review
}

func newFakeHosting() *fakeHosting {
	return &fakeHosting{
		files:   map[string]string{},
		raw:     map[string]string{},
		refs:    map[string]string{"heads/main": "main-sha"},
		updated: map[string]string{},
	}
}

func (f *fakeHosting) GetFileContent(_ context.Context, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.failPath {
		return "", &github.APIError{Status: http.StatusInternalServerError, Message: "boom"}
	}
	c, ok := f.files[path]
	if !ok {
		return "", &github.APIError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return c, nil
}

func (f *fakeHosting) GetRawContent(_ context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.raw[rawURL]
	if !ok {
		return "", &github.APIError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return c, nil
}

func (f *fakeHosting) ListDirectory(context.Context, string, string) ([]github.ContentEntry, error) {
	return f.dir, nil
}

func (f *fakeHosting) ListPullRequestFiles(context.Context, int) ([]github.PullRequestFile, error) {
	return f.prFiles, nil
}

func (f *fakeHosting) GetRef(_ context.Context, ref string) (github.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha, ok := f.refs[ref]
	if !ok {
		return github.Ref{}, &github.APIError{Status: http.StatusNotFound}
	}
	var r github.Ref
	r.Ref = "refs/" + ref
	r.Object.SHA = sha
	return r, nil
}

func (f *fakeHosting) CreateBranch(ctx context.Context, ref, sha string) (github.Ref, bool, error) {
	if r, err := f.GetRef(ctx, ref); err == nil {
		return r, false, nil
	}
	f.mu.Lock()
	f.refs[ref] = sha
	f.mu.Unlock()
	r, err := f.GetRef(ctx, ref)
	return r, true, err
}

func (f *fakeHosting) CreateBlob(_ context.Context, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = append(f.blobs, content)
	return fmt.Sprintf("blob-%d", len(f.blobs)), nil
}

func (f *fakeHosting) CreateTree(_ context.Context, baseTree string, entries []github.TreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees = append(f.trees, entries)
	return "tree-on-" + baseTree, nil
}

func (f *fakeHosting) CreateCommit(_ context.Context, message, tree string, parents []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, message)
	return "commit-" + tree, nil
}

func (f *fakeHosting) UpdateRef(_ context.Context, ref, sha string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[ref] = sha
	return nil
}

func (f *fakeHosting) CreatePullRequest(_ context.Context, pr github.NewPullRequest) (github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prStatus != 0 {
		return github.PullRequest{}, &github.APIError{Status: f.prStatus, Message: "A pull request already exists"}
	}
	f.prs = append(f.prs, pr)
	return github.PullRequest{Number: 42, HTMLURL: "https://example.test/pull/42"}, nil
}

func (f *fakeHosting) CreateReview(_ context.Context, _ int, review github.Review) (github.ReviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, review)
	return github.ReviewResult{ID: 7, State: "COMMENTED"}, nil
}

var _ Hosting = (*fakeHosting)(nil)
