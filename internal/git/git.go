// Package git reads the documentation changes of a local checkout.
package git

import (
	"fmt"
	"path/filepath"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
)

type ChangedFile struct {
	Path string
	Kind ChangeKind
}

// Repository is a checkout opened from any directory inside it.
type Repository struct {
	repo *gogit.Repository
	root string
}

func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Repository{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the worktree root directory.
func (r *Repository) Root() string { return r.root }

// Head returns the short branch name and commit hash of HEAD.
func (r *Repository) Head() (branch, sha string, err error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Name().Short(), head.Hash().String(), nil
}

// ChangedFiles returns the files that differ between baseRef and HEAD,
// sorted by path. baseRef is any revision go-git resolves (branch, tag,
// hash, HEAD~1).
func (r *Repository) ChangedFiles(baseRef string) ([]ChangedFile, error) {
	base, err := r.commitTree(baseRef)
	if err != nil {
		return nil, err
	}
	head, err := r.commitTree("HEAD")
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(base, head)
	if err != nil {
		return nil, fmt.Errorf("diff %s..HEAD: %w", baseRef, err)
	}

	files := make([]ChangedFile, 0, len(changes))
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, fmt.Errorf("classify change: %w", err)
		}
		switch action {
		case merkletrie.Insert:
			files = append(files, ChangedFile{Path: filepath.ToSlash(ch.To.Name), Kind: Added})
		case merkletrie.Delete:
			files = append(files, ChangedFile{Path: filepath.ToSlash(ch.From.Name), Kind: Deleted})
		case merkletrie.Modify:
			files = append(files, ChangedFile{Path: filepath.ToSlash(ch.To.Name), Kind: Modified})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (r *Repository) commitTree(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", rev, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", rev, err)
	}
	return tree, nil
}

// Split separates deleted paths from the rest.
func Split(files []ChangedFile) (present, deleted []string) {
	for _, f := range files {
		if f.Kind == Deleted {
			deleted = append(deleted, f.Path)
		} else {
			present = append(present, f.Path)
		}
	}
	return present, deleted
}
