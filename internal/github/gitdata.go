package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Ref is a git reference such as heads/main.
type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

// TreeEntry is one file of a tree to create.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// FileMode is the mode of a regular, non-executable file.
const FileMode = "100644"

// BlobEntry returns the tree entry for a blob at path.
func BlobEntry(path, sha string) TreeEntry {
	return TreeEntry{Path: path, Mode: FileMode, Type: "blob", SHA: sha}
}

type shaResponse struct {
	SHA string `json:"sha"`
}

// GetRef resolves ref, given without the refs/ prefix (heads/main).
func (c *Client) GetRef(ctx context.Context, ref string) (Ref, error) {
	var out Ref
	if err := c.doJSON(ctx, http.MethodGet, c.repoURL("git", "ref", trimRefs(ref)), nil, &out); err != nil {
		return Ref{}, fmt.Errorf("failed to fetch ref %s: %w", ref, err)
	}
	return out, nil
}

// CreateBranch creates ref at sha. An existing ref is returned unchanged.
func (c *Client) CreateBranch(ctx context.Context, ref, sha string) (Ref, bool, error) {
	existing, err := c.GetRef(ctx, ref)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return Ref{}, false, err
	}

	body := map[string]string{"ref": "refs/" + trimRefs(ref), "sha": sha}
	var out Ref
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("git", "refs"), body, &out); err != nil {
		return Ref{}, false, fmt.Errorf("failed to create branch %s: %w", ref, err)
	}
	return out, true, nil
}

// CreateBlob stores content and returns the blob sha.
func (c *Client) CreateBlob(ctx context.Context, content string) (string, error) {
	body := map[string]string{"content": content, "encoding": "utf-8"}
	var out shaResponse
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("git", "blobs"), body, &out); err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	return out.SHA, nil
}

// CreateTree creates a tree from entries on top of baseTree.
func (c *Client) CreateTree(ctx context.Context, baseTree string, entries []TreeEntry) (string, error) {
	body := struct {
		BaseTree string      `json:"base_tree,omitempty"`
		Tree     []TreeEntry `json:"tree"`
	}{BaseTree: baseTree, Tree: entries}
	var out shaResponse
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("git", "trees"), body, &out); err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}
	return out.SHA, nil
}

// CreateCommit creates a commit of tree with the given parents.
func (c *Client) CreateCommit(ctx context.Context, message, tree string, parents []string) (string, error) {
	body := struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}{Message: message, Tree: tree, Parents: parents}
	var out shaResponse
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("git", "commits"), body, &out); err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}
	return out.SHA, nil
}

// UpdateRef moves ref to sha.
func (c *Client) UpdateRef(ctx context.Context, ref, sha string, force bool) error {
	body := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha, Force: force}
	if err := c.doJSON(ctx, http.MethodPatch, c.repoURL("git", "refs", trimRefs(ref)), body, nil); err != nil {
		return fmt.Errorf("failed to update ref %s: %w", ref, err)
	}
	return nil
}

func trimRefs(ref string) string {
	return strings.TrimPrefix(strings.TrimPrefix(ref, "/"), "refs/")
}
