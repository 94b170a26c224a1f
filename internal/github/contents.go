package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ContentEntry is one item of a directory listing.
type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

// GetFileContent returns the raw text of path at ref. An empty ref means
// the default branch.
func (c *Client) GetFileContent(ctx context.Context, path, ref string) (string, error) {
	endpoint := c.repoURL("contents", escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	text, err := c.cachedRaw(ctx, ref+":"+path, endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to get file content %s: %w", path, err)
	}
	return text, nil
}

// GetRawContent downloads an absolute raw or contents URL, such as the
// raw_url of a pull request file.
func (c *Client) GetRawContent(ctx context.Context, rawURL string) (string, error) {
	text, err := c.cachedRaw(ctx, rawURL, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to get raw content: %w", err)
	}
	return text, nil
}

func (c *Client) cachedRaw(ctx context.Context, key, endpoint string) (string, error) {
	if c.raw != nil {
		if v, ok := c.raw.Get(key); ok {
			return v, nil
		}
	}
	data, err := c.send(ctx, http.MethodGet, endpoint, mediaRaw, nil)
	if err != nil {
		return "", err
	}
	text := string(data)
	if c.raw != nil {
		c.raw.Add(key, text)
	}
	return text, nil
}

// ListDirectory returns every file below dir at ref, descending into
// subdirectories. Directories themselves are not returned.
func (c *Client) ListDirectory(ctx context.Context, dir, ref string) ([]ContentEntry, error) {
	var files []ContentEntry
	if err := c.listDir(ctx, dir, ref, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) listDir(ctx context.Context, dir, ref string, out *[]ContentEntry) error {
	endpoint := c.repoURL("contents", escapePath(dir))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}

	var items []ContentEntry
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &items); err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, item := range items {
		switch item.Type {
		case "dir":
			if err := c.listDir(ctx, item.Path, ref, out); err != nil {
				return err
			}
		case "file":
			*out = append(*out, item)
		}
	}
	return nil
}
