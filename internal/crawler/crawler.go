package crawler

import (
	"io/fs"
	"path/filepath"
	"sort"

	"docmeta/internal/pages"
)

// Crawler scans a local checkout for documentation pages.
type Crawler struct {
	filter  pages.Filter
	ignored []string
}

// NewCrawler creates a crawler that keeps the paths filter accepts.
func NewCrawler(filter pages.Filter) *Crawler {
	return &Crawler{
		filter:  filter,
		ignored: []string{".git", "node_modules", ".cache", "public"},
	}
}

// ScanPages walks root and returns the repository relative, slash
// separated paths of every page, sorted. A missing pages directory yields
// no pages.
func (c *Crawler) ScanPages(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		// Skip ignored directories
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if c.filter.Keep(rel) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
