// Package pages decides which repository files are documentation pages.
package pages

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const DefaultDir = "src/pages/"

// skipExtensions are binary or asset files that never carry frontmatter.
var skipExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true,
	".mp4": true, ".webm": true, ".mov": true, ".mp3": true, ".wav": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".json": true,
}

// Filter selects pages by location, extension and optional globs.
// Include and Exclude are doublestar patterns matched against the full
// repository path.
type Filter struct {
	Dir     string
	Include []string
	Exclude []string
}

func NewFilter(dir string, include, exclude []string) (Filter, error) {
	f := Filter{Dir: normalizeDir(dir), Include: include, Exclude: exclude}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return Filter{}, fmt.Errorf("invalid page pattern %q", p)
		}
	}
	return f, nil
}

// Check reports whether p is a page to process and, if not, why.
func (f Filter) Check(p string) (bool, string) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	dir := f.dir()

	if !strings.HasPrefix(p, dir) {
		return false, "outside " + strings.TrimSuffix(dir, "/")
	}
	if strings.HasSuffix(p, "config.md") {
		return false, "config file"
	}
	ext := strings.ToLower(path.Ext(p))
	if skipExtensions[ext] {
		return false, "binary file"
	}
	if ext != ".md" {
		return false, "not markdown"
	}
	for _, pattern := range f.Exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return false, "excluded by " + pattern
		}
	}
	if len(f.Include) == 0 {
		return true, ""
	}
	for _, pattern := range f.Include {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true, ""
		}
	}
	return false, "not included"
}

// Keep is Check without the reason.
func (f Filter) Keep(p string) bool {
	ok, _ := f.Check(p)
	return ok
}

// PagesDir returns the pages directory with a trailing slash.
func (f Filter) PagesDir() string {
	return f.dir()
}

// EmptyNotice is the text written to a batch file when nothing matched.
func (f Filter) EmptyNotice(source string) string {
	return fmt.Sprintf("No matching files found in %s (excluding config.md and binary files)", source)
}

func (f Filter) dir() string {
	if f.Dir == "" {
		return DefaultDir
	}
	return f.Dir
}

func normalizeDir(dir string) string {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" || dir == "." {
		return DefaultDir
	}
	return dir + "/"
}
