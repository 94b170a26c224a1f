// Package deploy triggers preview, publish and cache purge requests on the
// edge publishing admin API for documentation pages.
package deploy

import (
	"fmt"
	"net/http"
	"strings"
)

type Operation string

const (
	Preview Operation = "preview"
	Live    Operation = "live"
	Cache   Operation = "cache"
)

// ParseOperation accepts preview, live or cache in any case.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case Preview, Live, Cache:
		return op, nil
	default:
		return "", fmt.Errorf("unknown deploy operation %q", s)
	}
}

// Target is the edge site and code branch an environment publishes to.
type Target struct {
	Site       string
	CodeBranch string
	Stage      bool
}

// ResolveTarget maps a site environment name onto its edge site.
// Names containing "stage" win over names containing "prod".
func ResolveTarget(env string) (Target, error) {
	e := strings.ToLower(env)
	switch {
	case strings.Contains(e, "stage"):
		return Target{Site: "adp-devsite-stage", CodeBranch: "stage", Stage: true}, nil
	case strings.Contains(e, "prod"):
		return Target{Site: "adp-devsite", CodeBranch: "main"}, nil
	default:
		return Target{}, fmt.Errorf("unknown site environment %q", env)
	}
}

// Headers returns the extra request headers for op. Stage previews and
// purges read content from contentBranch.
func (t Target) Headers(op Operation, contentBranch string) http.Header {
	h := http.Header{}
	if t.Stage && (op == Preview || op == Cache) && contentBranch != "" {
		h.Set("x-content-source-authorization", contentBranch)
	}
	return h
}

// PagePath returns the site path of a repository file: pathPrefix followed
// by the file path with pagesDir removed.
func PagePath(file, pagesDir, pathPrefix string) string {
	prefix := strings.TrimRight(pathPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(file, "/"), pagesDir)
	return prefix + "/" + strings.TrimPrefix(rel, "/")
}

// URL returns the admin endpoint for op on pagePath.
func (t Target) URL(adminURL, org string, op Operation, pagePath string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s%s", strings.TrimRight(adminURL, "/"), op, org, t.Site, t.CodeBranch, pagePath)
}

// PageURL returns the preview address of pagePath on the edge:
// https://<contentBranch>--<site>--<org>.aem.page<pagePath>.
func (t Target) PageURL(org, contentBranch, pagePath string) string {
	return fmt.Sprintf("https://%s--%s--%s.aem.page%s", contentBranch, t.Site, strings.ToLower(org), pagePath)
}

// Deployable reports whether the admin API accepts file.
func Deployable(file string) bool {
	return strings.HasSuffix(file, ".md") || strings.HasSuffix(file, ".json")
}
