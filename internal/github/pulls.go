package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const filesPerPage = 100

type NewPullRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// PullRequestFile is one changed file of a pull request.
type PullRequestFile struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	RawURL      string `json:"raw_url"`
	ContentsURL string `json:"contents_url"`
}

// ReviewComment is one inline comment of a review. StartLine and
// StartSide are omitted for single line comments.
type ReviewComment struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	StartSide string `json:"start_side,omitempty"`
	Line      int    `json:"line"`
	Side      string `json:"side"`
	Body      string `json:"body"`
}

// SuggestionComment returns a comment on the new side of the diff covering
// lines start through end.
func SuggestionComment(path string, start, end int, body string) ReviewComment {
	c := ReviewComment{Path: path, Line: end, Side: "RIGHT", Body: body}
	if end > start {
		c.StartLine = start
		c.StartSide = "RIGHT"
	}
	return c
}

type Review struct {
	Body     string          `json:"body"`
	Event    string          `json:"event"`
	Comments []ReviewComment `json:"comments"`
}

type ReviewResult struct {
	ID      int64  `json:"id"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

func (c *Client) CreatePullRequest(ctx context.Context, pr NewPullRequest) (PullRequest, error) {
	var out PullRequest
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("pulls"), pr, &out); err != nil {
		return PullRequest{}, fmt.Errorf("failed to create PR: %w", err)
	}
	return out, nil
}

// ListPullRequestFiles returns all files of pull request number, following pages.
func (c *Client) ListPullRequestFiles(ctx context.Context, number int) ([]PullRequestFile, error) {
	var files []PullRequestFile
	for page := 1; ; page++ {
		endpoint := c.repoURL("pulls", strconv.Itoa(number), "files") +
			"?per_page=" + strconv.Itoa(filesPerPage) + "&page=" + strconv.Itoa(page)

		var batch []PullRequestFile
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &batch); err != nil {
			return nil, fmt.Errorf("failed to get PR files: %w", err)
		}
		files = append(files, batch...)
		if len(batch) < filesPerPage {
			return files, nil
		}
	}
}

func (c *Client) CreateReview(ctx context.Context, number int, review Review) (ReviewResult, error) {
	var out ReviewResult
	if err := c.doJSON(ctx, http.MethodPost, c.repoURL("pulls", strconv.Itoa(number), "reviews"), review, &out); err != nil {
		return ReviewResult{}, fmt.Errorf("failed to create review: %w", err)
	}
	return out, nil
}
