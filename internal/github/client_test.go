package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("AdobeDocs", "docs", "tok", WithBaseURL(srv.URL))
}

func TestGetFileContent_UsesRawMediaTypeAndCache(t *testing.T) {
	var hits int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/repos/AdobeDocs/docs/contents/src/pages/a%20b.md", r.URL.EscapedPath())
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, mediaRaw, r.Header.Get("Accept"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, "# Page\n")
	}))

	for i := 0; i < 2; i++ {
		text, err := c.GetFileContent(context.Background(), "src/pages/a b.md", "main")
		require.NoError(t, err)
		assert.Equal(t, "# Page\n", text)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetFileContent_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))

	_, err := c.GetFileContent(context.Background(), "missing.md", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not Found", apiErr.Message)
}

func TestCreateBranch_ExistingRefIsReused(t *testing.T) {
	var posted bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/AdobeDocs/docs/git/ref/heads/ai-metadata":
			fmt.Fprint(w, `{"ref":"refs/heads/ai-metadata","object":{"sha":"branch-sha","type":"commit"}}`)
		case r.Method == http.MethodPost:
			posted = true
		}
	}))

	ref, created, err := c.CreateBranch(context.Background(), "heads/ai-metadata", "base-sha")
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, posted)
	assert.Equal(t, "branch-sha", ref.Object.SHA)
}

func TestCreateBranch_CreatesMissingRef(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/AdobeDocs/docs/git/refs":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refs/heads/ai-metadata", body["ref"])
			assert.Equal(t, "base-sha", body["sha"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"ref":"refs/heads/ai-metadata","object":{"sha":"base-sha"}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))

	ref, created, err := c.CreateBranch(context.Background(), "heads/ai-metadata", "base-sha")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "base-sha", ref.Object.SHA)
}

func TestCreateBranch_OtherErrorsPropagate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, _, err := c.CreateBranch(context.Background(), "heads/x", "sha")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestGitDataRequests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		if len(body) > 0 {
			require.NoError(t, json.Unmarshal(body, &m))
		}

		switch r.URL.Path {
		case "/repos/AdobeDocs/docs/git/blobs":
			assert.Equal(t, "utf-8", m["encoding"])
			fmt.Fprint(w, `{"sha":"blob1"}`)
		case "/repos/AdobeDocs/docs/git/trees":
			assert.Equal(t, "base", m["base_tree"])
			entry := m["tree"].([]any)[0].(map[string]any)
			assert.Equal(t, "100644", entry["mode"])
			assert.Equal(t, "blob", entry["type"])
			fmt.Fprint(w, `{"sha":"tree1"}`)
		case "/repos/AdobeDocs/docs/git/commits":
			assert.Equal(t, []any{"parent"}, m["parents"])
			fmt.Fprint(w, `{"sha":"commit1"}`)
		case "/repos/AdobeDocs/docs/git/refs/heads/ai-metadata":
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, false, m["force"])
			assert.Equal(t, "commit1", m["sha"])
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	ctx := context.Background()

	blob, err := c.CreateBlob(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, "blob1", blob)

	tree, err := c.CreateTree(ctx, "base", []TreeEntry{BlobEntry("src/pages/a.md", blob)})
	require.NoError(t, err)
	assert.Equal(t, "tree1", tree)

	commit, err := c.CreateCommit(ctx, "msg", tree, []string{"parent"})
	require.NoError(t, err)
	assert.Equal(t, "commit1", commit)

	require.NoError(t, c.UpdateRef(ctx, "refs/heads/ai-metadata", commit, false))
}

func TestListDirectory_Recurses(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/AdobeDocs/docs/contents/src/pages":
			fmt.Fprint(w, `[{"name":"a.md","path":"src/pages/a.md","type":"file"},{"name":"guide","path":"src/pages/guide","type":"dir"}]`)
		case "/repos/AdobeDocs/docs/contents/src/pages/guide":
			fmt.Fprint(w, `[{"name":"b.md","path":"src/pages/guide/b.md","type":"file"},{"name":"link","path":"src/pages/guide/link","type":"symlink"}]`)
		default:
			http.NotFound(w, r)
		}
	}))

	files, err := c.ListDirectory(context.Background(), "src/pages/", "")
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"src/pages/a.md", "src/pages/guide/b.md"}, paths)
}

func TestListPullRequestFiles_Paginates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/AdobeDocs/docs/pulls/7/files", r.URL.Path)
		n := filesPerPage
		if r.URL.Query().Get("page") == "2" {
			n = 1
		}
		files := make([]PullRequestFile, n)
		for i := range files {
			files[i] = PullRequestFile{Filename: fmt.Sprintf("p%s-%d.md", r.URL.Query().Get("page"), i)}
		}
		require.NoError(t, json.NewEncoder(w).Encode(files))
	}))

	files, err := c.ListPullRequestFiles(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, files, filesPerPage+1)
	assert.Equal(t, "p2-0.md", files[filesPerPage].Filename)
}

func TestCreateReview(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/AdobeDocs/docs/pulls/3/reviews", r.URL.Path)
		var review Review
		require.NoError(t, json.NewDecoder(r.Body).Decode(&review))
		assert.Equal(t, "COMMENT", review.Event)
		require.Len(t, review.Comments, 1)
		fmt.Fprint(w, `{"id":11,"state":"COMMENTED","html_url":"https://example.test/r/11"}`)
	}))

	res, err := c.CreateReview(context.Background(), 3, Review{
		Body:     "AI suggestions",
		Event:    "COMMENT",
		Comments: []ReviewComment{SuggestionComment("a.md", 1, 4, "x")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.ID)
}

func TestSuggestionComment_JSONShape(t *testing.T) {
	multi, err := json.Marshal(SuggestionComment("a.md", 1, 4, "body"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"a.md","start_line":1,"start_side":"RIGHT","line":4,"side":"RIGHT","body":"body"}`, string(multi))

	single, err := json.Marshal(SuggestionComment("a.md", 1, 1, "body"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"a.md","line":1,"side":"RIGHT","body":"body"}`, string(single))
}
