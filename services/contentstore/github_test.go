package contentstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub is a minimal contents API keyed by path
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]string // path -> base64 content
	shas     map[string]string
	seq      int
	repo     bool
	requests []*http.Request
	status   map[string]int // "METHOD path" -> forced status
	message  map[string]string
	large    map[string]bool // served like files over 1 MB
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		files:   map[string]string{},
		shas:    map[string]string{},
		repo:    true,
		status:  map[string]int{},
		message: map[string]string{},
		large:   map[string]bool{},
	}
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	key := r.Method + " " + r.URL.Path
	if status, ok := f.status[key]; ok {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"message":%q}`, f.message[key])
		return
	}

	const prefix = "/repos/hc/filings/contents/"
	switch {
	case r.URL.Path == "/repos/hc/filings" && r.Method == http.MethodGet:
		if !f.repo {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprint(w, `{"name":"filings"}`)
	case r.URL.Path == "/user/repos" && r.Method == http.MethodPost:
		f.repo = true
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"name":"filings"}`)
	case strings.HasPrefix(r.URL.Path, prefix) && r.Method == http.MethodGet:
		path := strings.TrimPrefix(r.URL.Path, prefix)
		content, ok := f.files[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		if f.large[path] {
			json.NewEncoder(w).Encode(map[string]string{
				"type": "file", "sha": f.shas[path], "encoding": "none", "content": "",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"type": "file", "sha": f.shas[path], "encoding": "base64", "content": content,
		})
	case strings.HasPrefix(r.URL.Path, "/repos/hc/filings/git/blobs/") && r.Method == http.MethodGet:
		sha := strings.TrimPrefix(r.URL.Path, "/repos/hc/filings/git/blobs/")
		for path, current := range f.shas {
			if current == sha {
				json.NewEncoder(w).Encode(map[string]any{
					"sha": sha, "encoding": "base64", "content": f.files[path], "size": len(f.files[path]),
				})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	case strings.HasPrefix(r.URL.Path, prefix) && r.Method == http.MethodPut:
		path := strings.TrimPrefix(r.URL.Path, prefix)
		var body struct {
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		current, exists := f.shas[path]
		if exists && body.SHA == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"Invalid request.\n\n\"sha\" wasn't supplied."}`)
			return
		}
		if exists && body.SHA != current {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprintf(w, `{"message":"%s does not match %s"}`, path, body.SHA)
			return
		}
		f.seq++
		sha := fmt.Sprintf("sha%d", f.seq)
		f.files[path] = body.Content
		f.shas[path] = sha
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		fmt.Fprintf(w, `{"content":{"sha":%q}}`, sha)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGitHub) put(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.files[path] = base64.StdEncoding.EncodeToString([]byte(content))
	f.shas[path] = fmt.Sprintf("sha%d", f.seq)
}

func newTestGitHubStore(t *testing.T, fake *fakeGitHub) *GitHubStore {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewGitHubStore(GitHubConfig{
		BaseURL: server.URL,
		Owner:   "hc",
		Repo:    "filings",
		Token:   "test-token",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return store
}

func TestNewGitHubStore(t *testing.T) {
	t.Run("requires owner repo and token", func(t *testing.T) {
		_, err := NewGitHubStore(GitHubConfig{Repo: "r", Token: "t"})
		assert.Error(t, err)
		_, err = NewGitHubStore(GitHubConfig{Owner: "o", Repo: "r"})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		store, err := NewGitHubStore(GitHubConfig{Owner: "o", Repo: "r", Token: "t"})
		assert.NoError(t, err)
		assert.Equal(t, "https://api.github.com", store.baseURL)
		assert.Equal(t, "main", store.branch)
		assert.Equal(t, 30*time.Second, store.timeout)
		assert.Equal(t, "github", store.Name())
	})
}

func TestGitHubStoreExists(t *testing.T) {
	fake := newFakeGitHub()
	store := newTestGitHubStore(t, fake)
	ctx := context.Background()

	rev, found, err := store.Exists(ctx, "cases/HC-1/README.md")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, rev)

	fake.put("cases/HC-1/README.md", "# HC-1")
	rev, found, err = store.Exists(ctx, "cases/HC-1/README.md")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sha1", rev)

	require.NotEmpty(t, fake.requests)
	last := fake.requests[len(fake.requests)-1]
	assert.Equal(t, "Bearer test-token", last.Header.Get("Authorization"))
	assert.Equal(t, gitHubAPIVersion, last.Header.Get("X-GitHub-Api-Version"))
	assert.Equal(t, "main", last.URL.Query().Get("ref"))
}

func TestGitHubStoreReadWrite(t *testing.T) {
	fake := newFakeGitHub()
	store := newTestGitHubStore(t, fake)
	ctx := context.Background()

	t.Run("create then read", func(t *testing.T) {
		rev, err := store.Write(ctx, WriteRequest{Path: "cases/index.json", Content: []byte(`{"cases":[]}`), Message: "init"})
		assert.NoError(t, err)
		assert.NotEmpty(t, rev)

		file, err := store.Read(ctx, "cases/index.json")
		require.NoError(t, err)
		assert.Equal(t, `{"cases":[]}`, string(file.Content))
		assert.Equal(t, rev, file.Revision)
	})

	t.Run("create over existing file is a conflict", func(t *testing.T) {
		_, err := store.Write(ctx, WriteRequest{Path: "cases/index.json", Content: []byte("x")})
		assert.True(t, IsConflict(err))
		assert.True(t, IsRetryable(err))
	})

	t.Run("stale revision is a conflict", func(t *testing.T) {
		_, err := store.Write(ctx, WriteRequest{Path: "cases/index.json", Content: []byte("x"), Revision: "stale"})
		assert.True(t, IsConflict(err))

		var storeErr *Error
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, http.StatusConflict, storeErr.StatusCode)
	})

	t.Run("update with current revision", func(t *testing.T) {
		rev, _, err := store.Exists(ctx, "cases/index.json")
		require.NoError(t, err)

		newRev, err := store.Write(ctx, WriteRequest{Path: "cases/index.json", Content: []byte(`{"cases":[1]}`), Revision: rev})
		assert.NoError(t, err)
		assert.NotEqual(t, rev, newRev)
	})

	t.Run("missing file read", func(t *testing.T) {
		_, err := store.Read(ctx, "cases/none.json")
		assert.True(t, IsNotFound(err))
	})
}

func TestGitHubStoreReadLargeFile(t *testing.T) {
	fake := newFakeGitHub()
	store := newTestGitHubStore(t, fake)
	ctx := context.Background()

	index := `{"cases":[` + strings.Repeat(`{"case_id":"HC-1001"},`, 64) + `{"case_id":"HC-1002"}]}`
	fake.put("cases/index.json", index)
	fake.large["cases/index.json"] = true

	file, err := store.Read(ctx, "cases/index.json")
	require.NoError(t, err)
	assert.Equal(t, index, string(file.Content))

	rev, _, err := store.Exists(ctx, "cases/index.json")
	require.NoError(t, err)
	assert.Equal(t, rev, file.Revision)

	newRev, err := store.Write(ctx, WriteRequest{Path: "cases/index.json", Content: []byte(`{"cases":[]}`), Revision: file.Revision})
	require.NoError(t, err)
	assert.NotEqual(t, rev, newRev)

	t.Run("missing blob", func(t *testing.T) {
		fake.status["GET /repos/hc/filings/git/blobs/"+newRev] = http.StatusNotFound
		fake.message["GET /repos/hc/filings/git/blobs/"+newRev] = "Not Found"

		_, err := store.Read(ctx, "cases/index.json")
		assert.True(t, IsNotFound(err))
	})
}

func TestGitHubStoreErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		kind    error
	}{
		{"bad credentials", http.StatusUnauthorized, "Bad credentials", ErrAuth},
		{"forbidden", http.StatusForbidden, "Resource not accessible by integration", ErrAuth},
		{"rate limited", http.StatusForbidden, "API rate limit exceeded for user", ErrTransient},
		{"server error", http.StatusBadGateway, "Server Error", ErrTransient},
		{"too many requests", http.StatusTooManyRequests, "slow down", ErrTransient},
		{"validation", http.StatusUnprocessableEntity, "path is invalid", ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeGitHub()
			fake.status["PUT /repos/hc/filings/contents/cases/a.json"] = tt.status
			fake.message["PUT /repos/hc/filings/contents/cases/a.json"] = tt.message
			store := newTestGitHubStore(t, fake)

			_, err := store.Write(context.Background(), WriteRequest{Path: "cases/a.json", Content: []byte("{}")})
			assert.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestGitHubStoreTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	store, err := NewGitHubStore(GitHubConfig{BaseURL: server.URL, Owner: "hc", Repo: "filings", Token: "t", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, _, err = store.Exists(context.Background(), "cases/index.json")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestGitHubStoreProvision(t *testing.T) {
	t.Run("existing repository", func(t *testing.T) {
		fake := newFakeGitHub()
		store := newTestGitHubStore(t, fake)
		assert.NoError(t, store.Provision(context.Background()))
		assert.Len(t, fake.requests, 1)
	})

	t.Run("creates missing repository", func(t *testing.T) {
		fake := newFakeGitHub()
		fake.repo = false
		store := newTestGitHubStore(t, fake)
		assert.NoError(t, store.Provision(context.Background()))
		assert.True(t, fake.repo)
	})

	t.Run("already exists is success", func(t *testing.T) {
		fake := newFakeGitHub()
		fake.repo = false
		fake.status["POST /user/repos"] = http.StatusUnprocessableEntity
		fake.message["POST /user/repos"] = "Repository creation failed: name already exists on this account"
		store := newTestGitHubStore(t, fake)
		assert.NoError(t, store.Provision(context.Background()))
	})
}

func TestGitHubStoreLocation(t *testing.T) {
	store, err := NewGitHubStore(GitHubConfig{Owner: "hc", Repo: "filings", Token: "t", Branch: "intake"})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/hc/filings/tree/intake/cases/HC-1001", store.Location("cases/HC-1001"))
}
