package contentstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// gitHubAPIVersion pins the REST API version header
const gitHubAPIVersion = "2022-11-28"

// maxResponseSize caps how much of a response body is read. The blobs API
// serves files up to 100 MB, base64-inflated by a third.
const maxResponseSize = 140 << 20

// GitHubConfig holds configuration for a GitHub-backed store
type GitHubConfig struct {
	// BaseURL is the API root. Defaults to https://api.github.com.
	BaseURL string
	// WebURL is the browser root used by Location. Defaults to https://github.com.
	WebURL string

	Owner  string
	Repo   string
	Branch string
	Token  string

	// Private controls the visibility of a repository created by Provision
	Private bool

	// Timeout bounds every API call. Defaults to 30 seconds.
	Timeout time.Duration

	// HTTPClient defaults to a client with Timeout set
	HTTPClient *http.Client

	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// GitHubStore stores files in a GitHub repository through the contents API.
// Revision tokens are blob SHAs.
type GitHubStore struct {
	baseURL    string
	webURL     string
	owner      string
	repo       string
	branch     string
	token      string
	private    bool
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGitHubStore creates a GitHub store. Owner, repo and token are required.
func NewGitHubStore(cfg GitHubConfig) (*GitHubStore, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github store: owner and repo are required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("github store: token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	webURL := strings.TrimRight(cfg.WebURL, "/")
	if webURL == "" {
		webURL = "https://github.com"
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GitHubStore{
		baseURL:    baseURL,
		webURL:     webURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		branch:     branch,
		token:      cfg.Token,
		private:    cfg.Private,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the backend
func (s *GitHubStore) Name() string {
	return "github"
}

// contentResponse is the subset of the contents API file object we use
type contentResponse struct {
	Type     string `json:"type"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Exists looks up the blob SHA of path on the configured branch
func (s *GitHubStore) Exists(ctx context.Context, path string) (string, bool, error) {
	file, err := s.get(ctx, "exists", path)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return file.SHA, true, nil
}

// Read fetches and decodes path
func (s *GitHubStore) Read(ctx context.Context, path string) (*File, error) {
	file, err := s.get(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	if file.Encoding == "none" && file.SHA != "" {
		// Files over 1 MB come back without inline content. The blob keeps
		// the sha we already hold, so it stays the revision.
		blob, err := s.blob(ctx, path, file.SHA)
		if err != nil {
			return nil, err
		}
		file.Content, file.Encoding = blob.Content, blob.Encoding
	}
	if file.Encoding != "base64" {
		return nil, &Error{Op: "read", Path: path, Kind: ErrRejected, Message: fmt.Sprintf("unsupported content encoding %q", file.Encoding)}
	}
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Kind: ErrRejected, Message: "invalid base64 content", Err: err}
	}
	return &File{Path: path, Content: content, Revision: file.SHA}, nil
}

// blob fetches a file's bytes by sha through the git data API
func (s *GitHubStore) blob(ctx context.Context, path, sha string) (*contentResponse, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s",
		s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo), url.PathEscape(sha))
	body, err := s.do(ctx, "read", path, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var blob contentResponse
	if err := json.Unmarshal(body, &blob); err != nil {
		return nil, &Error{Op: "read", Path: path, Kind: ErrRejected, Message: "unexpected blob response", Err: err}
	}
	return &blob, nil
}

func (s *GitHubStore) get(ctx context.Context, op, path string) (*contentResponse, error) {
	endpoint := s.contentsURL(path) + "?ref=" + url.QueryEscape(s.branch)
	body, err := s.do(ctx, op, path, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var file contentResponse
	if err := json.Unmarshal(body, &file); err != nil {
		// A directory listing is a JSON array and lands here too
		return nil, &Error{Op: op, Path: path, Kind: ErrRejected, Message: "unexpected contents response", Err: err}
	}
	return &file, nil
}

// Write creates or updates path. GitHub answers a stale sha with 409 and a
// create over an existing file with 422 "sha wasn't supplied"; both mean
// another writer got there first.
func (s *GitHubStore) Write(ctx context.Context, req WriteRequest) (string, error) {
	payload := map[string]string{
		"message": req.Message,
		"content": base64.StdEncoding.EncodeToString(req.Content),
		"branch":  s.branch,
	}
	if req.Revision != "" {
		payload["sha"] = req.Revision
	}

	body, err := s.do(ctx, "write", req.Path, http.MethodPut, s.contentsURL(req.Path), payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrRejected, Message: "unexpected write response", Err: err}
	}

	s.logger.Info("github: file written",
		"path", req.Path,
		"created", req.Revision == "",
		"sha", result.Content.SHA,
	)
	return result.Content.SHA, nil
}

// Provision creates the repository under the authenticated user when it
// does not exist. "Already exists" is success.
func (s *GitHubStore) Provision(ctx context.Context) error {
	repoURL := fmt.Sprintf("%s/repos/%s/%s", s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo))
	_, err := s.do(ctx, "provision", s.repo, http.MethodGet, repoURL, nil)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return err
	}

	payload := map[string]any{
		"name":        s.repo,
		"private":     s.private,
		"auto_init":   true,
		"description": "Eviction case filings",
	}
	_, err = s.do(ctx, "provision", s.repo, http.MethodPost, s.baseURL+"/user/repos", payload)
	if err != nil {
		var storeErr *Error
		if errors.As(err, &storeErr) && storeErr.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(storeErr.Message), "already exists") {
			s.logger.Info("github: repository already exists", "repo", s.repo)
			return nil
		}
		return err
	}

	s.logger.Info("github: repository created", "owner", s.owner, "repo", s.repo, "private", s.private)
	return nil
}

// Location returns the browser URL for path on the configured branch
func (s *GitHubStore) Location(path string) string {
	return fmt.Sprintf("%s/%s/%s/tree/%s/%s", s.webURL, s.owner, s.repo, s.branch, strings.TrimPrefix(path, "/"))
}

func (s *GitHubStore) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo), strings.Join(segments, "/"))
}

// do runs one authenticated API call under the per-call timeout and maps
// non-2xx responses to *Error.
func (s *GitHubStore) do(ctx context.Context, op, path, method, endpoint string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+s.token)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", gitHubAPIVersion)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		s.logger.Warn("github: request failed", "op", op, "path", path, "error", err)
		return nil, transportError(op, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(op, path, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, s.parseError(op, path, response.StatusCode, body)
	}
	return body, nil
}

func (s *GitHubStore) parseError(op, path string, status int, body []byte) error {
	var wire struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		message = wire.Message
	}

	kind := kindForStatus(status)
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusForbidden && strings.Contains(lower, "rate limit"):
		kind = ErrTransient
	case status == http.StatusUnprocessableEntity && op == "write" && strings.Contains(lower, "sha"):
		kind = ErrConflict
	}

	if kind != ErrNotFound {
		s.logger.Warn("github: API error", "op", op, "path", path, "status", status, "message", message)
	}
	return &Error{Op: op, Path: path, StatusCode: status, Kind: kind, Message: message}
}
