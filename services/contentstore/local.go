package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalStore keeps files under a directory on disk. The revision of a file
// is the hex SHA-256 of its content, so a rewrite with identical bytes keeps
// the same revision.
type LocalStore struct {
	baseDir string
	logger  *slog.Logger

	// Serializes compare-and-write within this process
	mu sync.Mutex
}

// NewLocalStore creates a local filesystem store rooted at baseDir
func NewLocalStore(baseDir string, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{baseDir: baseDir, logger: logger}
}

// Name identifies the backend
func (l *LocalStore) Name() string {
	return "local"
}

// Provision creates the base directory
func (l *LocalStore) Provision(ctx context.Context) error {
	if err := os.MkdirAll(l.baseDir, 0755); err != nil {
		return &Error{Op: "provision", Path: l.baseDir, Kind: ErrRejected, Err: err}
	}
	return nil
}

// Exists returns the content hash of path
func (l *LocalStore) Exists(ctx context.Context, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	revision, err := l.revision("exists", path)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return revision, true, nil
}

// Read loads path from disk
func (l *LocalStore) Read(ctx context.Context, path string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := l.resolve("read", path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, l.fsError("read", path, err)
	}
	return &File{Path: path, Content: content, Revision: hashContent(content)}, nil
}

// Write creates or conditionally replaces path
func (l *LocalStore) Write(ctx context.Context, req WriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := l.resolve("write", req.Path)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.revision("write", req.Path)
	exists := err == nil
	if err != nil && !IsNotFound(err) {
		return "", err
	}

	switch {
	case exists && req.Revision == "":
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict, Message: "file already exists"}
	case !exists && req.Revision != "":
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict, Message: "file no longer exists"}
	case exists && req.Revision != current:
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict,
			Message: fmt.Sprintf("expected revision %s, current %s", req.Revision, current)}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", l.fsError("write", req.Path, err)
	}

	// Write to a sibling temp file and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return "", l.fsError("write", req.Path, err)
	}
	if _, err := tmp.Write(req.Content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", l.fsError("write", req.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", l.fsError("write", req.Path, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", l.fsError("write", req.Path, err)
	}

	revision := hashContent(req.Content)
	l.logger.Debug("local: file written", "path", req.Path, "created", !exists, "revision", revision)
	return revision, nil
}

// Location returns the absolute on-disk path. A directory path keeps its
// trailing slash.
func (l *LocalStore) Location(path string) string {
	base, err := filepath.Abs(l.baseDir)
	if err != nil {
		base = l.baseDir
	}
	location := filepath.ToSlash(filepath.Join(base, filepath.FromSlash(path)))
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(location, "/") {
		location += "/"
	}
	return location
}

func (l *LocalStore) revision(op, path string) (string, error) {
	fullPath, err := l.resolve(op, path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", l.fsError(op, path, err)
	}
	return hashContent(content), nil
}

// resolve maps a store path to a file under baseDir and refuses anything
// that would escape it
func (l *LocalStore) resolve(op, path string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(path))
	if cleaned == string(filepath.Separator) || strings.Contains(path, "..") {
		return "", &Error{Op: op, Path: path, Kind: ErrRejected, Message: "invalid path"}
	}
	return filepath.Join(l.baseDir, cleaned), nil
}

func (l *LocalStore) fsError(op, path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &Error{Op: op, Path: path, Kind: ErrNotFound}
	case errors.Is(err, os.ErrPermission):
		return &Error{Op: op, Path: path, Kind: ErrAuth, Err: err}
	default:
		return &Error{Op: op, Path: path, Kind: ErrTransient, Err: err}
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
