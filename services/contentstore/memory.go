package contentstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

type memoryFile struct {
	content  []byte
	revision string
	message  string
}

// MemoryStore keeps files in process memory with the same optimistic
// concurrency rules as the remote backends. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	files   map[string]memoryFile
	counter int
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memoryFile)}
}

// Name identifies the backend
func (m *MemoryStore) Name() string {
	return "memory"
}

// Provision is a no-op for the memory store
func (m *MemoryStore) Provision(ctx context.Context) error {
	return nil
}

// Exists returns the current revision of path
func (m *MemoryStore) Exists(ctx context.Context, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return "", false, nil
	}
	return f.revision, true, nil
}

// Read returns a copy of the stored content
func (m *MemoryStore) Read(ctx context.Context, path string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return nil, &Error{Op: "read", Path: path, Kind: ErrNotFound}
	}
	return &File{Path: path, Content: append([]byte(nil), f.content...), Revision: f.revision}, nil
}

// Write creates or conditionally updates path
func (m *MemoryStore) Write(ctx context.Context, req WriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.files[req.Path]
	switch {
	case !exists && req.Revision != "":
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict,
			Message: fmt.Sprintf("expected revision %s but file does not exist", req.Revision)}
	case exists && req.Revision == "":
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict,
			Message: fmt.Sprintf("file exists at revision %s", existing.revision)}
	case exists && req.Revision != existing.revision:
		return "", &Error{Op: "write", Path: req.Path, Kind: ErrConflict,
			Message: fmt.Sprintf("expected revision %s, current %s", req.Revision, existing.revision)}
	}

	m.counter++
	revision := "r" + strconv.Itoa(m.counter)
	m.files[req.Path] = memoryFile{
		content:  append([]byte(nil), req.Content...),
		revision: revision,
		message:  req.Message,
	}
	return revision, nil
}

// Location returns a memory:// reference for path
func (m *MemoryStore) Location(path string) string {
	return "memory://" + path
}

// Paths lists every stored path in sorted order
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Message returns the commit message of the last write to path
func (m *MemoryStore) Message(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].message
}
