// Package storetest provides a recording, fault-injecting store wrapper
// for tests of code built on contentstore.
package storetest

import (
	"context"
	"sync"

	"eviction_intake_go/services/contentstore"
)

// Operation names used in calls and faults
const (
	OpProvision = "provision"
	OpExists    = "exists"
	OpRead      = "read"
	OpWrite     = "write"
)

// Call is one recorded store operation
type Call struct {
	Op       string
	Path     string
	Revision string // revision sent with a write
}

type fault struct {
	op        string
	path      string
	remaining int
	err       error
}

// Recorder wraps a store, records every call and fails selected calls
type Recorder struct {
	contentstore.Store

	mu     sync.Mutex
	calls  []Call
	faults []*fault
}

// New wraps inner. A nil inner gets a fresh memory store.
func New(inner contentstore.Store) *Recorder {
	if inner == nil {
		inner = contentstore.NewMemoryStore()
	}
	return &Recorder{Store: inner}
}

// FailNext makes the next n calls of op on path return err without
// reaching the wrapped store. An empty path matches every path.
func (r *Recorder) FailNext(op, path string, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, &fault{op: op, path: path, remaining: n, err: err})
}

// Calls returns a copy of every recorded call in order
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of op touched path. An empty path counts all.
func (r *Recorder) Count(op, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Op == op && (path == "" || c.Path == path) {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and pending faults
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.faults = nil
}

func (r *Recorder) record(op, path, revision string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Op: op, Path: path, Revision: revision})
	for _, f := range r.faults {
		if f.remaining > 0 && f.op == op && (f.path == "" || f.path == path) {
			f.remaining--
			return f.err
		}
	}
	return nil
}

// Provision records and delegates
func (r *Recorder) Provision(ctx context.Context) error {
	if err := r.record(OpProvision, "", ""); err != nil {
		return err
	}
	return r.Store.Provision(ctx)
}

// Exists records and delegates
func (r *Recorder) Exists(ctx context.Context, path string) (string, bool, error) {
	if err := r.record(OpExists, path, ""); err != nil {
		return "", false, err
	}
	return r.Store.Exists(ctx, path)
}

// Read records and delegates
func (r *Recorder) Read(ctx context.Context, path string) (*contentstore.File, error) {
	if err := r.record(OpRead, path, ""); err != nil {
		return nil, err
	}
	return r.Store.Read(ctx, path)
}

// Write records and delegates
func (r *Recorder) Write(ctx context.Context, req contentstore.WriteRequest) (string, error) {
	if err := r.record(OpWrite, req.Path, req.Revision); err != nil {
		return "", err
	}
	return r.Store.Write(ctx, req)
}

// Conflict builds an error matching contentstore.ErrConflict
func Conflict(path string) error {
	return &contentstore.Error{Op: OpWrite, Path: path, StatusCode: 409, Kind: contentstore.ErrConflict, Message: "injected conflict"}
}

// Transient builds an error matching contentstore.ErrTransient
func Transient(op, path string) error {
	return &contentstore.Error{Op: op, Path: path, StatusCode: 503, Kind: contentstore.ErrTransient, Message: "injected outage"}
}

// Auth builds an error matching contentstore.ErrAuth
func Auth(op, path string) error {
	return &contentstore.Error{Op: op, Path: path, StatusCode: 401, Kind: contentstore.ErrAuth, Message: "Bad credentials"}
}
