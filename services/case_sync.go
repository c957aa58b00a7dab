package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"eviction_intake_go/models"
	"eviction_intake_go/services/contentstore"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultIndexAttempts is the total number of index append attempts
	DefaultIndexAttempts = 3
	// DefaultIndexBackoff is the first delay between index append attempts
	DefaultIndexBackoff = 250 * time.Millisecond
)

// ErrIndexAppend marks a synchronization whose case index append failed.
// The per-case files may still have been written.
var ErrIndexAppend = errors.New("case index append failed")

// ErrCorruptIndex means the stored index could not be decoded. It is never
// retried and the index is never overwritten.
var ErrCorruptIndex = errors.New("case index is not valid JSON")

// SyncConfig configures a CaseSynchronizer
type SyncConfig struct {
	DocumentTypes []DocumentType
	IndexPath     string
	// IndexAttempts bounds the index read-modify-write, first try included
	IndexAttempts int
	IndexBackoff  time.Duration
	// Parallel writes the per-case files concurrently
	Parallel bool
	// Now is the clock for index timestamps
	Now func() time.Time
}

// FileOutcome is the result of synchronizing one file
type FileOutcome struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Success  bool   `json:"success"`
	Created  bool   `json:"created"`
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SyncResult aggregates one synchronization
type SyncResult struct {
	CaseID        string        `json:"caseId"`
	Location      string        `json:"location"`
	Files         []FileOutcome `json:"files"`
	IndexAttempts int           `json:"indexAttempts"`
}

// FailedFiles counts unsuccessful per-case files
func (r *SyncResult) FailedFiles() int {
	n := 0
	for _, f := range r.Files {
		if !f.Success {
			n++
		}
	}
	return n
}

// CaseSynchronizer writes a case's files and index entry to a store
type CaseSynchronizer struct {
	store    contentstore.Store
	renderer DocumentRenderer
	cfg      SyncConfig
}

// NewCaseSynchronizer creates a synchronizer. Zero config fields get defaults
// and a nil renderer produces placeholders.
func NewCaseSynchronizer(store contentstore.Store, renderer DocumentRenderer, cfg SyncConfig) *CaseSynchronizer {
	if renderer == nil {
		renderer = PlaceholderRenderer{}
	}
	if cfg.DocumentTypes == nil {
		cfg.DocumentTypes = DefaultDocumentTypes
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = DefaultIndexPath
	}
	if cfg.IndexAttempts < 1 {
		cfg.IndexAttempts = DefaultIndexAttempts
	}
	if cfg.IndexBackoff <= 0 {
		cfg.IndexBackoff = DefaultIndexBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CaseSynchronizer{store: store, renderer: renderer, cfg: cfg}
}

// Store returns the underlying store
func (s *CaseSynchronizer) Store() contentstore.Store {
	return s.store
}

// DocumentTypes returns the configured document list
func (s *CaseSynchronizer) DocumentTypes() []DocumentType {
	return s.cfg.DocumentTypes
}

// Synchronize writes the summary, record and documents of c, then appends
// c to the case index. File writes are best effort and reported per file;
// the index append is required and its failure is returned as an error
// wrapping ErrIndexAppend together with the partial result.
func (s *CaseSynchronizer) Synchronize(ctx context.Context, c *models.Case, uploads map[string][]byte) (*SyncResult, error) {
	if err := ValidateCaseID(c.ID); err != nil {
		return nil, err
	}

	files, err := BuildCaseFiles(ctx, c, s.cfg.DocumentTypes, s.renderer, uploads)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		CaseID:   c.ID,
		Location: s.store.Location(CasePrefix(c.ID)),
		Files:    s.writeFiles(ctx, files),
	}
	if failed := result.FailedFiles(); failed > 0 {
		log.Printf("[SYNC] Case %s: %d of %d files failed to synchronize", c.ID, failed, len(files))
	}

	entry := models.NewIndexEntry(c, s.cfg.Now().UTC())
	attempts, err := s.appendIndex(ctx, entry)
	result.IndexAttempts = attempts
	if err != nil {
		log.Printf("[SYNC] Case %s: index append failed after %d attempt(s): %v", c.ID, attempts, err)
		return result, fmt.Errorf("%w: %w", ErrIndexAppend, err)
	}

	log.Printf("[SYNC] Case %s synchronized to %s (%s)", c.ID, result.Location, s.store.Name())
	return result, nil
}

func (s *CaseSynchronizer) writeFiles(ctx context.Context, files []CaseFile) []FileOutcome {
	outcomes := make([]FileOutcome, len(files))
	if !s.cfg.Parallel {
		for i, f := range files {
			outcomes[i] = s.writeFile(ctx, f)
		}
		return outcomes
	}

	// Files never share a path so they never share a revision token
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f CaseFile) {
			defer wg.Done()
			outcomes[i] = s.writeFile(ctx, f)
		}(i, f)
	}
	wg.Wait()
	return outcomes
}

// writeFile looks up the current revision and writes with it. The token is
// fetched fresh on every call and never cached.
func (s *CaseSynchronizer) writeFile(ctx context.Context, f CaseFile) FileOutcome {
	outcome := FileOutcome{Path: f.Path, Kind: f.Kind}
	if f.Err != nil {
		log.Printf("[SYNC] Could not produce %s: %v", f.Path, f.Err)
		outcome.Error = f.Err.Error()
		return outcome
	}

	revision, found, err := s.store.Exists(ctx, f.Path)
	if err != nil {
		log.Printf("[SYNC] Existence check for %s failed: %v", f.Path, err)
		outcome.Error = err.Error()
		return outcome
	}

	newRevision, err := s.store.Write(ctx, contentstore.WriteRequest{
		Path:     f.Path,
		Content:  f.Content,
		Message:  f.Message,
		Revision: revision,
	})
	if err != nil {
		log.Printf("[SYNC] Writing %s failed: %v", f.Path, err)
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.Created = !found
	outcome.Revision = newRevision
	return outcome
}

// appendIndex runs the index read-modify-write until it lands, a
// non-retryable error occurs or the attempts run out. Each attempt reads
// the index again for a fresh revision.
func (s *CaseSynchronizer) appendIndex(ctx context.Context, entry models.IndexEntry) (int, error) {
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(s.cfg.IndexAttempts-1), retry.NewExponential(s.cfg.IndexBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := s.appendIndexOnce(ctx, entry)
		if err == nil {
			return nil
		}
		if contentstore.IsRetryable(err) {
			log.Printf("[SYNC] Index append attempt %d/%d for %s failed, retrying: %v", attempts, s.cfg.IndexAttempts, entry.CaseID, err)
			return retry.RetryableError(err)
		}
		return err
	})
	return attempts, err
}

func (s *CaseSynchronizer) appendIndexOnce(ctx context.Context, entry models.IndexEntry) error {
	index, revision, err := s.ReadIndex(ctx)
	if err != nil {
		return err
	}

	index.Cases = append(index.Cases, entry)
	content, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding case index: %w", err)
	}

	_, err = s.store.Write(ctx, contentstore.WriteRequest{
		Path:     s.cfg.IndexPath,
		Content:  append(content, '\n'),
		Message:  fmt.Sprintf("Update index with case %s", entry.CaseID),
		Revision: revision,
	})
	return err
}

// ReadIndex returns the case index and its revision. A missing index is an
// empty index with no revision.
func (s *CaseSynchronizer) ReadIndex(ctx context.Context) (*models.CaseIndex, string, error) {
	file, err := s.store.Read(ctx, s.cfg.IndexPath)
	if err != nil {
		if contentstore.IsNotFound(err) {
			return &models.CaseIndex{Cases: []models.IndexEntry{}}, "", nil
		}
		return nil, "", err
	}

	var index models.CaseIndex
	if err := json.Unmarshal(file.Content, &index); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrCorruptIndex, s.cfg.IndexPath, err)
	}
	if index.Cases == nil {
		index.Cases = []models.IndexEntry{}
	}
	return &index, file.Revision, nil
}

// StatusUpdate is a clerk's change to a filed case
type StatusUpdate struct {
	Status             string
	OfficialCaseNumber string
	ClerkNotes         string
	FilingDate         *models.Date
}

// UpdateStatus rewrites the stored record of caseID with the new status
// and clerk fields, then refreshes its summary. The record write retries
// on conflict like the index append. The index is left untouched.
func (s *CaseSynchronizer) UpdateStatus(ctx context.Context, caseID string, update StatusUpdate) (*models.Case, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	update.Status = strings.ToLower(strings.TrimSpace(update.Status))
	if !models.IsValidCaseStatus(update.Status) {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", update.Status)}
	}

	recordPath := CasePrefix(caseID) + recordFilename
	var updated *models.Case
	backoff := retry.WithMaxRetries(uint64(s.cfg.IndexAttempts-1), retry.NewExponential(s.cfg.IndexBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		file, err := s.store.Read(ctx, recordPath)
		if err != nil {
			return retryIfRetryable(err)
		}

		var c models.Case
		if err := json.Unmarshal(file.Content, &c); err != nil {
			return fmt.Errorf("decoding %s: %w", recordPath, err)
		}

		now := s.cfg.Now().UTC()
		c.Status = update.Status
		if update.OfficialCaseNumber != "" {
			c.OfficialCaseNumber = sanitizeText(update.OfficialCaseNumber)
		}
		if update.ClerkNotes != "" {
			c.ClerkNotes = sanitizeText(update.ClerkNotes)
		}
		if update.FilingDate != nil {
			c.FilingDate = update.FilingDate
		}
		c.UpdatedAt = &now

		content, err := json.MarshalIndent(&c, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding case record: %w", err)
		}
		_, err = s.store.Write(ctx, contentstore.WriteRequest{
			Path:     recordPath,
			Content:  append(content, '\n'),
			Message:  fmt.Sprintf("Update status of %s to %s", caseID, update.Status),
			Revision: file.Revision,
		})
		if err != nil {
			return retryIfRetryable(err)
		}
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary, err := RenderCaseSummary(updated, s.cfg.DocumentTypes)
	if err == nil {
		outcome := s.writeFile(ctx, CaseFile{
			Path:    CasePrefix(caseID) + summaryFilename,
			Kind:    models.FileKindSummary,
			Content: summary,
			Message: fmt.Sprintf("Update case summary for %s", caseID),
		})
		if !outcome.Success {
			log.Printf("[WARNING] Status of %s updated but summary refresh failed: %s", caseID, outcome.Error)
		}
	}

	log.Printf("[SYNC] Case %s status set to %s", caseID, update.Status)
	return updated, nil
}

func retryIfRetryable(err error) error {
	if contentstore.IsRetryable(err) {
		return retry.RetryableError(err)
	}
	return err
}
