package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"eviction_intake_go/services/contentstore"

	"github.com/klauspost/compress/zip"
)

// ErrUnknownDocument is returned for a filename that is not part of a case
var ErrUnknownDocument = errors.New("unknown case document")

// CaseDocument is one stored file of a case
type CaseDocument struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Revision    string `json:"revision"`
}

// DocumentContentType maps a case filename to its MIME type
func DocumentContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// CaseFilenames returns the files a case can hold: summary, record, every
// configured document, then extra names such as uploads of other types.
// Duplicates and names that are not plain filenames are dropped.
func (s *CaseSynchronizer) CaseFilenames(extra ...string) []string {
	names := []string{summaryFilename, recordFilename}
	for _, t := range s.cfg.DocumentTypes {
		names = append(names, t.Filename)
	}
	names = append(names, extra...)

	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, name := range names {
		if seen[name] || !isPlainFilename(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func isPlainFilename(name string) bool {
	return name != "" && name != "." && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// ListDocuments reports which of filenames are stored for caseID. A case
// without any stored file is ErrNotFound.
func (s *CaseSynchronizer) ListDocuments(ctx context.Context, caseID string, filenames []string) ([]CaseDocument, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}

	var docs []CaseDocument
	for _, name := range filenames {
		p := CasePrefix(caseID) + name
		revision, found, err := s.store.Exists(ctx, p)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		docs = append(docs, CaseDocument{
			Filename:    name,
			Path:        p,
			ContentType: DocumentContentType(name),
			Revision:    revision,
		})
	}

	if len(docs) == 0 {
		return nil, &contentstore.Error{Op: "list", Path: CasePrefix(caseID), Kind: contentstore.ErrNotFound}
	}
	return docs, nil
}

// ReadDocument reads one file of caseID. Only names in known are served.
func (s *CaseSynchronizer) ReadDocument(ctx context.Context, caseID, filename string, known []string) (*contentstore.File, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	allowed := false
	for _, name := range known {
		if name == filename {
			allowed = true
			break
		}
	}
	if !allowed || !isPlainFilename(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, filename)
	}
	return s.store.Read(ctx, CasePrefix(caseID)+filename)
}

// ArchiveDocuments writes every stored file of caseID into a deflated zip
// and returns how many files it holds
func (s *CaseSynchronizer) ArchiveDocuments(ctx context.Context, caseID string, filenames []string, w io.Writer) (int, error) {
	docs, err := s.ListDocuments(ctx, caseID, filenames)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	modified := s.cfg.Now().UTC()
	for _, doc := range docs {
		file, err := s.store.Read(ctx, doc.Path)
		if err != nil {
			zw.Close()
			return 0, err
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     doc.Filename,
			Method:   zip.Deflate,
			Modified: modified.Truncate(time.Second),
		})
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("adding %s to archive: %w", doc.Filename, err)
		}
		if _, err := entry.Write(file.Content); err != nil {
			zw.Close()
			return 0, fmt.Errorf("adding %s to archive: %w", doc.Filename, err)
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	return len(docs), nil
}
