package models

import "time"

// CaseIndex is the aggregate file listing every filing in submission order.
// It is append-only: the same case synchronized twice appears twice.
type CaseIndex struct {
	Cases []IndexEntry `json:"cases"`
}

// IndexEntry is one row of the case collection index
type IndexEntry struct {
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"`
	Landlord  string    `json:"landlord"`
	Tenant    string    `json:"tenant"`
	Property  string    `json:"property"`
	Submitted time.Time `json:"submitted"`
}

// NewIndexEntry builds the index row for a case
func NewIndexEntry(c *Case, submitted time.Time) IndexEntry {
	status := c.Status
	if status == "" {
		status = CaseStatusSubmitted
	}
	return IndexEntry{
		CaseID:    c.ID,
		Status:    status,
		Landlord:  c.Landlord.Name,
		Tenant:    c.Tenant.Name,
		Property:  c.Property.Address,
		Submitted: submitted.UTC(),
	}
}

// Count returns how many entries carry the given case id
func (idx *CaseIndex) Count(caseID string) int {
	n := 0
	for _, e := range idx.Cases {
		if e.CaseID == caseID {
			n++
		}
	}
	return n
}
