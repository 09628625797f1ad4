package patents

import (
	"strings"
	"time"

	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

// Status is the review state of a patent record.
type Status string

const (
	StatusActive   Status = "Active"
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Priority is the submitter-declared urgency of a patent.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every accepted priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// Storage says where a patent record lives.
type Storage string

const (
	// StorageOnChain records are notarized in a mined ledger block.
	StorageOnChain Storage = "on-chain"
	// StorageOffChain records are kept in memory without notarization.
	StorageOffChain Storage = "off-chain"
)

// Types lists the patent categories a submission may use.
var Types = []string{
	"Utility Patent",
	"Design Patent",
	"Plant Patent",
	"Provisional Patent",
	"Software Patent",
	"Business Method Patent",
	"Biotechnology Patent",
	"Chemical Patent",
	"Mechanical Patent",
	"Certificate of Amendment",
	"Other",
}

// Patent is a submitted patent record, on-chain or off.
type Patent struct {
	ID                string    `json:"patent_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Inventor          string    `json:"inventor"`
	PatentType        string    `json:"patent_type"`
	Priority          Priority  `json:"priority"`
	Status            Status    `json:"status"`
	DocHash           string    `json:"doc_hash"`
	EstimatedValue    float64   `json:"estimated_value"`
	Keywords          string    `json:"keywords,omitempty"`
	RelatedPatents    string    `json:"related_patents,omitempty"`
	Collaboration     string    `json:"collaboration,omitempty"`
	FundingSource     string    `json:"funding_source,omitempty"`
	OnChain           bool      `json:"is_on_blockchain"`
	VerificationScore int       `json:"verification_score"`
	CreatedBy         string    `json:"created_by,omitempty"`
	FileName          string    `json:"file_name,omitempty"`
	FileSize          int64     `json:"file_size"`
	Timestamp         time.Time `json:"timestamp"`

	// BlockIndex and BlockHash locate the notarizing block. Both are unset for
	// off-chain records. They are never part of the block payload.
	BlockIndex *int   `json:"block_index,omitempty"`
	BlockHash  string `json:"block_hash,omitempty"`
}

// Storage reports where p lives.
func (p *Patent) Storage() Storage {
	if p.OnChain {
		return StorageOnChain
	}
	return StorageOffChain
}

// Payload converts p into the record notarized by a ledger block.
func (p *Patent) Payload() chain.Payload {
	return chain.Payload{
		"patent_id":          chain.String(p.ID),
		"title":              chain.String(p.Title),
		"description":        chain.String(p.Description),
		"inventor":           chain.String(p.Inventor),
		"patent_type":        chain.String(p.PatentType),
		"priority":           chain.String(string(p.Priority)),
		"status":             chain.String(string(p.Status)),
		"doc_hash":           chain.String(p.DocHash),
		"estimated_value":    chain.Number(p.EstimatedValue),
		"keywords":           chain.String(p.Keywords),
		"related_patents":    chain.String(p.RelatedPatents),
		"collaboration":      chain.String(p.Collaboration),
		"funding_source":     chain.String(p.FundingSource),
		"is_on_blockchain":   chain.Bool(p.OnChain),
		"verification_score": chain.Int(int64(p.VerificationScore)),
		"created_by":         chain.String(p.CreatedBy),
		"file_name":          chain.String(p.FileName),
		"file_size":          chain.Int(p.FileSize),
		"timestamp":          chain.String(chain.FormatTimestamp(p.Timestamp)),
	}
}

// FromBlock reads a patent back out of a ledger block. Blocks whose payload
// has no patent_id, such as hand-built test blocks, yield false.
func FromBlock(b chain.Block) (*Patent, bool) {
	pl := b.Payload
	id := pl.Get("patent_id")
	if id == "" {
		return nil, false
	}
	value, _ := pl["estimated_value"].Num()
	score, _ := pl["verification_score"].Num()
	size, _ := pl["file_size"].Num()
	onChain, _ := pl["is_on_blockchain"].Boolean()

	ts, err := time.Parse(chain.TimestampLayout, pl.Get("timestamp"))
	if err != nil {
		ts = b.Timestamp
	}
	idx := b.Index

	return &Patent{
		ID:                id,
		Title:             pl.Get("title"),
		Description:       pl.Get("description"),
		Inventor:          pl.Get("inventor"),
		PatentType:        pl.Get("patent_type"),
		Priority:          Priority(pl.Get("priority")),
		Status:            Status(pl.Get("status")),
		DocHash:           pl.Get("doc_hash"),
		EstimatedValue:    value,
		Keywords:          pl.Get("keywords"),
		RelatedPatents:    pl.Get("related_patents"),
		Collaboration:     pl.Get("collaboration"),
		FundingSource:     pl.Get("funding_source"),
		OnChain:           onChain,
		VerificationScore: int(score),
		CreatedBy:         pl.Get("created_by"),
		FileName:          pl.Get("file_name"),
		FileSize:          int64(size),
		Timestamp:         ts,
		BlockIndex:        &idx,
		BlockHash:         b.Hash,
	}, true
}

// SubmitRequest is the payload for submitting a new patent.
type SubmitRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Inventor       string   `json:"inventor"`
	PatentType     string   `json:"patent_type"`
	Priority       Priority `json:"priority"`
	Storage        Storage  `json:"storage"`
	EstimatedValue float64  `json:"estimated_value"`
	Keywords       string   `json:"keywords,omitempty"`
	RelatedPatents string   `json:"related_patents,omitempty"`
	Collaboration  string   `json:"collaboration,omitempty"`
	FundingSource  string   `json:"funding_source,omitempty"`
	AgreeTerms     bool     `json:"agree_terms"`

	// FileName and Document carry an optional supporting document. Document
	// travels base64-encoded in JSON.
	FileName string `json:"file_name,omitempty"`
	Document []byte `json:"document,omitempty"`

	// CreatedBy is the submitting account; set by the caller, not the client.
	CreatedBy string `json:"-"`
}

// SortOrder orders search results.
type SortOrder string

const (
	SortDefault SortOrder = ""       // on-chain in block order, then off-chain
	SortNewest  SortOrder = "newest" // newest first
	SortOldest  SortOrder = "oldest" // oldest first
	SortTitle   SortOrder = "title"  // title A-Z
	SortScore   SortOrder = "score"  // highest verification score first
)

// Valid reports whether o is a known order.
func (o SortOrder) Valid() bool {
	switch o {
	case SortDefault, SortNewest, SortOldest, SortTitle, SortScore:
		return true
	}
	return false
}

// Filter narrows a patent search. Zero fields match everything.
type Filter struct {
	Term       string     `form:"q"`
	PatentType string     `form:"type"`
	Status     Status     `form:"status"`
	Priorities []Priority `form:"priority"`
	Storage    Storage    `form:"storage"`
	From       time.Time  `form:"from" time_format:"2006-01-02"`
	To         time.Time  `form:"to"   time_format:"2006-01-02"`
	Sort       SortOrder  `form:"sort"`
}

// Match reports whether p passes every set criterion in f. Term matching is
// case-insensitive over ID, title, inventor, description and keywords; the
// date range is inclusive and compares calendar days.
func (f *Filter) Match(p *Patent) bool {
	if f.Term != "" {
		term := strings.ToLower(f.Term)
		hay := strings.ToLower(strings.Join([]string{p.ID, p.Title, p.Inventor, p.Description, p.Keywords}, "\x00"))
		if !strings.Contains(hay, term) {
			return false
		}
	}
	if f.PatentType != "" && f.PatentType != "All" && p.PatentType != f.PatentType {
		return false
	}
	if f.Status != "" && f.Status != "All" && p.Status != f.Status {
		return false
	}
	if len(f.Priorities) > 0 {
		ok := false
		for _, pr := range f.Priorities {
			if p.Priority == pr {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Storage != "" && f.Storage != "All" && p.Storage() != f.Storage {
		return false
	}
	day := truncateDay(p.Timestamp)
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TypeCounts tallies patents of one type by storage.
type TypeCounts struct {
	OnChain  int `json:"on_chain"`
	OffChain int `json:"off_chain"`
}
