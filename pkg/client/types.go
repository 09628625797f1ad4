package client

import (
	"net/url"
	"time"
)

// SubmitRequest is the payload for Submit. Priority defaults to "Normal" and
// Storage to "on-chain" when empty.
type SubmitRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Inventor       string  `json:"inventor"`
	PatentType     string  `json:"patent_type"`
	Priority       string  `json:"priority,omitempty"`
	Storage        string  `json:"storage,omitempty"`
	EstimatedValue float64 `json:"estimated_value"`
	Keywords       string  `json:"keywords,omitempty"`
	RelatedPatents string  `json:"related_patents,omitempty"`
	Collaboration  string  `json:"collaboration,omitempty"`
	FundingSource  string  `json:"funding_source,omitempty"`
	AgreeTerms     bool    `json:"agree_terms"`
	FileName       string  `json:"file_name,omitempty"`
	Document       []byte  `json:"document,omitempty"`
}

// Patent is a patent record as returned by the server.
type Patent struct {
	ID                string    `json:"patent_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Inventor          string    `json:"inventor"`
	PatentType        string    `json:"patent_type"`
	Priority          string    `json:"priority"`
	Status            string    `json:"status"`
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
	BlockIndex        *int      `json:"block_index,omitempty"`
	BlockHash         string    `json:"block_hash,omitempty"`
}

// Filter narrows Search. Zero fields match everything.
type Filter struct {
	Term       string
	PatentType string
	Status     string
	Priorities []string
	Storage    string
	From       time.Time
	To         time.Time
	// Sort is "newest", "oldest", "title" or "score". Empty keeps chain order.
	Sort string
}

func (f Filter) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", f.Term)
	set("type", f.PatentType)
	set("status", f.Status)
	set("storage", f.Storage)
	set("sort", f.Sort)
	for _, p := range f.Priorities {
		q.Add("priority", p)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format(time.DateOnly))
	}
	return q
}

// TypeCounts tallies one patent type by storage.
type TypeCounts struct {
	OnChain  int `json:"on_chain"`
	OffChain int `json:"off_chain"`
}

// Counts holds record totals.
type Counts struct {
	ByType   map[string]TypeCounts `json:"by_type"`
	OnChain  int                   `json:"on_chain"`
	OffChain int                   `json:"off_chain"`
	Total    int                   `json:"total"`
	TopTypes []string              `json:"-"`
}

// DayCount is the number of submissions on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Block is a ledger block. Payload values are strings, numbers or booleans.
type Block struct {
	Index        int            `json:"index"`
	Timestamp    time.Time      `json:"timestamp"`
	Payload      map[string]any `json:"payload"`
	PreviousHash string         `json:"previous_hash"`
	Nonce        uint64         `json:"nonce"`
	Hash         string         `json:"hash"`
	MerkleRoot   string         `json:"merkle_root"`
}

// PatentID returns the patent_id recorded in the block, if any.
func (b *Block) PatentID() string {
	s, _ := b.Payload["patent_id"].(string)
	return s
}

// BlockPage is one page of ListBlocks.
type BlockPage struct {
	Blocks []Block `json:"blocks"`
	Total  int     `json:"total"`
}

// Stats is the explorer summary of the ledger.
type Stats struct {
	BlockCount              int     `json:"block_count"`
	RecordCount             int     `json:"record_count"`
	Valid                   bool    `json:"valid"`
	TotalNonce              uint64  `json:"total_nonce"`
	AvgBlockIntervalSeconds float64 `json:"avg_block_interval_seconds"`
	Difficulty              int     `json:"difficulty"`
	TipHash                 string  `json:"tip_hash"`
}

// VerifyResult is the outcome of a full chain verification. Index is the
// first offending block when Valid is false.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// Notification is an entry in the server's notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// TokenResult is an issued admin token.
type TokenResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SnapshotSummary describes a stored snapshot.
type SnapshotSummary struct {
	ID         string    `json:"id"`
	TakenAt    time.Time `json:"taken_at"`
	Difficulty int       `json:"difficulty"`
	TipHash    string    `json:"tip_hash"`
	BlockCount int       `json:"block_count"`
}

// SnapshotVerifyResult reports whether a snapshot is internally valid and
// whether it is a prefix of the live ledger.
type SnapshotVerifyResult struct {
	ID          string `json:"id"`
	Valid       bool   `json:"valid"`
	MatchesLive bool   `json:"matches_live"`
	Error       string `json:"error,omitempty"`
	LiveError   string `json:"live_error,omitempty"`
}

// Webhook is a registered webhook subscription. Secret is only set on the
// result of CreateWebhook.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	Secret    string    `json:"-"`
}

// WebhookDelivery is one recorded delivery attempt.
type WebhookDelivery struct {
	SubscriptionID string    `json:"subscription_id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	StatusCode     int       `json:"status_code"`
	Attempt        int       `json:"attempt"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	DeliveredAt    time.Time `json:"delivered_at"`
}
