// Package patents is the application layer around the ledger: submission,
// search, counts, notifications and export of patent records.
package patents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no patent has the requested ID.
var ErrNotFound = errors.New("patent not found")

// BlockPublisher receives every block this service appends.
// *events.Bus satisfies this interface.
type BlockPublisher interface {
	Publish(b chain.Block)
}

// Counts tallies patents per type and storage.
type Counts struct {
	ByType   map[string]TypeCounts `json:"by_type"`
	OnChain  int                   `json:"on_chain"`
	OffChain int                   `json:"off_chain"`
	Total    int                   `json:"total"`
}

// Service owns the submission workflow. On-chain records are always read back
// from the ledger; only off-chain records are held here.
type Service struct {
	ledger    *chain.Ledger
	validator *SchemaValidator
	scorer    Scorer         // nil = score 0
	publisher BlockPublisher // nil = no live feed
	feed      *Feed
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.RWMutex
	offChain []*Patent
}

// NewService creates a Service backed by ledger.
func NewService(ledger *chain.Ledger, logger *zap.Logger) (*Service, error) {
	v, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Service{
		ledger:    ledger,
		validator: v,
		scorer:    NewRuleBasedScorer(),
		feed:      NewFeed(),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// SetScorer replaces the verification scorer. nil disables scoring.
func (s *Service) SetScorer(sc Scorer) {
	s.scorer = sc
}

// SetPublisher configures where appended blocks are announced.
func (s *Service) SetPublisher(p BlockPublisher) {
	s.publisher = p
}

// SetClock overrides the time source for submissions and notifications.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.feed.now = now
}

// Ledger returns the ledger the service writes to.
func (s *Service) Ledger() *chain.Ledger {
	return s.ledger
}

// Submit validates req, builds the patent record and stores it. On-chain
// submissions are mined into a new block; if that fails the record is kept
// off-chain instead and a warning notification is raised.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Patent, error) {
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if req.Storage == "" {
		req.Storage = StorageOnChain
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := checkRequired(req); err != nil {
		return nil, err
	}

	p := &Patent{
		ID:             generatePatentID(),
		Title:          req.Title,
		Description:    req.Description,
		Inventor:       req.Inventor,
		PatentType:     req.PatentType,
		Priority:       req.Priority,
		Status:         StatusPending,
		DocHash:        documentHash(req),
		EstimatedValue: req.EstimatedValue,
		Keywords:       req.Keywords,
		RelatedPatents: req.RelatedPatents,
		Collaboration:  req.Collaboration,
		FundingSource:  req.FundingSource,
		OnChain:        req.Storage == StorageOnChain,
		CreatedBy:      req.CreatedBy,
		FileName:       req.FileName,
		FileSize:       int64(len(req.Document)),
		Timestamp:      s.now().UTC(),
	}
	if s.scorer != nil {
		p.VerificationScore = s.scorer.Score(ctx, p.Title, p.Description, p.DocHash).Score
	}
	if p.FileName != "" && p.FileSize > 0 {
		s.feed.Add(LevelInfo, fmt.Sprintf("File processed: %s (%s)", p.FileName, FileSize(p.FileSize)))
	}

	if !p.OnChain {
		s.storeOffChain(p)
		s.feed.Add(LevelInfo, fmt.Sprintf("Patent %s stored off-chain", p.ID))
		return p, nil
	}

	blk, err := s.ledger.Append(ctx, p.Timestamp, p.Payload())
	if errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("submit patent %s: %w", p.ID, err)
	}
	if err != nil {
		s.logger.Warn("on-chain append failed, storing off-chain",
			zap.String("patent_id", p.ID),
			zap.Error(err),
		)
		p.OnChain = false
		s.storeOffChain(p)
		s.feed.Add(LevelWarning, fmt.Sprintf("Patent %s could not be mined and was stored off-chain: %v", p.ID, err))
		return p, nil
	}

	idx := blk.Index
	p.BlockIndex = &idx
	p.BlockHash = blk.Hash
	if s.publisher != nil {
		s.publisher.Publish(blk)
	}
	s.feed.Add(LevelSuccess, fmt.Sprintf("Patent %s successfully recorded on blockchain!", p.ID))
	s.logger.Info("patent notarized",
		zap.String("patent_id", p.ID),
		zap.Int("block_index", blk.Index),
		zap.String("block_hash", blk.Hash),
	)
	return p, nil
}

func (s *Service) storeOffChain(p *Patent) {
	cp := *p
	s.mu.Lock()
	s.offChain = append(s.offChain, &cp)
	s.mu.Unlock()
}

// checkRequired rejects fields that pass the schema but are blank after
// trimming.
func checkRequired(req *SubmitRequest) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", req.Title},
		{"inventor", req.Inventor},
		{"description", req.Description},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &SubmissionError{Problems: []string{"missing required fields: " + strings.Join(missing, ", ")}}
	}
	if !req.AgreeTerms {
		return &SubmissionError{Problems: []string{"terms and conditions must be accepted"}}
	}
	return nil
}

// documentHash fingerprints the attached document, or the description when
// there is none.
func documentHash(req *SubmitRequest) string {
	var sum [32]byte
	switch {
	case len(req.Document) > 0:
		sum = sha256.Sum256(req.Document)
	case strings.TrimSpace(req.Description) != "":
		sum = sha256.Sum256([]byte(req.Description))
	default:
		return ""
	}
	return hex.EncodeToString(sum[:])
}

func generatePatentID() string {
	return "PAT-" + strings.ToUpper(uuid.New().String()[:8])
}

// All returns every patent, on-chain records first in block order followed by
// off-chain records in submission order.
func (s *Service) All() []*Patent {
	var out []*Patent
	for _, b := range s.ledger.Blocks() {
		if b.Index == 0 {
			continue
		}
		if p, ok := FromBlock(b); ok {
			out = append(out, p)
		}
	}
	s.mu.RLock()
	for _, p := range s.offChain {
		cp := *p
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	return out
}

// Get returns the patent with the given ID.
func (s *Service) Get(id string) (*Patent, error) {
	for _, p := range s.All() {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Search returns the patents matching f in f.Sort order. Ties keep their
// default order.
func (s *Service) Search(f Filter) []*Patent {
	out := []*Patent{}
	for _, p := range s.All() {
		if f.Match(p) {
			out = append(out, p)
		}
	}

	var less func(a, b *Patent) bool
	switch f.Sort {
	case SortNewest:
		less = func(a, b *Patent) bool { return a.Timestamp.After(b.Timestamp) }
	case SortOldest:
		less = func(a, b *Patent) bool { return a.Timestamp.Before(b.Timestamp) }
	case SortTitle:
		less = func(a, b *Patent) bool { return a.Title < b.Title }
	case SortScore:
		less = func(a, b *Patent) bool { return a.VerificationScore > b.VerificationScore }
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// Counts tallies patents per type and storage. Every known type is present
// in ByType even when its counts are zero.
func (s *Service) Counts() Counts {
	c := Counts{ByType: make(map[string]TypeCounts, len(Types))}
	for _, t := range Types {
		c.ByType[t] = TypeCounts{}
	}
	for _, p := range s.All() {
		tc := c.ByType[p.PatentType]
		if p.OnChain {
			tc.OnChain++
			c.OnChain++
		} else {
			tc.OffChain++
			c.OffChain++
		}
		c.ByType[p.PatentType] = tc
	}
	c.Total = c.OnChain + c.OffChain
	return c
}

// TopTypes returns patent types ordered by total count, most used first,
// ties broken by name. Types with no records are omitted.
func (c Counts) TopTypes() []string {
	var out []string
	for t, tc := range c.ByType {
		if tc.OnChain+tc.OffChain > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := c.ByType[out[i]], c.ByType[out[j]]
		ni, nj := ti.OnChain+ti.OffChain, tj.OnChain+tj.OffChain
		if ni != nj {
			return ni > nj
		}
		return out[i] < out[j]
	})
	return out
}

// Notify adds a notification raised outside the submission workflow, such
// as an integrity alert.
func (s *Service) Notify(level Level, msg string) {
	s.feed.Add(level, msg)
}

// Notifications returns up to limit notifications, newest first.
func (s *Service) Notifications(limit int) []Notification {
	return s.feed.List(limit)
}

// UnreadNotifications counts unread notifications.
func (s *Service) UnreadNotifications() int {
	return s.feed.Unread()
}

// MarkRead flags a notification as read.
func (s *Service) MarkRead(id string) error {
	return s.feed.MarkRead(id)
}

// ClearNotifications drops every notification.
func (s *Service) ClearNotifications() {
	s.feed.Clear()
}

// DayCount is the number of submissions on one calendar day (UTC).
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeline counts submissions per day for the given number of days ending
// today, oldest first. Days without submissions are included with zero.
func (s *Service) Timeline(days int) []DayCount {
	if days <= 0 {
		return []DayCount{}
	}
	today := truncateDay(s.now())
	start := today.AddDate(0, 0, -(days - 1))

	byDay := make(map[string]int, days)
	for _, p := range s.All() {
		d := truncateDay(p.Timestamp)
		if d.Before(start) || d.After(today) {
			continue
		}
		byDay[d.Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, DayCount{Date: key, Count: byDay[key]})
	}
	return out
}
