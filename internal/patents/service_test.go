package patents_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"github.com/tarlanskakov/patenr-ali-sh/internal/events"
	"github.com/tarlanskakov/patenr-ali-sh/internal/patents"
	"go.uber.org/zap"
)

func newService(t *testing.T, difficulty int) *patents.Service {
	t.Helper()
	l, err := chain.New(difficulty)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	svc, err := patents.NewService(l, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.SetScorer(patents.NewRuleBasedScorer().WithJitter(func() int { return 0 }))
	return svc
}

func validRequest() *patents.SubmitRequest {
	return &patents.SubmitRequest{
		Title:          "Self-cleaning solar panel",
		Description:    "A photovoltaic panel with a hydrophobic coating that sheds dust when it rains.",
		Inventor:       "R. Okafor",
		PatentType:     "Utility Patent",
		Priority:       patents.PriorityHigh,
		Storage:        patents.StorageOnChain,
		EstimatedValue: 125000,
		Keywords:       "solar, coating",
		AgreeTerms:     true,
		CreatedBy:      "admin",
	}
}

func TestSubmit_onChain(t *testing.T) {
	svc := newService(t, 1)
	bus := events.NewBus()
	feed, cancel := bus.Subscribe()
	defer cancel()
	svc.SetPublisher(bus)

	p, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !strings.HasPrefix(p.ID, "PAT-") || len(p.ID) != 12 {
		t.Errorf("ID = %q, want PAT- followed by 8 characters", p.ID)
	}
	if p.ID != strings.ToUpper(p.ID) {
		t.Errorf("ID %q is not upper case", p.ID)
	}
	if p.Status != patents.StatusPending {
		t.Errorf("Status = %q, want Pending", p.Status)
	}
	if p.BlockIndex == nil || *p.BlockIndex != 1 {
		t.Fatalf("BlockIndex = %v, want 1", p.BlockIndex)
	}
	// base 50 + title 10 + description 15 + doc hash 20
	if p.VerificationScore != 95 {
		t.Errorf("VerificationScore = %d, want 95", p.VerificationScore)
	}

	l := svc.Ledger()
	if l.Len() != 2 {
		t.Fatalf("ledger length = %d, want 2", l.Len())
	}
	if err := l.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	blk, _ := l.Block(1)
	if blk.Hash != p.BlockHash {
		t.Errorf("BlockHash = %q, ledger has %q", p.BlockHash, blk.Hash)
	}
	if got := blk.Payload.Get("patent_id"); got != p.ID {
		t.Errorf("block payload patent_id = %q, want %q", got, p.ID)
	}

	select {
	case pub := <-feed:
		if pub.Hash != blk.Hash {
			t.Errorf("published hash = %q, want %q", pub.Hash, blk.Hash)
		}
	default:
		t.Error("no block published")
	}

	notes := svc.Notifications(0)
	if len(notes) != 1 || notes[0].Level != patents.LevelSuccess {
		t.Fatalf("notifications = %+v, want one success", notes)
	}
}

func TestSubmit_defaultsToOnChainNormal(t *testing.T) {
	svc := newService(t, 0)
	req := validRequest()
	req.Priority = ""
	req.Storage = ""

	p, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.Priority != patents.PriorityNormal || !p.OnChain {
		t.Errorf("got priority %q on-chain %v, want Normal on-chain", p.Priority, p.OnChain)
	}
}

func TestSubmit_offChain(t *testing.T) {
	svc := newService(t, 0)
	req := validRequest()
	req.Storage = patents.StorageOffChain

	p, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.OnChain || p.BlockIndex != nil || p.BlockHash != "" {
		t.Errorf("off-chain patent carries chain location: %+v", p)
	}
	if n := svc.Ledger().Len(); n != 1 {
		t.Errorf("ledger length = %d, want 1", n)
	}
	got, err := svc.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != req.Title {
		t.Errorf("Get title = %q, want %q", got.Title, req.Title)
	}
	if notes := svc.Notifications(1); notes[0].Level != patents.LevelInfo {
		t.Errorf("notification level = %q, want info", notes[0].Level)
	}
}

func TestSubmit_fallsBackOffChain(t *testing.T) {
	svc := newService(t, 4)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	p, err := svc.Submit(ctx, validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.OnChain {
		t.Fatal("patent should have fallen back to off-chain")
	}
	if n := svc.Ledger().Len(); n != 1 {
		t.Errorf("ledger length = %d, want 1", n)
	}
	notes := svc.Notifications(0)
	if len(notes) != 1 || notes[0].Level != patents.LevelWarning {
		t.Fatalf("notifications = %+v, want one warning", notes)
	}
	if c := svc.Counts(); c.OffChain != 1 || c.OnChain != 0 {
		t.Errorf("counts = %+v, want 1 off-chain", c)
	}
}

func TestSubmit_canceledRequestIsNotStored(t *testing.T) {
	svc := newService(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := svc.Submit(ctx, validRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p != nil {
		t.Errorf("got patent %+v for a canceled request", p)
	}
	if c := svc.Counts(); c.Total != 0 {
		t.Errorf("counts = %+v, want nothing stored", c)
	}
	if notes := svc.Notifications(0); len(notes) != 0 {
		t.Errorf("notifications = %+v, want none", notes)
	}
}

func TestSubmit_rejectsInvalid(t *testing.T) {
	cases := map[string]func(r *patents.SubmitRequest){
		"missing title":     func(r *patents.SubmitRequest) { r.Title = "" },
		"blank inventor":    func(r *patents.SubmitRequest) { r.Inventor = "   " },
		"blank description": func(r *patents.SubmitRequest) { r.Description = "\t\n" },
		"unknown type":      func(r *patents.SubmitRequest) { r.PatentType = "Time Machine" },
		"unknown priority":  func(r *patents.SubmitRequest) { r.Priority = "Urgent" },
		"unknown storage":   func(r *patents.SubmitRequest) { r.Storage = "cloud" },
		"terms not agreed":  func(r *patents.SubmitRequest) { r.AgreeTerms = false },
		"negative value":    func(r *patents.SubmitRequest) { r.EstimatedValue = -1 },
		"title too long":    func(r *patents.SubmitRequest) { r.Title = strings.Repeat("x", 101) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, 0)
			req := validRequest()
			mutate(req)

			_, err := svc.Submit(context.Background(), req)
			if !errors.Is(err, patents.ErrInvalidSubmission) {
				t.Fatalf("err = %v, want ErrInvalidSubmission", err)
			}
			var se *patents.SubmissionError
			if !errors.As(err, &se) || len(se.Problems) == 0 {
				t.Errorf("err %v carries no problems", err)
			}
			if n := svc.Ledger().Len(); n != 1 {
				t.Errorf("ledger length = %d after rejection, want 1", n)
			}
		})
	}
}

func TestSubmit_documentHash(t *testing.T) {
	svc := newService(t, 0)

	req := validRequest()
	req.FileName = "claims.pdf"
	req.Document = []byte("%PDF-1.7 claims")
	withDoc, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if withDoc.FileSize != int64(len(req.Document)) {
		t.Errorf("FileSize = %d, want %d", withDoc.FileSize, len(req.Document))
	}
	notes := svc.Notifications(0)
	if len(notes) != 2 || notes[1].Message != "File processed: claims.pdf (15 B)" {
		t.Errorf("notifications = %+v, want a file notice before the success notice", notes)
	}

	noDoc, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(withDoc.DocHash) != 64 || len(noDoc.DocHash) != 64 {
		t.Fatalf("doc hashes %q and %q are not SHA-256 hex", withDoc.DocHash, noDoc.DocHash)
	}
	if withDoc.DocHash == noDoc.DocHash {
		t.Error("document and description hashes should differ")
	}
}

func TestSearch(t *testing.T) {
	svc := newService(t, 0)
	day := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return day })

	a := validRequest()
	b := validRequest()
	b.Title = "Folding bicycle hinge"
	b.Description = "A hinge for folding bicycles that locks without tools."
	b.Inventor = "M. Lindqvist"
	b.PatentType = "Mechanical Patent"
	b.Priority = patents.PriorityLow
	b.Storage = patents.StorageOffChain
	b.Keywords = "bike"

	pa, err := svc.Submit(context.Background(), a)
	if err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	pb, err := svc.Submit(context.Background(), b)
	if err != nil {
		t.Fatalf("Submit b: %v", err)
	}

	tests := []struct {
		name   string
		filter patents.Filter
		want   []string
	}{
		{"all", patents.Filter{}, []string{pa.ID, pb.ID}},
		{"term in title", patents.Filter{Term: "SOLAR"}, []string{pa.ID}},
		{"term in keywords", patents.Filter{Term: "bike"}, []string{pb.ID}},
		{"term by id", patents.Filter{Term: pb.ID}, []string{pb.ID}},
		{"type", patents.Filter{PatentType: "Mechanical Patent"}, []string{pb.ID}},
		{"type all", patents.Filter{PatentType: "All"}, []string{pa.ID, pb.ID}},
		{"status", patents.Filter{Status: patents.StatusApproved}, nil},
		{"priorities", patents.Filter{Priorities: []patents.Priority{patents.PriorityLow, patents.PriorityCritical}}, []string{pb.ID}},
		{"storage", patents.Filter{Storage: patents.StorageOnChain}, []string{pa.ID}},
		{"same day range", patents.Filter{From: day.Add(-8 * time.Hour), To: day.Add(-8 * time.Hour)}, []string{pa.ID, pb.ID}},
		{"after range", patents.Filter{To: day.AddDate(0, 0, -1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Search(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, p.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSearch_sort(t *testing.T) {
	svc := newService(t, 0)
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time {
		at = at.Add(time.Minute)
		return at
	})

	submit := func(title string, storage patents.Storage) string {
		t.Helper()
		req := validRequest()
		req.Title = title
		req.Storage = storage
		p, err := svc.Submit(context.Background(), req)
		if err != nil {
			t.Fatalf("Submit %q: %v", title, err)
		}
		return p.ID
	}
	zeta := submit("Zeta widget assembly", patents.StorageOnChain)
	alpha := submit("Alpha", patents.StorageOffChain) // short title scores lower
	mid := submit("Mid-range gadget frame", patents.StorageOnChain)

	tests := []struct {
		sort patents.SortOrder
		want []string
	}{
		{patents.SortDefault, []string{zeta, mid, alpha}},
		{patents.SortNewest, []string{mid, alpha, zeta}},
		{patents.SortOldest, []string{zeta, alpha, mid}},
		{patents.SortTitle, []string{alpha, mid, zeta}},
		{patents.SortScore, []string{zeta, mid, alpha}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			got := svc.Search(patents.Filter{Sort: tt.sort})
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("result %d = %s (%q), want %s", i, p.ID, p.Title, tt.want[i])
				}
			}
		})
	}

	if patents.SortOrder("random").Valid() {
		t.Error("unknown sort order reported valid")
	}
}

func TestGet_notFound(t *testing.T) {
	svc := newService(t, 0)
	if _, err := svc.Get("PAT-NOPE0000"); !errors.Is(err, patents.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCounts(t *testing.T) {
	svc := newService(t, 0)
	for _, storage := range []patents.Storage{patents.StorageOnChain, patents.StorageOnChain, patents.StorageOffChain} {
		req := validRequest()
		req.Storage = storage
		if _, err := svc.Submit(context.Background(), req); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	req := validRequest()
	req.PatentType = "Design Patent"
	req.Storage = patents.StorageOffChain
	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	c := svc.Counts()
	if c.OnChain != 2 || c.OffChain != 2 || c.Total != 4 {
		t.Errorf("counts = %+v, want 2 on-chain 2 off-chain", c)
	}
	if got := c.ByType["Utility Patent"]; got != (patents.TypeCounts{OnChain: 2, OffChain: 1}) {
		t.Errorf("utility counts = %+v", got)
	}
	if len(c.ByType) != len(patents.Types) {
		t.Errorf("ByType has %d entries, want %d", len(c.ByType), len(patents.Types))
	}
	if top := c.TopTypes(); len(top) != 2 || top[0] != "Utility Patent" {
		t.Errorf("TopTypes = %v", top)
	}
	if stats := svc.Ledger().Stats(); stats.RecordCount != c.OnChain {
		t.Errorf("ledger record count %d != on-chain count %d", stats.RecordCount, c.OnChain)
	}
}

func TestNotifications_markReadAndClear(t *testing.T) {
	svc := newService(t, 0)
	req := validRequest()
	req.Storage = patents.StorageOffChain
	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(context.Background(), req); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if n := svc.UnreadNotifications(); n != 3 {
		t.Fatalf("unread = %d, want 3", n)
	}

	latest := svc.Notifications(1)
	if len(latest) != 1 {
		t.Fatalf("Notifications(1) returned %d", len(latest))
	}
	if err := svc.MarkRead(latest[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n := svc.UnreadNotifications(); n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}
	if err := svc.MarkRead("missing"); !errors.Is(err, patents.ErrNotificationNotFound) {
		t.Errorf("err = %v, want ErrNotificationNotFound", err)
	}

	svc.ClearNotifications()
	if got := svc.Notifications(0); len(got) != 0 {
		t.Errorf("after clear got %d notifications", len(got))
	}
}

func TestTimeline(t *testing.T) {
	svc := newService(t, 0)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	for _, offset := range []int{0, 0, -2, -40} {
		ts := now.AddDate(0, 0, offset)
		svc.SetClock(func() time.Time { return ts })
		if _, err := svc.Submit(context.Background(), validRequest()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	svc.SetClock(func() time.Time { return now })

	got := svc.Timeline(3)
	want := []patents.DayCount{
		{Date: "2025-06-08", Count: 1},
		{Date: "2025-06-09", Count: 0},
		{Date: "2025-06-10", Count: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(svc.Timeline(0)) != 0 {
		t.Error("Timeline(0) should be empty")
	}
}
