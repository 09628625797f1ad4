package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tarlanskakov/patenr-ali-sh/pkg/client"
)

const stubToken = "stub-admin-token"

// ── Stub server ─────────────────────────────────────────────────────────

func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Secret string `json:"secret"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid admin secret"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token":      stubToken,
			"token_type": "Bearer",
			"expires_at": time.Now().Add(time.Hour),
		})
	})

	mux.HandleFunc("/api/v1/patents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req client.SubmitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
				return
			}
			if !req.AgreeTerms {
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(map[string]any{
					"error":    "invalid submission",
					"problems": []string{"agree_terms: you must agree to the terms"},
				})
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"patent_id":          "PAT-0A1B2C3D",
				"title":              req.Title,
				"status":             "Pending",
				"is_on_blockchain":   true,
				"verification_score": 95,
				"block_index":        1,
				"block_hash":         "00ab",
			})
		case http.MethodGet:
			q := r.URL.Query()
			if q.Get("q") != "solar" || q.Get("from") != "2026-01-02" || len(q["priority"]) != 2 || q.Get("sort") != "newest" {
				http.Error(w, `{"error":"unexpected filter `+r.URL.RawQuery+`"}`, http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"patents": []map[string]any{{"patent_id": "PAT-1"}, {"patent_id": "PAT-2"}},
				"count":   2,
			})
		}
	})

	mux.HandleFunc("/api/v1/patents/PAT-404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": "patent not found"})
	})

	mux.HandleFunc("/api/v1/ledger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"block_count":  3,
			"record_count": 2,
			"valid":        true,
			"difficulty":   2,
			"tip_hash":     "00ff",
		})
	})

	mux.HandleFunc("/api/v1/ledger/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"valid": false, "error": "block 2: hash mismatch", "index": 2})
	})

	mux.HandleFunc("/api/v1/ledger/blocks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("order") != "desc" || r.URL.Query().Get("limit") != "10" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"blocks": []map[string]any{
				{"index": 1, "hash": "00ab", "payload": map[string]any{"patent_id": "PAT-0A1B2C3D"}},
			},
			"total": 2,
		})
	})

	mux.HandleFunc("/api/v1/export", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "csv" || r.URL.Query().Get("offchain") != "false" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Source,Patent ID\nblockchain,PAT-1\n"))
	})

	mux.HandleFunc("/api/v1/patents/timeline", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("days") != "7" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"days": []map[string]any{{"date": "2026-01-01", "count": 0}, {"date": "2026-01-02", "count": 3}},
		})
	})

	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"notifications": []map[string]any{
					{"id": "n2", "message": "Patent PAT-2 stored off-chain", "type": "info"},
					{"id": "n1", "message": "Patent PAT-1 successfully recorded on blockchain!", "type": "success", "read": true},
				},
				"unread": 1,
			})
		}
	})

	mux.HandleFunc("/api/v1/notifications/n2/read", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/api/v1/notifications/missing/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": "notification not found"})
	})

	mux.HandleFunc("/api/v1/webhooks/deliveries", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"deliveries": []map[string]any{
				{"subscription_id": "wh-1", "event_type": "block.appended", "status_code": 500, "attempt": 1, "success": false},
			},
			"count": 1,
		})
	})

	mux.HandleFunc("/api/v1/webhooks/wh-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "wh-1", "url": "https://example.com/hook", "events": []string{"block.appended"}, "active": true,
		})
	})

	mux.HandleFunc("/api/v1/snapshots", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{
				"snapshots": []map[string]any{{"id": "snap-2", "block_count": 4}, {"id": "snap-1", "block_count": 3}},
				"count":     2,
			})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+stubToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": "admin token required"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "snap-1", "block_count": 3, "tip_hash": "00ff"})
	})

	mux.HandleFunc("/api/v1/snapshots/snap-1/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "snap-1", "valid": true, "matches_live": true})
	})

	return httptest.NewServer(mux)
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	srv := stubServer(t)
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestNew_invalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost", "://bad"} {
		if _, err := client.New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestSubmit(t *testing.T) {
	c := newClient(t)
	p, err := c.Submit(context.Background(), client.SubmitRequest{
		Title:      "Self-cleaning solar panel",
		AgreeTerms: true,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.ID != "PAT-0A1B2C3D" || !p.OnChain || p.BlockIndex == nil || *p.BlockIndex != 1 {
		t.Errorf("unexpected patent %+v", p)
	}
}

func TestSubmit_validationError(t *testing.T) {
	c := newClient(t)
	_, err := c.Submit(context.Background(), client.SubmitRequest{Title: "x"})
	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Problems) != 1 || !strings.Contains(ve.Problems[0], "agree_terms") {
		t.Errorf("unexpected problems %v", ve.Problems)
	}
}

func TestPatent_notFound(t *testing.T) {
	c := newClient(t)
	_, err := c.Patent(context.Background(), "PAT-404")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch_encodesFilter(t *testing.T) {
	c := newClient(t)
	got, err := c.Search(context.Background(), client.Filter{
		Term:       "solar",
		Priorities: []string{"High", "Critical"},
		From:       time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC),
		Sort:       "newest",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d patents, want 2", len(got))
	}
}

func TestStatsAndVerify(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.BlockCount != 3 || st.RecordCount != 2 || !st.Valid {
		t.Errorf("unexpected stats %+v", st)
	}

	vr, err := c.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if vr.Valid || vr.Index == nil || *vr.Index != 2 {
		t.Errorf("unexpected verify result %+v", vr)
	}
}

func TestBlocks(t *testing.T) {
	c := newClient(t)
	page, err := c.Blocks(context.Background(), 0, 10, true)
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	if page.Total != 2 || len(page.Blocks) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if id := page.Blocks[0].PatentID(); id != "PAT-0A1B2C3D" {
		t.Errorf("PatentID = %q", id)
	}
}

func TestExport(t *testing.T) {
	c := newClient(t)
	body, err := c.Export(context.Background(), "csv", true, false)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(string(body), "Source,Patent ID") {
		t.Errorf("unexpected export body %q", body)
	}
}

func TestSnapshots_requireLogin(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	if _, err := c.TakeSnapshot(ctx); !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before login, got %v", err)
	}
	if _, err := c.Login(ctx, "wrong"); !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad secret, got %v", err)
	}
	if _, err := c.Login(ctx, "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Token() != stubToken {
		t.Fatalf("token not stored")
	}

	sum, err := c.TakeSnapshot(ctx)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if sum.ID != "snap-1" || sum.BlockCount != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}

	vr, err := c.VerifySnapshot(ctx, sum.ID)
	if err != nil {
		t.Fatalf("VerifySnapshot: %v", err)
	}
	if !vr.Valid || !vr.MatchesLive {
		t.Errorf("unexpected verify result %+v", vr)
	}
}

func TestNotifications(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	notes, unread, err := c.Notifications(ctx, 10)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(notes) != 2 || unread != 1 || notes[0].ID != "n2" || notes[0].Level != "info" || !notes[1].Read {
		t.Errorf("unexpected notifications %+v (unread %d)", notes, unread)
	}

	if err := c.MarkRead(ctx, "n2"); err != nil {
		t.Errorf("MarkRead: %v", err)
	}
	if err := c.MarkRead(ctx, "missing"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("MarkRead missing: expected ErrNotFound, got %v", err)
	}
	if err := c.ClearNotifications(ctx); err != nil {
		t.Errorf("ClearNotifications: %v", err)
	}
}

func TestTimeline(t *testing.T) {
	c := newClient(t)
	days, err := c.Timeline(context.Background(), 7)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(days) != 2 || days[1].Date != "2026-01-02" || days[1].Count != 3 {
		t.Errorf("unexpected timeline %+v", days)
	}
}

func TestSnapshotList(t *testing.T) {
	c := newClient(t)
	list, err := c.Snapshots(context.Background(), 0)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(list) != 2 || list[0].ID != "snap-2" || list[1].BlockCount != 3 {
		t.Errorf("unexpected snapshots %+v", list)
	}
}

func TestWebhookAndDeliveries(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	wh, err := c.Webhook(ctx, "wh-1")
	if err != nil {
		t.Fatalf("Webhook: %v", err)
	}
	if wh.URL != "https://example.com/hook" || !wh.Active || len(wh.Events) != 1 {
		t.Errorf("unexpected webhook %+v", wh)
	}

	ds, err := c.WebhookDeliveries(ctx, 5)
	if err != nil {
		t.Fatalf("WebhookDeliveries: %v", err)
	}
	if len(ds) != 1 || ds[0].Success || ds[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected deliveries %+v", ds)
	}
}
