package chain_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

var blockTime = time.Date(2025, 5, 17, 9, 30, 0, 123456000, time.UTC)

func TestNewBlock_hashMatchesFields(t *testing.T) {
	b, err := chain.NewBlock(3, blockTime, chain.Payload{"title": chain.String("A")}, "abc", 7)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.ComputeHash()
	if err != nil {
		t.Fatal(err)
	}
	if got != b.Hash {
		t.Errorf("stored hash %q != recomputed %q", b.Hash, got)
	}
	if b.MerkleRoot == "" || b.MerkleRoot == b.Hash {
		t.Errorf("merkle root should be a separate payload digest, got %q", b.MerkleRoot)
	}
}

func TestNewBlock_malformedPayload(t *testing.T) {
	cases := map[string]chain.Payload{
		"NaN":        {"v": chain.Number(math.NaN())},
		"Inf":        {"v": chain.Number(math.Inf(1))},
		"zero value": {"v": chain.Value{}},
		"bad utf8":   {"v": chain.String("\xff")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := chain.NewBlock(0, blockTime, p, "0", 0); !errors.Is(err, chain.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestComputeHash_sensitiveToEveryField(t *testing.T) {
	base, err := chain.NewBlock(1, blockTime, chain.Payload{"title": chain.String("A")}, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}

	variants := map[string]func(b *chain.Block){
		"index":     func(b *chain.Block) { b.Index = 2 },
		"timestamp": func(b *chain.Block) { b.Timestamp = b.Timestamp.Add(time.Nanosecond) },
		"payload":   func(b *chain.Block) { b.Payload = chain.Payload{"title": chain.String("B")} },
		"previous":  func(b *chain.Block) { b.PreviousHash = "prev2" },
		"nonce":     func(b *chain.Block) { b.Nonce = 1 },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			b := *base
			b.Payload = base.Payload.Clone()
			mutate(&b)
			h, err := b.ComputeHash()
			if err != nil {
				t.Fatal(err)
			}
			if h == base.Hash {
				t.Errorf("changing %s did not change the hash", name)
			}
		})
	}
}

func TestComputeHash_timestampZoneIndependent(t *testing.T) {
	p := chain.Payload{"title": chain.String("A")}
	utc, err := chain.NewBlock(1, blockTime, p, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}
	local, err := chain.NewBlock(1, blockTime.In(time.FixedZone("X", 3*3600)), p, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}
	if utc.Hash != local.Hash {
		t.Error("the same instant in different zones must hash identically")
	}
}

func TestMine_meetsDifficulty(t *testing.T) {
	for d := 0; d <= 3; d++ {
		b, err := chain.NewBlock(1, blockTime, chain.Payload{"d": chain.Int(int64(d))}, "prev", 0)
		if err != nil {
			t.Fatal(err)
		}
		b.Mine(d)
		if !strings.HasPrefix(b.Hash, strings.Repeat("0", d)) {
			t.Errorf("difficulty %d: hash %q lacks prefix", d, b.Hash)
		}
		if !b.Finalized(d) {
			t.Errorf("difficulty %d: block should be finalized", d)
		}
	}
}

func TestMine_zeroDifficultyKeepsNonce(t *testing.T) {
	b, err := chain.NewBlock(1, blockTime, chain.Payload{}, "prev", 41)
	if err != nil {
		t.Fatal(err)
	}
	hash := b.Hash
	b.Mine(0)
	if b.Nonce != 41 {
		t.Errorf("nonce: got %d, want 41", b.Nonce)
	}
	if b.Hash != hash {
		t.Error("hash should be unchanged at difficulty 0")
	}
}

func TestMine_idempotentAfterSuccess(t *testing.T) {
	b, err := chain.NewBlock(1, blockTime, chain.Payload{"title": chain.String("A")}, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}
	b.Mine(2)
	nonce, hash := b.Nonce, b.Hash
	b.Mine(2)
	if b.Nonce != nonce || b.Hash != hash {
		t.Error("re-mining a finalized block should be a no-op")
	}
}

func TestMineContext_attemptCap(t *testing.T) {
	b, err := chain.NewBlock(1, blockTime, chain.Payload{"title": chain.String("A")}, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}
	err = b.MineContext(context.Background(), chain.MaxDifficulty, 10)
	if !errors.Is(err, chain.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if b.Nonce != 10 {
		t.Errorf("nonce after 10 attempts: got %d", b.Nonce)
	}
	if b.Finalized(chain.MaxDifficulty) {
		t.Error("block must not be finalized after an exhausted search")
	}
}

func TestMineContext_canceled(t *testing.T) {
	b, err := chain.NewBlock(1, blockTime, chain.Payload{}, "prev", 0)
	if err != nil {
		t.Fatal(err)
	}
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = b.MineContext(cctx, chain.MaxDifficulty, 0)
	if !errors.Is(err, chain.ErrMiningCanceled) {
		t.Fatalf("expected ErrMiningCanceled, got %v", err)
	}
}

func TestMeetsDifficulty(t *testing.T) {
	cases := []struct {
		hash string
		d    int
		want bool
	}{
		{"abc", 0, true},
		{"0abc", 1, true},
		{"00ab", 2, true},
		{"0a0b", 2, false},
		{"0", 2, false},
	}
	for _, tc := range cases {
		if got := chain.MeetsDifficulty(tc.hash, tc.d); got != tc.want {
			t.Errorf("MeetsDifficulty(%q, %d) = %v, want %v", tc.hash, tc.d, got, tc.want)
		}
	}
}

func TestPayload_canonicalIsOrderIndependent(t *testing.T) {
	a := chain.Payload{}
	a["b"] = chain.Int(2)
	a["a"] = chain.String("x")
	a["c"] = chain.Bool(true)

	b := chain.Payload{"c": chain.Bool(true), "a": chain.String("x"), "b": chain.Number(2.0)}

	ca, err := a.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	cb, err := b.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":"x","b":2,"c":true}`
	if string(ca) != want || string(cb) != want {
		t.Errorf("canonical forms: got %s and %s, want %s", ca, cb, want)
	}
}

func TestPayloadFromMap(t *testing.T) {
	p, err := chain.PayloadFromMap(map[string]any{"s": "x", "n": 3, "f": 1.5, "b": false})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"b":false,"f":1.5,"n":3,"s":"x"}`; string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := chain.PayloadFromMap(map[string]any{"nested": map[string]any{}}); !errors.Is(err, chain.ErrMalformedPayload) {
		t.Errorf("nested map: expected ErrMalformedPayload, got %v", err)
	}
}
