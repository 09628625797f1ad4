package chain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func appendTitles(t *testing.T, l *Ledger, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := l.Append(context.Background(), time.Now(), Payload{"title": String(title)}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestVerify_detectsPayloadTampering(t *testing.T) {
	l, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	appendTitles(t, l, "A")

	if !l.IsValid() {
		t.Fatal("ledger should be valid before tampering")
	}
	if got := l.Stats(); got.BlockCount != 2 || got.RecordCount != 1 {
		t.Fatalf("stats: got %+v", got)
	}

	l.blocks[1].Payload["title"] = String("B")

	if l.IsValid() {
		t.Fatal("ledger should be invalid after the payload was overwritten")
	}
	var verr *ValidationError
	if err := l.Verify(); !errors.As(err, &verr) || verr.Index != 1 || !errors.Is(err, ErrTamperedBlock) {
		t.Errorf("expected tampered block 1, got %v", err)
	}
	if l.Stats().Valid {
		t.Error("stats should report the chain invalid")
	}
}

func TestVerify_detectsFieldTampering(t *testing.T) {
	mutations := map[string]func(b *Block){
		"index":     func(b *Block) { b.Index++ },
		"timestamp": func(b *Block) { b.Timestamp = b.Timestamp.Add(time.Second) },
		"nonce":     func(b *Block) { b.Nonce++ },
		"hash":      func(b *Block) { b.Hash = "0" + b.Hash[1:] + "x" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			l, err := New(1)
			if err != nil {
				t.Fatal(err)
			}
			appendTitles(t, l, "A", "B")
			mutate(l.blocks[1])
			if l.IsValid() {
				t.Errorf("tampering with %s went undetected", name)
			}
		})
	}
}

func TestVerify_detectsRelinkWithRehash(t *testing.T) {
	l, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	appendTitles(t, l, "A", "B")

	// A forger who recomputes the hash still breaks the link to the next block.
	b := l.blocks[1]
	b.Payload["title"] = String("forged")
	b.Mine(1)

	err = l.Verify()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Index != 2 || !errors.Is(err, ErrBrokenLinkage) {
		t.Errorf("expected broken linkage at block 2, got %v", err)
	}
	if !IsIntegrityError(err) {
		t.Error("IsIntegrityError should recognise the error")
	}
}

func TestVerify_detectsReorder(t *testing.T) {
	l, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	appendTitles(t, l, "A", "B", "C")

	l.blocks[1], l.blocks[2] = l.blocks[2], l.blocks[1]

	if err := l.Verify(); !errors.Is(err, ErrBrokenLinkage) {
		t.Errorf("expected ErrBrokenLinkage after reorder, got %v", err)
	}
}

func TestVerify_genesisOnly(t *testing.T) {
	l, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Verify(); err != nil {
		t.Errorf("Verify() on genesis-only chain should pass: %v", err)
	}
}
