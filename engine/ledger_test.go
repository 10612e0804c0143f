package engine

import "testing"

func TestLedgerAdmitByID(t *testing.T) {
	l := NewLedger()

	if !l.Admit(Item{ID: "1", Text: "first post"}) {
		t.Fatal("first item rejected")
	}
	if l.Admit(Item{ID: "1", Text: "completely different text"}) {
		t.Error("duplicate ID admitted")
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestLedgerAdmitByFingerprint(t *testing.T) {
	l := NewLedger()

	if !l.Admit(Item{ID: "1", Text: "Program makan gratis dimulai"}) {
		t.Fatal("first item rejected")
	}
	// Repost under a new ID with trivially reformatted text.
	if l.Admit(Item{ID: "2", Text: "  program   MAKAN gratis dimulai "}) {
		t.Error("repost with same normalized text admitted")
	}
	if !l.Admit(Item{ID: "3", Text: "berita lain sama sekali"}) {
		t.Error("distinct item rejected")
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	a := Fingerprint("Hello   World")
	b := Fingerprint("  hello world\n")
	if a != b {
		t.Error("fingerprints differ for equivalent text")
	}
	c := Fingerprint("hello worlds")
	if a == c {
		t.Error("fingerprints collide for different text")
	}
}
