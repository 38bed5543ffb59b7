package utils

import "testing"

func TestDigest(t *testing.T) {
	a := Digest([]byte("hello"))
	if len(a) != 64 {
		t.Fatalf("Expected 64 hex characters, got %d", len(a))
	}
	if a != Digest([]byte("hello")) {
		t.Error("Digest is not deterministic")
	}
	if a == Digest([]byte("hello!")) {
		t.Error("Different inputs produced the same digest")
	}
	if s := ShortDigest([]byte("hello")); s != a[:16] {
		t.Errorf("ShortDigest %q is not a prefix of %q", s, a)
	}
}

func TestFormatKB(t *testing.T) {
	cases := map[int64]string{
		0:       "0.00 KB",
		512:     "0.50 KB",
		1024:    "1.00 KB",
		1536:    "1.50 KB",
		1048576: "1024.00 KB",
	}
	for in, want := range cases {
		if got := FormatKB(in); got != want {
			t.Errorf("FormatKB(%d) = %q, want %q", in, got, want)
		}
	}
}
