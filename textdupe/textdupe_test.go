package textdupe

import (
	"testing"
)

func TestFingerprint_IdenticalTexts(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	fp1 := Fingerprint(text)
	fp2 := Fingerprint(text)

	if fp1 != fp2 {
		t.Errorf("identical texts produced different fingerprints: %064b vs %064b", fp1, fp2)
	}
}

func TestFingerprint_CaseInsensitive(t *testing.T) {
	if Fingerprint("Hello World") != Fingerprint("hello world") {
		t.Error("token casing should not change the fingerprint")
	}
}

func TestFingerprint_SimilarTexts(t *testing.T) {
	text1 := "the quick brown fox jumps over the lazy dog"
	text2 := "the quick brown fox leaps over the lazy dog"

	dist := Distance(Fingerprint(text1), Fingerprint(text2))
	if dist > 10 {
		t.Errorf("similar texts have too large distance: %d", dist)
	}
}

func TestFingerprint_DifferentTexts(t *testing.T) {
	text1 := "the quick brown fox jumps over the lazy dog"
	text2 := "completely unrelated content about quantum physics and mathematics"

	dist := Distance(Fingerprint(text1), Fingerprint(text2))
	if dist < 5 {
		t.Errorf("very different texts have too small distance: %d", dist)
	}
}

func TestFingerprint_EmptyInput(t *testing.T) {
	if fp := Fingerprint(""); fp != 0 {
		t.Errorf("empty input should produce fingerprint 0, got: %064b", fp)
	}
	if fp := Fingerprint("   \t\n  "); fp != 0 {
		t.Errorf("whitespace-only input should produce fingerprint 0, got: %064b", fp)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
		{"zero zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNearDuplicate(t *testing.T) {
	base := "rod renders the page and the extractor pulls the article body out of it"
	reworded := "rod renders the page and the extractor pulls the article text out of it"
	unrelated := "stock prices fell sharply on tuesday amid fears of rising interest rates"

	if !NearDuplicate(base, base, 0) {
		t.Error("a text is a near-duplicate of itself at threshold 0")
	}
	if !NearDuplicate(base, reworded, 12) {
		t.Error("one-word rewording should stay within a loose threshold")
	}
	if NearDuplicate(base, unrelated, 3) {
		t.Error("unrelated texts should not pass a tight threshold")
	}
}

func TestNearDuplicate_EmptySides(t *testing.T) {
	if !NearDuplicate("", "", 0) {
		t.Error("two empty texts are duplicates")
	}
	if NearDuplicate("", "some content here", 64) {
		t.Error("an empty text is never a duplicate of a non-empty one")
	}
}
