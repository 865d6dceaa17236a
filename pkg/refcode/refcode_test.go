package refcode

import (
	"strings"
	"testing"
)

func neverTaken(string) (bool, error) { return false, nil }

func TestFromIDDeterministic(t *testing.T) {
	a := FromID(123456789)
	b := FromID(123456789)
	if a != b {
		t.Fatalf("FromID is not deterministic: %q vs %q", a, b)
	}
	if len(a) != Length {
		t.Fatalf("code length = %d, want %d", len(a), Length)
	}
	if a != strings.ToUpper(a) {
		t.Fatalf("code %q is not uppercase", a)
	}
}

func TestFromIDDistinctIDs(t *testing.T) {
	if FromID(1) == FromID(2) {
		t.Fatal("distinct ids produced the same code")
	}
}

func TestGenerateNoCollision(t *testing.T) {
	code, err := Generate(42, neverTaken)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != FromID(42) {
		t.Fatalf("Generate without collision = %q, want canonical %q", code, FromID(42))
	}
}

func TestGenerateResolvesCollision(t *testing.T) {
	canonical := FromID(42)
	taken := func(code string) (bool, error) {
		return code == canonical, nil
	}
	code, err := Generate(42, taken)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code == canonical {
		t.Fatal("Generate returned a taken code")
	}
	if len(code) != Length {
		t.Fatalf("perturbed code length = %d, want %d", len(code), Length)
	}
}

func TestGenerateTerminatesWhenEverythingTaken(t *testing.T) {
	calls := 0
	taken := func(string) (bool, error) {
		calls++
		return true, nil
	}
	code, err := Generate(7, taken)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls > maxAttempts+1 {
		t.Fatalf("Generate made %d uniqueness checks, budget is %d", calls, maxAttempts+1)
	}
	if !strings.HasSuffix(code, "-7") {
		t.Fatalf("fallback code %q does not embed the id", code)
	}
}
