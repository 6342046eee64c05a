package observability

import (
	"strings"
	"testing"
)

func TestNormalizeReason(t *testing.T) {
	if got := NormalizeReason("  relayer unavailable  "); got != "relayer unavailable" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := NormalizeReason(""); got != "unspecified" {
		t.Fatalf("expected unspecified for empty reason, got %q", got)
	}
	if got := NormalizeReason("   "); got != "unspecified" {
		t.Fatalf("expected unspecified for blank reason, got %q", got)
	}
	long := strings.Repeat("x", 200)
	if got := NormalizeReason(long); len(got) != 64 {
		t.Fatalf("expected reason truncated to 64 chars, got %d", len(got))
	}
}
