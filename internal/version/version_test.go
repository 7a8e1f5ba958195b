package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	b := Info()
	if b.Version == "" || b.Commit == "" || b.Date == "" {
		t.Fatalf("build info has empty fields: %+v", b)
	}
	s := b.String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "blackstore/"+Info().Version {
		t.Fatalf("UserAgent = %q", got)
	}
}
