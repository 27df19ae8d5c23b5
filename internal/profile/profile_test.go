package profile

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	valid := []string{"default", "work", "my-profile", "a_b_c", "p1"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "UPPER", "with space", "dot.name", strings.Repeat("a", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestResolveFlagWins(t *testing.T) {
	t.Setenv("TRILL_PROFILE", "envprofile")
	if got := Resolve("flagged"); got != "flagged" {
		t.Errorf("Resolve = %q, want flagged", got)
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("TRILL_PROFILE", "envprofile")
	if got := Resolve(""); got != "envprofile" {
		t.Errorf("Resolve = %q, want envprofile", got)
	}
}

func TestPathsUnderProfileDir(t *testing.T) {
	dir := Dir("work")
	for _, p := range []string{CacheDBPath("work"), LockPath("work"), LogPath("work")} {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%q not under profile dir %q", p, dir)
		}
	}
}
