package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	// GitCommit and BuildDate are optional.
	_ = GitCommit
	_ = BuildDate
}

func TestColorize_PlainWhenColorDisabled(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	cases := []string{
		"0.3.0-exp",
		"1.2.3",
		"1.0.0-beta.1",
		"1.2.3-rc.1+build.123",
		"dev",
		"1.2",
		"1.2.3.4",
		"1..3",
	}
	for _, v := range cases {
		if got := Colorize(v); got != v {
			t.Errorf("Colorize(%q) = %q, want unchanged", v, got)
		}
	}
}

func TestColorize_ForcedColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = orig }()

	got := Colorize("1.2.3-dev")
	if got == "1.2.3-dev" {
		t.Fatalf("expected escape sequences in %q", got)
	}
	if Colorize("dev") != "dev" {
		t.Fatalf("non-semver input must not be colored")
	}
}

func BenchmarkColorize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Colorize("1.2.3-rc.1")
	}
}
