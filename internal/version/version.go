package version

import "github.com/fatih/color"

// Version information for the zetrace CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = Colorize("0.3.0-exp")

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colorize paints the major, minor and patch components of a
// "major.minor.patch[-suffix]" version. Anything else is returned as is.
func Colorize(v string) string {
	core, suffix := v, ""
	for i := 0; i < len(v); i++ {
		if v[i] == '-' || v[i] == '+' {
			core, suffix = v[:i], v[i:]
			break
		}
	}
	parts := [3]string{}
	n := 0
	start := 0
	for i := 0; i <= len(core); i++ {
		if i == len(core) || core[i] == '.' {
			if n == 3 {
				return v
			}
			parts[n] = core[start:i]
			n++
			start = i + 1
		}
	}
	if n != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return v
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}
