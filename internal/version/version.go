// Package version reports the ytscribe build version. Release builds set the
// variables below with -ldflags; everything else falls back to module build
// info and, inside a checkout, git describe.
package version

import (
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const fallbackVersion = "0.1.0"

// Info is the full build description printed by `ytscribe version --verbose`.
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

// Resolve returns the version string without a "v" prefix.
func Resolve() string {
	return resolveVersion(baseVersion(Version, readBuildInfo), runGit)
}

func Details() Info {
	info := Info{
		Version:   Resolve(),
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
	if bi, ok := readBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

func readBuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

// baseVersion prefers the ldflags value, then a tagged module version from
// `go install`, then the fallback.
func baseVersion(ldflags string, buildInfo func() (*debug.BuildInfo, bool)) string {
	if v := strings.TrimPrefix(strings.TrimSpace(ldflags), "v"); v != "" {
		return v
	}
	if bi, ok := buildInfo(); ok && bi != nil {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return strings.TrimPrefix(v, "v")
		}
	}
	return fallbackVersion
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	suffix := computeGitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

// computeGitSuffix is empty outside a git checkout and on an exact release
// tag.
func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
