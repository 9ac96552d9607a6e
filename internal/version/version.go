// Package version reports how the crawlwatch binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags, for example
//
//	-X crawlwatch/internal/version.Version=1.2.0 -X crawlwatch/internal/version.GitCommit=$(git rev-parse HEAD)
//
// GitCommit, GitDirty and BuildDate fall back to the VCS stamp Go embeds in
// binaries built from a checkout.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = ""
	GitDirty  = ""
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is the structured form printed by `crawlwatch version`
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GitTag    string `json:"git_tag"`
	GitDirty  bool   `json:"git_dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetBuildInfo merges the ldflags values with the embedded VCS stamp
func GetBuildInfo() BuildInfo {
	b := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GitTag:    GitTag,
		GitDirty:  GitDirty == "true",
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
	if b.GitTag == "unknown" {
		b.GitTag = ""
	}
	if b.GitCommit == "unknown" || b.GitCommit == "" {
		stampFromVCS(&b)
	}
	return b
}

func stampFromVCS(b *BuildInfo) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			b.GitCommit = s.Value
		case "vcs.modified":
			b.GitDirty = b.GitDirty || s.Value == "true"
		case "vcs.time":
			if b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		}
	}
}

// Label is the version shown to users: the tag if there is one, marked
// -dirty for modified trees
func (b BuildInfo) Label() string {
	v := b.Version
	if b.GitTag != "" {
		v = b.GitTag
	}
	if b.GitDirty && !strings.HasSuffix(v, "-dirty") {
		v += "-dirty"
	}
	return v
}

// ShortCommit is the first seven characters of the commit, or ""
func (b BuildInfo) ShortCommit() string {
	c := b.GitCommit
	if c == "unknown" {
		return ""
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return c
}

// Info returns the version label
func Info() string { return GetBuildInfo().Label() }

// Full returns the label followed by the short commit when known
func Full() string {
	b := GetBuildInfo()
	label := b.Label()
	if c := b.ShortCommit(); c != "" && !strings.Contains(label, c) {
		return fmt.Sprintf("%s (%s)", label, c)
	}
	return label
}

// UserAgent identifies crawlwatch to the crawler's REST API
func UserAgent() string {
	return "crawlwatch/" + Info()
}
