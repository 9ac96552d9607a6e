package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, tag, commit, dirty string) {
	t.Helper()
	oldV, oldT, oldC, oldD := Version, GitTag, GitCommit, GitDirty
	Version, GitTag, GitCommit, GitDirty = version, tag, commit, dirty
	t.Cleanup(func() {
		Version, GitTag, GitCommit, GitDirty = oldV, oldT, oldC, oldD
	})
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		b    BuildInfo
		want string
	}{
		{"plain", BuildInfo{Version: "1.0.0"}, "1.0.0"},
		{"tag wins", BuildInfo{Version: "1.0.0", GitTag: "v1.1.0"}, "v1.1.0"},
		{"dirty", BuildInfo{Version: "1.0.0", GitDirty: true}, "1.0.0-dirty"},
		{"already dirty", BuildInfo{Version: "1.0.0-dirty", GitDirty: true}, "1.0.0-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Label())
		})
	}
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "", BuildInfo{GitCommit: "unknown"}.ShortCommit())
	assert.Equal(t, "abc", BuildInfo{GitCommit: "abc"}.ShortCommit())
	assert.Equal(t, "abcdef1", BuildInfo{GitCommit: "abcdef1234567"}.ShortCommit())
}

func TestFull_FromLdflags(t *testing.T) {
	withBuildVars(t, "1.0.0", "v1.1.0", "abcdef1234567", "true")
	assert.Equal(t, "v1.1.0-dirty", Info())
	assert.Equal(t, "v1.1.0-dirty (abcdef1)", Full())
	assert.Equal(t, "crawlwatch/v1.1.0-dirty", UserAgent())

	b := GetBuildInfo()
	assert.True(t, b.GitDirty)
	assert.NotEmpty(t, b.GoVersion)
}

func TestGetBuildInfo_UnknownTag(t *testing.T) {
	withBuildVars(t, "dev", "unknown", "abc", "")
	assert.Equal(t, "", GetBuildInfo().GitTag)
	assert.Equal(t, "dev (abc)", Full())
}
