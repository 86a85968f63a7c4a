package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	oldVersion, oldCommit := Version, Commit

	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "dev", "none"

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{{Key: revisionKey, Value: "abc123"}},
	})

	assert.Equal(t, "v0.4.0", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Contains(t, String(), "v0.4.0 (commit: abc123")
}

func TestApply_KeepsLinkedValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit

	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v9.9.9", "linked"

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: revisionKey, Value: "abc123"}},
	})

	assert.Equal(t, "v9.9.9", Version)
	assert.Equal(t, "linked", Commit)
}
