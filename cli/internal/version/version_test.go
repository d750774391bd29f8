package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	info := Get()
	assert.Contains(t, info.String(), "nxt-orm version "+Version)
	assert.Contains(t, info.FullString(), "Git Commit: "+GitCommit)

	v, err := info.Semver()
	require.NoError(t, err)
	assert.Equal(t, Version, v.String())

	info.Version = "not-a-version"
	_, err = info.Semver()
	assert.Error(t, err)
}
