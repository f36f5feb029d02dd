package python

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpreterPath(t *testing.T) {
	got, err := InterpreterPath("/envs/py311", "3.11")
	require.NoError(t, err)

	if runtime.GOOS == "windows" {
		assert.Equal(t, filepath.Join("/envs/py311", "python.exe"), got)
	} else {
		assert.Equal(t, filepath.Join("/envs/py311", "bin", "python3.11"), got)
	}
}

func TestInterpreterPathIgnoresPatchVersion(t *testing.T) {
	got, err := InterpreterPath("/envs/py310", "3.10.14")
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		assert.Equal(t, filepath.Join("/envs/py310", "bin", "python3.10"), got)
	}
}

func TestInterpreterPathRejectsBadVersions(t *testing.T) {
	for _, version := range []string{"", "3", "three.ten", "3.x"} {
		_, err := InterpreterPath("/envs/py", version)
		assert.Error(t, err, "version %q should be rejected", version)
	}
}
