package voicegate

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestResolveRuntimeLibrary(t *testing.T) {
	empty, bundled, data := t.TempDir(), t.TempDir(), t.TempDir()

	assert.Empty(t, ResolveRuntimeLibrary([]string{"", empty}))

	lib := filepath.Join(bundled, BundledLibDir, runtime.GOOS+"_"+runtime.GOARCH, bundledLibNames()[0])
	touch(t, lib)
	assert.Equal(t, lib, ResolveRuntimeLibrary([]string{empty, bundled}))

	dataLib := filepath.Join(data, DataDir, dataDirLibName())
	touch(t, dataLib)
	assert.Equal(t, dataLib, ResolveRuntimeLibrary([]string{bundled, data}), "data/ wins over lib/")
}
