package vst2_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/vst2"
)

func TestCache(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synth"+vst2.Ext), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "delay"+vst2.Ext), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0o644))

	cache := vst2.NewCache(log.Discard(), dir, dir)
	assert.Equal(t, 1, countPath(cache.Paths, dir))
	assert.Len(t, cache.Libs[dir], 2)

	path, err := cache.Find("delay")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "delay"+vst2.Ext), path)

	_, err = cache.Find("reverb")
	assert.Error(t, err)

	assert.Contains(t, cache.String(), "synth")
}

func countPath(paths []string, path string) int {
	n := 0
	for _, p := range paths {
		if p == path {
			n++
		}
	}
	return n
}
