package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sequencer/config"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	tests := []struct {
		description string
		path        string
		check       func(*testing.T, *config.Config)
		err         bool
	}{
		{
			description: "missing file",
			path:        filepath.Join(dir, "missing.yml"),
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, config.Default(), c)
			},
		},
		{
			description: "partial",
			path:        write("partial.yml", "bufferSize: 256\nbackend: oto\ncontentionTimeout: 5ms\n"),
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, 256, c.BufferSize)
				assert.Equal(t, config.Oto, c.Backend)
				assert.Equal(t, config.Duration(5*time.Millisecond), c.ContentionTimeout)
				assert.Equal(t, 48000, c.SampleRate)
			},
		},
		{
			description: "unknown backend",
			path:        write("backend.yml", "backend: alsa\n"),
			err:         true,
		},
		{
			description: "small buffer",
			path:        write("buffer.yml", "bufferSize: 16\n"),
			err:         true,
		},
		{
			description: "bad duration",
			path:        write("duration.yml", "contentionTimeout: soon\n"),
			err:         true,
		},
		{
			description: "broken yaml",
			path:        write("broken.yml", "sampleRate: [\n"),
			err:         true,
		},
	}
	for _, c := range tests {
		cfg, err := config.Load(c.path)
		if c.err {
			assert.Error(t, err, c.description)
			continue
		}
		require.NoError(t, err, c.description)
		c.check(t, cfg)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	c := config.Default()
	c.MIDIInput = "Keystation"
	c.PluginPaths = []string{"/opt/vst"}
	c.ContentionTimeout = config.Duration(3 * time.Millisecond)
	require.NoError(t, c.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
