package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[[stages]]
kind = "Geometry"
`))
	require.NoError(t, err)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 2, c.FramesInFlight)
	assert.Equal(t, 3, c.Swapchain.ImageCount)
	assert.Equal(t, uint32(1280), c.Swapchain.Width)
	assert.Equal(t, uint32(256), c.Descriptors.PerCategory)
	assert.Equal(t, uint32(512), c.Descriptors.MaxSets)
	assert.Equal(t, "geometry", c.Stages[0].Kind)
	assert.Equal(t, "geometry", c.Stages[0].Name)

	color, depth := c.SwapchainFormats()
	assert.Equal(t, driver.FORMAT_BGRA8_UNORM, color)
	assert.Equal(t, driver.FORMAT_D32_SFLOAT, depth)
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "pipeline.toml"))
	require.NoError(t, err)
	require.Len(t, c.Stages, 3)
	assert.True(t, c.Stages[0].Deferred)
	assert.Equal(t, []float32{0.02, 0.02, 0.03, 1}, c.Stages[0].Clear)
	assert.Equal(t, "hud", c.Stages[2].Name)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"frames in flight": "frames_in_flight = 4\n[[stages]]\nkind = \"overlay\"",
		"no stages":        "frames_in_flight = 2",
		"unknown kind":     "[[stages]]\nkind = \"raytrace\"",
		"lighting first":   "[[stages]]\nkind = \"lighting\"",
		"forward lighting": "[[stages]]\nkind = \"geometry\"\n[[stages]]\nkind = \"lighting\"",
		"duplicate names":  "[[stages]]\nkind = \"overlay\"\n[[stages]]\nkind = \"overlay\"",
		"bad depth":        "[swapchain]\ndepth_format = \"rgba8_unorm\"\n[[stages]]\nkind = \"overlay\"",
		"bad clear":        "[[stages]]\nkind = \"geometry\"\nclear = [1.0]",
		"unknown key":      "colour = 1\n[[stages]]\nkind = \"overlay\"",
		"zero images":      "[swapchain]\nimage_count = -1\n[[stages]]\nkind = \"overlay\"",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	c := Default()
	data, err := c.Encode()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[stages]]\nkind = \"overlay\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("frames_in_flight = 3\n[[stages]]\nkind = \"overlay\"\n"), 0o644))

	select {
	case c := <-changes:
		assert.Equal(t, 3, c.FramesInFlight)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	cancel()
	assert.NoError(t, <-done)
}
