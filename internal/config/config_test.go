package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"odd height", func(c *Config) { c.Height = 721 }},
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"no speed", func(c *Config) { c.ScrollSpeed = 0 }},
		{"reversed sweep", func(c *Config) { c.StartScroll, c.EndScroll = 500, 100 }},
		{"no events", func(c *Config) { c.EventsPerFrame = 0 }},
		{"bad smoothing", func(c *Config) { c.Smoothing = "bouncy" }},
		{"flat spring", func(c *Config) { c.Smoothing, c.SpringFreq = SmoothingSpring, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.TracePath, cfg.ScrollSpeed = "trace.csv", 0
	assert.NoError(t, cfg.Validate(), "a trace does not need a scroll speed")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.yaml")
	require.NoError(t, os.WriteFile(path, []byte("article: jobs.yaml\nfps: 60\nsmoothing: spring\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jobs.yaml", cfg.ArticlePath)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, SmoothingSpring, cfg.Smoothing)
	assert.Equal(t, 1280, cfg.Width, "unset fields keep defaults")

	require.NoError(t, os.WriteFile(path, []byte("fps: [1"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestPresetAndParams(t *testing.T) {
	cfg := Default()
	cfg.Preset = "9:16"
	require.NoError(t, cfg.ApplyPreset())
	assert.Equal(t, 720, cfg.Width)
	assert.Equal(t, 1280, cfg.Height)

	cfg.Preset = "cinema"
	assert.Error(t, cfg.ApplyPreset())

	p := cfg.Params(90)
	assert.Equal(t, 90, p.Frames)
	assert.InDelta(t, 3.0, p.Duration, 1e-9)
}
