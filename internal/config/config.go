package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ArticlePath    string  `yaml:"article"`
	OutputVideo    string  `yaml:"output"`
	FramesDir      string  `yaml:"frames_dir,omitempty"`
	StatesOutput   string  `yaml:"states_output,omitempty"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	ViewportHeight float64 `yaml:"viewport_height,omitempty"`
	FPS            int     `yaml:"fps"`
	Workers        int     `yaml:"workers"`
	VideoEncoder   string  `yaml:"encoder,omitempty"`
	Quality        int     `yaml:"quality,omitempty"`
	ScrollSpeed    float64 `yaml:"scroll_speed"`
	TracePath      string  `yaml:"trace,omitempty"`
	StartScroll    float64 `yaml:"start_scroll"`
	EndScroll      float64 `yaml:"end_scroll,omitempty"`
	EventsPerFrame int     `yaml:"events_per_frame"`
	FadeDuration   float64 `yaml:"fade"`
	AudioPath      string  `yaml:"audio,omitempty"`
	Preset         string  `yaml:"preset,omitempty"`
	Smoothing      string  `yaml:"smoothing"`
	SpringFreq     float64 `yaml:"spring_frequency"`
	SpringDamping  float64 `yaml:"spring_damping"`
	ShowStats      bool    `yaml:"show_stats"`
	Debug          bool    `yaml:"debug"`
	Verbose        bool    `yaml:"verbose"`
	BuildVersion   string  `yaml:"-"`
}

// FrameParams describes the frame stream handed to effects and encoders.
// Width and Height are the output size; frames arrive at the input size.
type FrameParams struct {
	Width, Height           int
	InputWidth, InputHeight int
	FPS                     int
	Frames                  int
	Duration                float64
	FadeDuration            float64
	Debug                   bool
	Label                   string
	// Filter is the -vf chain, filled in from the effect.
	Filter string
}

// Input returns the size of the raw frames.
func (p FrameParams) Input() (int, int) {
	if p.InputWidth <= 0 || p.InputHeight <= 0 {
		return p.Width, p.Height
	}
	return p.InputWidth, p.InputHeight
}

const (
	SmoothingNone   = "none"
	SmoothingSpring = "spring"
)

// Presets maps a format name to an output size.
var Presets = map[string][2]int{
	"16:9": {1280, 720},
	"9:16": {720, 1280},
	"4:5":  {1080, 1350},
}

func Default() *Config {
	return &Config{
		Width:          1280,
		Height:         720,
		FPS:            30,
		ScrollSpeed:    600,
		EventsPerFrame: 1,
		FadeDuration:   0.5,
		Smoothing:      SmoothingNone,
		SpringFreq:     6,
		SpringDamping:  1,
	}
}

// Load reads a YAML config over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the keys present in a YAML file onto cfg.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyPreset overrides the output size with a named preset.
func (c *Config) ApplyPreset() error {
	if c.Preset == "" {
		return nil
	}
	size, ok := Presets[c.Preset]
	if !ok {
		return fmt.Errorf("unknown preset %q", c.Preset)
	}
	c.Width, c.Height = size[0], size[1]
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", c.Width, c.Height))
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("size %dx%d must be even for yuv420p", c.Width, c.Height))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.TracePath == "" && c.ScrollSpeed <= 0 {
		errs = append(errs, fmt.Errorf("scroll speed must be positive, got %g", c.ScrollSpeed))
	}
	if c.EndScroll != 0 && c.EndScroll < c.StartScroll {
		errs = append(errs, fmt.Errorf("end scroll %g is before start scroll %g", c.EndScroll, c.StartScroll))
	}
	if c.EventsPerFrame < 1 {
		errs = append(errs, fmt.Errorf("events per frame must be at least 1, got %d", c.EventsPerFrame))
	}
	if c.FadeDuration < 0 || math.IsNaN(c.FadeDuration) {
		errs = append(errs, fmt.Errorf("invalid fade %g", c.FadeDuration))
	}
	switch strings.ToLower(c.Smoothing) {
	case "", SmoothingNone:
	case SmoothingSpring:
		if c.SpringFreq <= 0 || c.SpringDamping <= 0 {
			errs = append(errs, fmt.Errorf("spring needs positive frequency and damping"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown smoothing %q", c.Smoothing))
	}
	return errors.Join(errs...)
}

// Params returns the frame stream description for n frames.
func (c *Config) Params(frames int) FrameParams {
	return FrameParams{
		Width:        c.Width,
		Height:       c.Height,
		InputWidth:   c.Width,
		InputHeight:  c.Height,
		FPS:          c.FPS,
		Frames:       frames,
		Duration:     float64(frames) / float64(c.FPS),
		FadeDuration: c.FadeDuration,
		Debug:        c.Debug,
	}
}
