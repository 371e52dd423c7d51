// Package config loads the TOML description of a render pipeline: the
// stages in order, frames in flight, descriptor capacity, and the swap
// chain the headless driver fakes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

var ErrInvalidConfig = errors.New("invalid pipeline configuration")

const (
	STAGE_KIND_GEOMETRY = "geometry"
	STAGE_KIND_LIGHTING = "lighting"
	STAGE_KIND_OVERLAY  = "overlay"

	MAX_FRAMES_IN_FLIGHT = 3
)

type SwapchainConfig struct {
	ImageCount  int    `toml:"image_count"`
	Width       uint32 `toml:"width"`
	Height      uint32 `toml:"height"`
	Format      string `toml:"format"`
	DepthFormat string `toml:"depth_format"`
}

type DescriptorConfig struct {
	PerCategory uint32 `toml:"per_category"`
	MaxSets     uint32 `toml:"max_sets"`
}

type StageConfig struct {
	Kind string `toml:"kind"`
	Name string `toml:"name,omitempty"`
	// Clear is RGBA for the first stage's color attachment.
	Clear     []float32 `toml:"clear,omitempty"`
	Deferred  bool      `toml:"deferred,omitempty"`
	Font      string    `toml:"font,omitempty"`
	MaxGlyphs int       `toml:"max_glyphs,omitempty"`
}

type Config struct {
	LogLevel       string           `toml:"log_level"`
	FramesInFlight int              `toml:"frames_in_flight"`
	ShaderDir      string           `toml:"shader_dir"`
	Swapchain      SwapchainConfig  `toml:"swapchain"`
	Descriptors    DescriptorConfig `toml:"descriptors"`
	Stages         []StageConfig    `toml:"stages"`
}

// Default is a forward geometry stage with a text overlay on a 1280x720
// triple buffered swap chain.
func Default() *Config {
	c := &Config{
		Stages: []StageConfig{
			{Kind: STAGE_KIND_GEOMETRY},
			{Kind: STAGE_KIND_OVERLAY},
		},
	}
	c.applyDefaults()
	return c
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes data, fills in defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.FramesInFlight == 0 {
		c.FramesInFlight = 2
	}
	if c.ShaderDir == "" {
		c.ShaderDir = "shaders"
	}
	if c.Swapchain.ImageCount == 0 {
		c.Swapchain.ImageCount = 3
	}
	if c.Swapchain.Width == 0 && c.Swapchain.Height == 0 {
		c.Swapchain.Width, c.Swapchain.Height = 1280, 720
	}
	if c.Swapchain.Format == "" {
		c.Swapchain.Format = driver.FORMAT_BGRA8_UNORM.String()
	}
	if c.Swapchain.DepthFormat == "" {
		c.Swapchain.DepthFormat = driver.FORMAT_D32_SFLOAT.String()
	}
	if c.Descriptors.PerCategory == 0 {
		c.Descriptors.PerCategory = 256
	}
	if c.Descriptors.MaxSets == 0 {
		c.Descriptors.MaxSets = 512
	}
	for i := range c.Stages {
		c.Stages[i].Kind = strings.ToLower(c.Stages[i].Kind)
		if c.Stages[i].Name == "" {
			c.Stages[i].Name = c.Stages[i].Kind
		}
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.FramesInFlight < 1 || c.FramesInFlight > MAX_FRAMES_IN_FLIGHT {
		return invalid("frames_in_flight %d outside [1, %d]", c.FramesInFlight, MAX_FRAMES_IN_FLIGHT)
	}
	if c.Swapchain.ImageCount < 1 {
		return invalid("swapchain.image_count must be positive, got %d", c.Swapchain.ImageCount)
	}
	if c.Swapchain.Width == 0 || c.Swapchain.Height == 0 {
		return invalid("swapchain extent %dx%d is empty", c.Swapchain.Width, c.Swapchain.Height)
	}
	if _, err := driver.ParseFormat(c.Swapchain.Format); err != nil {
		return invalid("swapchain.format: %s", err)
	}
	depth, err := driver.ParseFormat(c.Swapchain.DepthFormat)
	if err != nil {
		return invalid("swapchain.depth_format: %s", err)
	}
	if !depth.IsDepth() {
		return invalid("swapchain.depth_format %s is not a depth format", depth)
	}
	if len(c.Stages) == 0 {
		return invalid("no stages")
	}
	names := make(map[string]bool, len(c.Stages))
	deferred := false
	for i, s := range c.Stages {
		if names[s.Name] {
			return invalid("stage %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
		switch s.Kind {
		case STAGE_KIND_GEOMETRY:
			deferred = deferred || s.Deferred
		case STAGE_KIND_LIGHTING:
			if !deferred {
				return invalid("stage %d: lighting needs a deferred geometry stage before it", i)
			}
		case STAGE_KIND_OVERLAY:
		default:
			return invalid("stage %d: unknown kind %q", i, s.Kind)
		}
		if len(s.Clear) != 0 && len(s.Clear) != 4 {
			return invalid("stage %d: clear needs 4 components, got %d", i, len(s.Clear))
		}
	}
	return nil
}

// SwapchainFormats returns the parsed color and depth formats. Only valid
// after Validate succeeded.
func (c *Config) SwapchainFormats() (driver.Format, driver.Format) {
	color, _ := driver.ParseFormat(c.Swapchain.Format)
	depth, _ := driver.ParseFormat(c.Swapchain.DepthFormat)
	return color, depth
}

// Encode renders the effective configuration, defaults included.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
