package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tallyops/cutlog/internal/timeline"
)

// Config is the full daemon configuration.
type Config struct {
	Session  SessionConfig  `toml:"session"`
	TSL      TSLConfig      `toml:"tsl"`
	RossTalk RossTalkConfig `toml:"rosstalk"`
	Feed     FeedConfig     `toml:"feed"`
	Cameras  []CameraConfig `toml:"camera"`
	Keyers   []KeyerConfig  `toml:"keyer"`
}

type SessionConfig struct {
	Name             string  `toml:"name"`
	FrameRate        float64 `toml:"frame_rate"`
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	StartTimecode    string  `toml:"start_timecode"`
	DropFrame        bool    `toml:"drop_frame"`
	ExtendOpenKeyers bool    `toml:"extend_open_keyers"`
	OutputPath       string  `toml:"output_path"`
}

type TSLConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

type RossTalkConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type FeedConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

type CameraConfig struct {
	SourceIndex int    `toml:"source_index"`
	Name        string `toml:"name"`
	File        string `toml:"file"`
}

type KeyerConfig struct {
	Number int    `toml:"number"`
	Label  string `toml:"label"`
	Source string `toml:"source"`
}

// Load reads and validates a daemon config, filling defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	// An empty file is a truncate-in-progress or a mistake, never a real
	// config; parsing it would silently yield all defaults.
	if len(strings.TrimSpace(string(data))) == 0 {
		return Config{}, fmt.Errorf("config load failed (%s): file is empty", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Session.Name == "" {
		cfg.Session.Name = "Reconstructed Program"
	}
	if cfg.Session.FrameRate == 0 {
		cfg.Session.FrameRate = 29.97
	}
	if cfg.Session.Width == 0 {
		cfg.Session.Width = 1920
	}
	if cfg.Session.Height == 0 {
		cfg.Session.Height = 1080
	}
	if cfg.Session.OutputPath == "" {
		cfg.Session.OutputPath = "session.xml"
	}
	if cfg.TSL.ListenAddr == "" {
		cfg.TSL.ListenAddr = ":5201"
	}
	if cfg.RossTalk.Addr == "" {
		cfg.RossTalk.Addr = "127.0.0.1:7788"
	}
	if cfg.Feed.ListenAddr == "" {
		cfg.Feed.ListenAddr = ":8571"
	}
}

// Validate checks field constraints. Defaults are assumed applied.
func Validate(cfg Config) error {
	if cfg.Session.FrameRate <= 0 {
		return fmt.Errorf("session frame_rate must be positive")
	}
	if cfg.Session.Width <= 0 || cfg.Session.Height <= 0 {
		return fmt.Errorf("session resolution must be positive")
	}
	seen := make(map[int]bool, len(cfg.Cameras))
	for i, cam := range cfg.Cameras {
		if cam.SourceIndex <= 0 {
			return fmt.Errorf("camera[%d] invalid: source_index must be positive", i)
		}
		if strings.TrimSpace(cam.Name) == "" {
			return fmt.Errorf("camera[%d] invalid: name is required", i)
		}
		if seen[cam.SourceIndex] {
			return fmt.Errorf("camera[%d] invalid: duplicate source_index %d", i, cam.SourceIndex)
		}
		seen[cam.SourceIndex] = true
	}
	seenKeyers := make(map[int]bool, len(cfg.Keyers))
	for i, k := range cfg.Keyers {
		if k.Number <= 0 {
			return fmt.Errorf("keyer[%d] invalid: number must be positive", i)
		}
		switch timeline.KeyerSource(k.Source) {
		case timeline.KeyerSourcePresentation, timeline.KeyerSourceGraphics, "":
		default:
			return fmt.Errorf("keyer[%d] invalid: unknown source %q", i, k.Source)
		}
		if seenKeyers[k.Number] {
			return fmt.Errorf("keyer[%d] invalid: duplicate number %d", i, k.Number)
		}
		seenKeyers[k.Number] = true
	}
	return nil
}

// Assignments converts the configured tables to reconstruction inputs.
func (c Config) Assignments() ([]timeline.CameraAssignment, []timeline.KeyerAssignment) {
	cameras := make([]timeline.CameraAssignment, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		cameras = append(cameras, timeline.CameraAssignment{
			SourceIndex: cam.SourceIndex,
			Name:        cam.Name,
			FilePath:    cam.File,
		})
	}
	keyers := make([]timeline.KeyerAssignment, 0, len(c.Keyers))
	for _, k := range c.Keyers {
		source := timeline.KeyerSource(k.Source)
		if source == "" {
			source = timeline.KeyerSourceGraphics
		}
		keyers = append(keyers, timeline.KeyerAssignment{
			Number: k.Number,
			Label:  k.Label,
			Source: source,
		})
	}
	return cameras, keyers
}

// Settings builds the reconstruction settings for one generation pass.
// Session start/end come from the live session, not the file.
func (c Config) Settings() timeline.Settings {
	cameras, keyers := c.Assignments()
	return timeline.Settings{
		SequenceName:     c.Session.Name,
		FrameRate:        c.Session.FrameRate,
		Width:            c.Session.Width,
		Height:           c.Session.Height,
		StartTimecode:    c.Session.StartTimecode,
		DropFrame:        c.Session.DropFrame,
		Cameras:          cameras,
		Keyers:           keyers,
		ExtendOpenKeyers: c.Session.ExtendOpenKeyers,
	}
}
