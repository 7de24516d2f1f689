// Package config defines the YAML file that configures a vehicle: controller gains, rates,
// flip schedule, power distribution, torque correction, telemetry and the simulator.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/interp"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/power"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/sim"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// Config is the whole vehicle configuration.
type Config struct {
	LogLevel   logging.Level                 `yaml:"log_level"`
	Rates      Rates                         `yaml:"rates"`
	Mode       string                        `yaml:"mode"`
	Gains      control.Gains                 `yaml:"gains"`
	Flip       control.FlipFeedForwardConfig `yaml:"flip_feedforward"`
	Power      power.Config                  `yaml:"power"`
	Correction Correction                    `yaml:"correction"`
	Telemetry  Telemetry                     `yaml:"telemetry"`
	Sim        sim.Config                    `yaml:"sim"`

	// dir is where relative paths are resolved from.
	dir string
}

// Rates are loop frequencies in Hz.
type Rates struct {
	MainLoopHz int `yaml:"main_loop_hz"`
	AttitudeHz int `yaml:"attitude_hz"`
}

// Validate ensures all parts of the config are valid.
func (r Rates) Validate(path string) error {
	if r.MainLoopHz != utils.MainLoopRate {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("main_loop_hz must be %d, got %d", utils.MainLoopRate, r.MainLoopHz))
	}
	if r.AttitudeHz <= 0 || r.MainLoopHz%r.AttitudeHz != 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("attitude_hz must divide %d, got %d", r.MainLoopHz, r.AttitudeHz))
	}
	return nil
}

// Telemetry configures the flight recording and the log file.
type Telemetry struct {
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	LogPath   string `yaml:"log_path"`
}

// Validate ensures all parts of the config are valid.
func (t Telemetry) Validate(path string) error {
	if (t.Path != "" || t.LogPath != "") && t.MaxSizeMB <= 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("max_size_mb must be positive, got %d", t.MaxSizeMB))
	}
	return nil
}

// Default returns the configuration of a stock vehicle.
func Default() *Config {
	return &Config{
		LogLevel: logging.INFO,
		Rates: Rates{
			MainLoopHz: utils.MainLoopRate,
			AttitudeHz: utils.Rate500Hz,
		},
		Mode:       control.ModePositionHold.String(),
		Gains:      control.DefaultGains(),
		Flip:       control.DefaultFlipFeedForwardConfig(),
		Power:      power.DefaultConfig(),
		Correction: Correction{Type: CorrectionNone},
		Telemetry:  Telemetry{MaxSizeMB: 10},
		Sim:        sim.DefaultConfig(),
		dir:        ".",
	}
}

// Load reads and validates the file at `path`. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config file")
	}
	cfg, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Read decodes and validates a config. Relative paths resolve against the working directory.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}

// Validate ensures all parts of the config are valid. Every section is checked and all errors
// are returned together.
func (c *Config) Validate(path string) error {
	var errs error
	if _, err := control.ModeFromString(c.Mode); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "mode"), err))
	}
	errs = multierr.Append(errs, c.Rates.Validate(join(path, "rates")))
	if err := c.Gains.Validate(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "gains"), err))
	}
	if err := c.Flip.Validate(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "flip_feedforward"), err))
	}
	if err := c.Power.Validate(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "power"), err))
	}
	errs = multierr.Append(errs, c.Correction.Validate(join(path, "correction")))
	errs = multierr.Append(errs, c.Telemetry.Validate(join(path, "telemetry")))
	if err := c.Sim.Validate(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "sim"), err))
	}
	return errs
}

// Resolve returns `p` relative to the directory of the config file.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ControlMode returns the parsed controller mode.
func (c *Config) ControlMode() control.Mode {
	// Validate already rejected unknown modes.
	mode, _ := control.ModeFromString(c.Mode)
	return mode
}

// ControllerConfig returns the geometric controller configuration.
func (c *Config) ControllerConfig() control.Config {
	return control.Config{
		Gains:        c.Gains,
		AttitudeRate: c.Rates.AttitudeHz,
		Mode:         c.ControlMode(),
	}
}

// FlipConfig returns the flip supervisor configuration at the configured attitude rate.
func (c *Config) FlipConfig() control.FlipFeedForwardConfig {
	flip := c.Flip
	flip.AttitudeRate = c.Rates.AttitudeHz
	return flip
}

// BuildCorrection loads the configured correction. Table paths resolve against the config file.
func (c *Config) BuildCorrection() (control.Correction, error) {
	corr := c.Correction
	switch corr.Type {
	case CorrectionLookup:
		roll, err := interp.LoadTable(c.Resolve(corr.Lookup.RollTable))
		if err != nil {
			return nil, errors.Wrap(err, "loading roll correction table")
		}
		pitch, err := interp.LoadTable(c.Resolve(corr.Lookup.PitchTable))
		if err != nil {
			return nil, errors.Wrap(err, "loading pitch correction table")
		}
		return control.NewLookupCorrection(roll, pitch)
	case CorrectionKernel:
		return control.NewKernelCorrection(corr.Kernel.Inputs, corr.Kernel.Roll, corr.Kernel.Pitch)
	default:
		return control.NoCorrection{}, nil
	}
}

// NewLogger returns a logger at the configured level writing to `appenders`, or stdout if none
// are given, and to the configured log file. The closer must be called once the logger is no
// longer used.
func (c *Config) NewLogger(name string, appenders ...logging.Appender) (logging.Logger, io.Closer) {
	logger := logging.NewBlankLogger(name)
	logger.SetLevel(c.LogLevel)
	if len(appenders) == 0 {
		appenders = append(appenders, logging.NewStdoutAppender())
	}
	for _, appender := range appenders {
		logger.AddAppender(appender)
	}
	if c.Telemetry.LogPath == "" {
		return logger, io.NopCloser(nil)
	}
	appender, closer := logging.NewFileAppender(c.Resolve(c.Telemetry.LogPath), c.Telemetry.MaxSizeMB)
	logger.AddAppender(appender)
	return logger, closer
}
