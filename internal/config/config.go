package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ubipos/internal/heading"
	"ubipos/internal/pdr"
	"ubipos/internal/sim"
	"ubipos/internal/step"
)

type Config struct {
	Input   InputConfig   `yaml:"input"`
	Heading HeadingConfig `yaml:"heading"`
	Step    StepConfig    `yaml:"step"`
	Output  OutputConfig  `yaml:"output"`
}

type InputConfig struct {
	// Mode is "sim" or "replay".
	Mode   string       `yaml:"mode"`
	Replay ReplayConfig `yaml:"replay"`
	Sim    SimConfig    `yaml:"sim"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
	// Realtime paces samples by their timestamps; otherwise the log is fed
	// as fast as possible.
	Realtime bool `yaml:"realtime"`
}

type SimConfig struct {
	Duration time.Duration `yaml:"duration"`
	// Route optionally names a YAML route script; the walk parameters below
	// then only supply rate, field and noise.
	Route             string  `yaml:"route"`
	SampleRateHz      float64 `yaml:"sample_rate_hz"`
	CadenceHz         float64 `yaml:"cadence_hz"`
	Bounce            float64 `yaml:"bounce"`
	StartHeadingDeg   float64 `yaml:"start_heading_deg"`
	TurnRateDegPerSec float64 `yaml:"turn_rate_deg_s"`
	FieldMicroTesla   float64 `yaml:"field_ut"`
	DipDeg            float64 `yaml:"dip_deg"`
	AccelNoise        float64 `yaml:"accel_noise"`
	Seed              int64   `yaml:"seed"`
}

type HeadingConfig struct {
	AccWindow time.Duration `yaml:"acc_window"`
	AccFactor float64       `yaml:"acc_factor"`
	MagFactor float64       `yaml:"mag_factor"`
	// FastMagAlignments is a pointer so an explicit 0 disables fast
	// alignment instead of selecting the default.
	FastMagAlignments *int `yaml:"fast_mag_alignments"`
}

type StepConfig struct {
	ShortWindow     time.Duration `yaml:"short_window"`
	LongWindow      time.Duration `yaml:"long_window"`
	MinDuration     time.Duration `yaml:"min_duration"`
	MaxDuration     time.Duration `yaml:"max_duration"`
	// The gates are pointers so an explicit 0 turns the gate off.
	EnergyThreshold *float64 `yaml:"energy_threshold"`
	MinPeakRise     *float64 `yaml:"min_peak_rise"`
	MinValleyDrop   *float64 `yaml:"min_valley_drop"`
	LengthModel     string        `yaml:"length_model"`
	HeightM         float64       `yaml:"height_m"`
	HeightFactor    float64       `yaml:"height_factor"`
}

type OutputConfig struct {
	LogEvents bool         `yaml:"log_events"`
	UDP       UDPConfig    `yaml:"udp"`
	Record    RecordConfig `yaml:"record"`
	Plot      PlotConfig   `yaml:"plot"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// PlotConfig renders the heading trace with step markers when the run ends.
type PlotConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, rejects unknown fields, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLines(te.Errors), "; "))
		}
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// stripLines drops yaml.v3's "line N: " prefixes.
func stripLines(errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.HasPrefix(e, "line ") {
			if _, rest, ok := strings.Cut(e, ": "); ok {
				e = rest
			}
		}
		out = append(out, e)
	}
	return out
}

func (cfg *Config) applyDefaults() {
	in := &cfg.Input
	in.Mode = strings.ToLower(strings.TrimSpace(in.Mode))
	if in.Mode == "" {
		in.Mode = "sim"
	}
	if in.Replay.Speed == 0 {
		in.Replay.Speed = 1
	}
	if in.Sim.Duration <= 0 {
		in.Sim.Duration = 60 * time.Second
	}
	if in.Sim.SampleRateHz <= 0 {
		in.Sim.SampleRateHz = 100
	}
	if in.Sim.CadenceHz <= 0 {
		in.Sim.CadenceHz = 2
	}
	if in.Sim.Bounce <= 0 {
		in.Sim.Bounce = 2
	}
	if in.Sim.FieldMicroTesla <= 0 {
		in.Sim.FieldMicroTesla = 48
	}

	hd := heading.DefaultConfig()
	h := &cfg.Heading
	if h.AccWindow == 0 {
		h.AccWindow = hd.AccWindow
	}
	if h.AccFactor == 0 {
		h.AccFactor = hd.AccFactor
	}
	if h.MagFactor == 0 {
		h.MagFactor = hd.MagFactor
	}
	if h.FastMagAlignments == nil {
		n := hd.FastMagAlignments
		h.FastMagAlignments = &n
	}

	sd := step.DefaultConfig()
	s := &cfg.Step
	if s.ShortWindow == 0 {
		s.ShortWindow = sd.ShortWindow
	}
	if s.LongWindow == 0 {
		s.LongWindow = sd.LongWindow
	}
	s.EnergyThreshold = orDefault(s.EnergyThreshold, sd.EnergyThreshold)
	if s.MinDuration == 0 {
		s.MinDuration = sd.MinDuration
	}
	if s.MaxDuration == 0 {
		s.MaxDuration = sd.MaxDuration
	}
	s.MinPeakRise = orDefault(s.MinPeakRise, sd.MinPeakRise)
	s.MinValleyDrop = orDefault(s.MinValleyDrop, sd.MinValleyDrop)
	if s.LengthModel == "" {
		s.LengthModel = sd.Length.Name()
	}
	if s.HeightFactor == 0 {
		s.HeightFactor = 1
	}
}

func orDefault(v *float64, def float64) *float64 {
	if v != nil {
		return v
	}
	return &def
}

func (cfg *Config) validate() error {
	in := cfg.Input
	switch in.Mode {
	case "sim":
	case "replay":
		if strings.TrimSpace(in.Replay.Path) == "" {
			return fmt.Errorf("input.replay.path is required when input.mode is 'replay'")
		}
		if in.Replay.Speed < 0 {
			return fmt.Errorf("input.replay.speed must be > 0")
		}
	default:
		return fmt.Errorf("input.mode must be 'sim' or 'replay', got %q", in.Mode)
	}

	// Component errors already carry their section prefix.
	if err := cfg.ToHeadingConfig().Validate(); err != nil {
		return err
	}
	sc, err := cfg.ToStepConfig()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	out := cfg.Output
	if out.UDP.Enable && strings.TrimSpace(out.UDP.Dest) == "" {
		return fmt.Errorf("output.udp.dest is required when output.udp.enable is true")
	}
	if out.Record.Enable {
		if strings.TrimSpace(out.Record.Path) == "" {
			return fmt.Errorf("output.record.path is required when output.record.enable is true")
		}
		if in.Mode == "replay" {
			return fmt.Errorf("output.record cannot be used with input.mode=replay")
		}
	}
	if out.Plot.Enable && strings.TrimSpace(out.Plot.Path) == "" {
		return fmt.Errorf("output.plot.path is required when output.plot.enable is true")
	}
	return nil
}

func (cfg Config) ToHeadingConfig() heading.Config {
	h := cfg.Heading
	c := heading.Config{
		AccWindow: h.AccWindow,
		AccFactor: h.AccFactor,
		MagFactor: h.MagFactor,
	}
	if h.FastMagAlignments != nil {
		c.FastMagAlignments = *h.FastMagAlignments
	}
	return c
}

func (cfg Config) ToStepConfig() (step.Config, error) {
	s := cfg.Step
	model, err := step.ParseLengthModel(s.LengthModel, s.HeightM, s.HeightFactor)
	if err != nil {
		return step.Config{}, err
	}
	c := step.Config{
		ShortWindow: s.ShortWindow,
		LongWindow:  s.LongWindow,
		MinDuration: s.MinDuration,
		MaxDuration: s.MaxDuration,
		Length:      model,
	}
	if s.EnergyThreshold != nil {
		c.EnergyThreshold = *s.EnergyThreshold
	}
	if s.MinPeakRise != nil {
		c.MinPeakRise = *s.MinPeakRise
	}
	if s.MinValleyDrop != nil {
		c.MinValleyDrop = *s.MinValleyDrop
	}
	return c, nil
}

// ToEngineConfig combines the heading and step sections.
func (cfg Config) ToEngineConfig() (pdr.Config, error) {
	sc, err := cfg.ToStepConfig()
	if err != nil {
		return pdr.Config{}, err
	}
	return pdr.Config{Heading: cfg.ToHeadingConfig(), Step: sc}, nil
}

func (cfg Config) SimWalk() sim.Walk {
	s := cfg.Input.Sim
	return sim.Walk{
		SampleRate:        s.SampleRateHz,
		Cadence:           s.CadenceHz,
		Bounce:            s.Bounce,
		StartHeadingDeg:   s.StartHeadingDeg,
		TurnRateDegPerSec: s.TurnRateDegPerSec,
		FieldMicroTesla:   s.FieldMicroTesla,
		DipDeg:            s.DipDeg,
		AccelNoise:        s.AccelNoise,
		Seed:              s.Seed,
	}
}
