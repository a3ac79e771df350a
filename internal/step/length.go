package step

import (
	"fmt"
	"strings"
)

// DefaultStepLength is the constant model's step length in meters.
const DefaultStepLength = 0.7

// ConstantStepLength ignores the step and returns DefaultStepLength.
func ConstantStepLength() float64 {
	return DefaultStepLength
}

// UnitaryLinearStepLength models length = 0.2074·f + 0.2963 for cadence f in Hz.
func UnitaryLinearStepLength(frequency float64) float64 {
	const a, b = 0.2074, 0.2963
	return a*frequency + b
}

// BinaryLinearStepLength models length = 0.1397·f + 0.008823·var + 0.3735,
// with var the variance of the accelerometer magnitude during the step.
func BinaryLinearStepLength(frequency, variance float64) float64 {
	const a, b, c = 0.1397, 0.008823, 0.3735
	return a*frequency + b*variance + c
}

// HeightExperienceStepLength scales an empirical height/cadence model by an
// individual factor: k·(0.7 + 0.371·(h−1.75) + 0.227·(f−1.79)·h/1.75).
func HeightExperienceStepLength(height, frequency, factor float64) float64 {
	const a, b = 0.371, 0.227
	return factor * (0.7 + a*(height-1.75) + b*((frequency-1.79)*height/1.75))
}

// LengthModel maps a step's cadence and acceleration variance to a length.
type LengthModel interface {
	StepLength(frequency, variance float64) float64
	Name() string
}

type Constant struct{}

func (Constant) StepLength(float64, float64) float64 { return ConstantStepLength() }
func (Constant) Name() string                        { return "constant" }

type UnitaryLinear struct{}

func (UnitaryLinear) StepLength(f, _ float64) float64 { return UnitaryLinearStepLength(f) }
func (UnitaryLinear) Name() string                    { return "unitary_linear" }

type BinaryLinear struct{}

func (BinaryLinear) StepLength(f, v float64) float64 { return BinaryLinearStepLength(f, v) }
func (BinaryLinear) Name() string                    { return "binary_linear" }

// HeightExperience needs the walker's height in meters and a personal factor
// (1.0 when uncalibrated).
type HeightExperience struct {
	Height float64
	Factor float64
}

func (h HeightExperience) StepLength(f, _ float64) float64 {
	return HeightExperienceStepLength(h.Height, f, h.Factor)
}

func (HeightExperience) Name() string { return "height_experience" }

// ParseLengthModel selects a model by name. Empty selects binary_linear.
// height and factor are only used by height_experience.
func ParseLengthModel(name string, height, factor float64) (LengthModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "binary_linear":
		return BinaryLinear{}, nil
	case "unitary_linear":
		return UnitaryLinear{}, nil
	case "constant":
		return Constant{}, nil
	case "height_experience":
		if height <= 0 {
			return nil, fmt.Errorf("step: height_experience needs height > 0, got %v", height)
		}
		if factor <= 0 {
			return nil, fmt.Errorf("step: height_experience needs factor > 0, got %v", factor)
		}
		return HeightExperience{Height: height, Factor: factor}, nil
	}
	return nil, fmt.Errorf("step: unknown length model %q", name)
}
