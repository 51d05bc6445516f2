// Package ramp synthesizes per-channel gamma ramps (VCGT tables) from a gamma
// specification and a white-point color temperature.
package ramp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Samples is the number of entries in a gamma ramp.
const Samples = 256

// Spec holds the per-channel gamma exponents. 1.0 is neutral; values above 1.0
// darken midtones, values below brighten them.
type Spec struct {
	R, G, B float64
}

// Neutral is the identity gamma spec.
var Neutral = Spec{R: 1.0, G: 1.0, B: 1.0}

// ParseSpec parses a gamma argument in either "G" form (applied to all three
// channels) or "R:G:B" form. Each component must be a positive finite number.
func ParseSpec(s string) (Spec, error) {
	parts := strings.Split(s, ":")

	switch len(parts) {
	case 1:
		v, err := parseComponent(parts[0])
		if err != nil {
			return Spec{}, err
		}
		return Spec{R: v, G: v, B: v}, nil
	case 3:
		r, err := parseComponent(parts[0])
		if err != nil {
			return Spec{}, err
		}
		g, err := parseComponent(parts[1])
		if err != nil {
			return Spec{}, err
		}
		b, err := parseComponent(parts[2])
		if err != nil {
			return Spec{}, err
		}
		return Spec{R: r, G: g, B: b}, nil
	default:
		return Spec{}, fmt.Errorf("invalid gamma %q: expected G or R:G:B", s)
	}
}

func parseComponent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gamma component %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("invalid gamma component %q: must be a positive finite number", s)
	}
	return v, nil
}

// Validate checks that every channel exponent is positive and finite. The
// reciprocal of each exponent is taken during synthesis, so zero or negative
// values would produce non-finite ramp entries.
func (s Spec) Validate() error {
	for _, v := range [3]float64{s.R, s.G, s.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("invalid gamma %v: components must be positive finite numbers", s)
		}
	}
	return nil
}

// Percent returns the channel exponents scaled by 100 and rounded, the form
// used in canonical profile names. Values that round to 1000 or more are out
// of the encodable range.
func (s Spec) Percent() [3]int {
	return [3]int{
		int(math.Round(s.R * 100)),
		int(math.Round(s.G * 100)),
		int(math.Round(s.B * 100)),
	}
}

// ValidateTemperature checks that a color temperature is within the range the
// black-body approximation handles reliably.
func ValidateTemperature(kelvin int) error {
	if kelvin < MinTemperature || kelvin > MaxTemperature {
		return fmt.Errorf("temperature %dK out of range [%d, %d]", kelvin, MinTemperature, MaxTemperature)
	}
	return nil
}

// Ramp is a gamma ramp: Samples ordered RGB triples with channels in [0,1],
// monotonically non-decreasing per channel.
type Ramp [Samples]RGB

// Synthesize builds a gamma ramp from the spec and color temperature. The
// white point comes from the black-body model; each channel is then shaped by
// step^(1/gamma) over 256 evenly spaced steps spanning [0,1] inclusive.
// Deterministic for fixed inputs; fails without producing a partial ramp.
func Synthesize(spec Spec, kelvin int) (Ramp, error) {
	var ramp Ramp

	if err := spec.Validate(); err != nil {
		return ramp, err
	}
	if err := ValidateTemperature(kelvin); err != nil {
		return ramp, err
	}

	white := Blackbody(kelvin)
	factorR := 1.0 / spec.R
	factorG := 1.0 / spec.G
	factorB := 1.0 / spec.B

	for i := 0; i < Samples; i++ {
		step := float64(i) / float64(Samples-1)
		ramp[i] = RGB{
			R: clamp(white.R*math.Pow(step, factorR), 0, 1),
			G: clamp(white.G*math.Pow(step, factorG), 0, 1),
			B: clamp(white.B*math.Pow(step, factorB), 0, 1),
		}
	}

	return ramp, nil
}
