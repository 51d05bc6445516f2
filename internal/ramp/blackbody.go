package ramp

import "math"

// RGB is a color with channels in [0.0, 1.0].
type RGB struct {
	R, G, B float64
}

// MinTemperature and MaxTemperature bound the Kelvin range over which the
// black-body approximation is reliable.
const (
	MinTemperature = 1000
	MaxTemperature = 40000
)

// Blackbody returns the reference white point for a color temperature on the
// Planckian locus, using Tanner Helland's curve-fit approximation.
// 6500K is close to neutral white; lower temperatures shift toward orange,
// higher toward blue. Channels are normalized to [0,1].
func Blackbody(kelvin int) RGB {
	temp := float64(kelvin) / 100.0

	var r, g, b float64

	if temp <= 66 {
		r = 255
	} else {
		r = 329.698727446 * math.Pow(temp-60, -0.1332047592)
	}

	if temp <= 66 {
		g = 99.4708025861*math.Log(temp) - 161.1195681661
	} else {
		g = 288.1221695283 * math.Pow(temp-60, -0.0755148492)
	}

	if temp >= 66 {
		b = 255
	} else if temp <= 19 {
		b = 0
	} else {
		b = 138.5177312231*math.Log(temp-10) - 305.0447927307
	}

	return RGB{
		R: clamp(r/255.0, 0, 1),
		G: clamp(g/255.0, 0, 1),
		B: clamp(b/255.0, 0, 1),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
