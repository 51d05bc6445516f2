// Package profile defines the canonical naming convention for tool-owned color
// profiles and the encoding/decoding between profile names and the gamma and
// temperature parameters they carry.
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Prefix marks a profile as created by this tool. A profile whose basename
// does not start with it belongs to the user or a vendor and is never touched.
const Prefix = "gamma-tool-"

// Extension is the file extension of persisted profiles.
const Extension = ".icc"

// Ownership classifies a profile name relative to this tool's naming scheme.
type Ownership int

const (
	// NotOwned means the name lacks the canonical prefix.
	NotOwned Ownership = iota
	// Unparseable means the name carries the prefix but its fixed fields do
	// not decode. Callers report this distinctly so corruption is visible.
	Unparseable
	// Owned means the name decoded cleanly.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case NotOwned:
		return "not-owned"
	case Unparseable:
		return "unparseable"
	case Owned:
		return "owned"
	default:
		return fmt.Sprintf("ownership(%d)", int(o))
	}
}

// Identity holds the parameters encoded in a canonical profile name. Gamma is
// stored as integer percentages (gamma x 100, rounded), which limits the
// round-trip to two decimal digits of precision.
type Identity struct {
	GammaPct    [3]int
	Temperature int
	Token       string
}

// Gamma returns the channel exponents recovered from the stored percentages.
func (id Identity) Gamma() (r, g, b float64) {
	return float64(id.GammaPct[0]) / 100.0,
		float64(id.GammaPct[1]) / 100.0,
		float64(id.GammaPct[2]) / 100.0
}

// NewToken returns a fresh random token for filesystem uniqueness. The token
// is never decoded.
func NewToken() string {
	return uuid.NewString()
}

// Encode builds the canonical profile basename:
//
//	gamma-tool-g<RRR><GGG><BBB>t<KELVIN>-<token>.icc
//
// with each gamma percentage zero-padded to three digits. Percentages outside
// [0, 999] cannot be represented and are a caller error.
func Encode(id Identity) (string, error) {
	for _, p := range id.GammaPct {
		if p < 0 || p > 999 {
			return "", fmt.Errorf("gamma percentage %d out of encodable range [0, 999]", p)
		}
	}
	if id.Token == "" {
		return "", fmt.Errorf("profile identity requires a token")
	}
	return fmt.Sprintf("%sg%03d%03d%03dt%d-%s%s",
		Prefix, id.GammaPct[0], id.GammaPct[1], id.GammaPct[2], id.Temperature, id.Token, Extension), nil
}

// Decode parses a profile basename against the canonical scheme. The fixed
// fields are parsed positionally; trailing bytes after the temperature field's
// separator are ignored, matching the encoder's layout without guessing a
// stricter grammar. The token is not recovered.
func Decode(basename string) (Identity, Ownership) {
	if !strings.HasPrefix(basename, Prefix) {
		return Identity{}, NotOwned
	}

	rest := basename[len(Prefix):]
	// Layout: g<3 digits><3 digits><3 digits>t<digits>-...
	if len(rest) < 1+9+1 || rest[0] != 'g' {
		return Identity{}, Unparseable
	}
	rest = rest[1:]

	var pct [3]int
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(rest[i*3 : i*3+3])
		if err != nil || v < 0 {
			return Identity{}, Unparseable
		}
		pct[i] = v
	}
	rest = rest[9:]

	if len(rest) == 0 || rest[0] != 't' {
		return Identity{}, Unparseable
	}
	rest = rest[1:]

	end := strings.IndexByte(rest, '-')
	if end < 0 {
		end = len(rest)
	}
	temp, err := strconv.Atoi(rest[:end])
	if err != nil || temp < 0 {
		return Identity{}, Unparseable
	}

	return Identity{GammaPct: pct, Temperature: temp}, Owned
}
