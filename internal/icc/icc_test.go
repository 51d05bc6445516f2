package icc

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/dokzlo13/gammatool/internal/ramp"
)

// buildProfile assembles a minimal valid profile: header with acsp magic and
// the given major version, plus one opaque wtpt tag.
func buildProfile(version byte) []byte {
	const tagCount = 1
	wtpt := make([]byte, 20)
	binary.BigEndian.PutUint32(wtpt[0:4], 0x58595a20) // "XYZ "

	tableSize := 4 + tagCount*12
	dataOff := 128 + tableSize
	total := dataOff + len(wtpt)

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	buf[8] = version
	binary.BigEndian.PutUint32(buf[36:40], 0x61637370) // acsp

	binary.BigEndian.PutUint32(buf[128:132], tagCount)
	binary.BigEndian.PutUint32(buf[132:136], 0x77747074) // wtpt
	binary.BigEndian.PutUint32(buf[136:140], uint32(dataOff))
	binary.BigEndian.PutUint32(buf[140:144], uint32(len(wtpt)))
	copy(buf[dataOff:], wtpt)
	return buf
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Error("Parse(nil) succeeded")
	}
	if _, err := Parse(make([]byte, 50)); err == nil {
		t.Error("Parse(short) succeeded")
	}
	junk := make([]byte, 200)
	if _, err := Parse(junk); err == nil {
		t.Error("Parse without acsp magic succeeded")
	}
}

func TestParseEncodeRoundTrip(t *testing.T) {
	doc, err := Parse(buildProfile(2))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(doc.Tags()) != 1 {
		t.Fatalf("tag count = %d, want 1", len(doc.Tags()))
	}

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	if len(reparsed.Tags()) != 1 || reparsed.Tags()[0].Signature != doc.Tags()[0].Signature {
		t.Error("tag table not preserved across encode/parse")
	}
	if !bytes.Equal(reparsed.Tags()[0].Data, doc.Tags()[0].Data) {
		t.Error("tag payload not preserved across encode/parse")
	}
	if got := binary.BigEndian.Uint32(out[0:4]); int(got) != len(out) {
		t.Errorf("header size field = %d, want %d", got, len(out))
	}
}

func TestSetDescription(t *testing.T) {
	for _, version := range []byte{2, 4} {
		doc, err := Parse(buildProfile(version))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		doc.SetDescription("gamma-tool: g=0.80:1.00:1.20 t=5500")

		out, err := doc.Encode()
		if err != nil {
			t.Fatalf("Encode error: %v", err)
		}
		reparsed, err := Parse(out)
		if err != nil {
			t.Fatalf("reparse error: %v", err)
		}
		if got := reparsed.Description(); got != "gamma-tool: g=0.80:1.00:1.20 t=5500" {
			t.Errorf("v%d Description() = %q", version, got)
		}
	}
}

func TestSetDescriptionReplacesExisting(t *testing.T) {
	doc, err := Parse(buildProfile(2))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	doc.SetDescription("first")
	doc.SetDescription("second")
	if got := doc.Description(); got != "second" {
		t.Errorf("Description() = %q, want %q", got, "second")
	}
	if len(doc.Tags()) != 2 { // wtpt + desc
		t.Errorf("tag count = %d, want 2", len(doc.Tags()))
	}
}

func TestSetMetadata(t *testing.T) {
	doc, err := Parse(buildProfile(4))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := doc.SetMetadata("uuid", "abc-123"); err != nil {
		t.Fatalf("SetMetadata error: %v", err)
	}
	if err := doc.SetMetadata("origin", "gammatool"); err != nil {
		t.Fatalf("SetMetadata error: %v", err)
	}
	if err := doc.SetMetadata("uuid", "def-456"); err != nil {
		t.Fatalf("SetMetadata upsert error: %v", err)
	}

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	meta, err := reparsed.Metadata()
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}
	if meta["uuid"] != "def-456" || meta["origin"] != "gammatool" {
		t.Errorf("metadata = %v", meta)
	}
	if len(meta) != 2 {
		t.Errorf("metadata has %d entries, want 2", len(meta))
	}
}

func TestSetVCGTRoundTrip(t *testing.T) {
	r, err := ramp.Synthesize(ramp.Spec{R: 0.8, G: 1.0, B: 1.2}, 5500)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	doc, err := Parse(buildProfile(2))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	doc.SetVCGT(r)

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	got, err := reparsed.VCGT()
	if err != nil {
		t.Fatalf("VCGT error: %v", err)
	}

	// uint16 quantization bounds the error to half a step.
	const tol = 0.5 / 65535.0
	for i := 0; i < ramp.Samples; i++ {
		if math.Abs(got[i].R-r[i].R) > tol ||
			math.Abs(got[i].G-r[i].G) > tol ||
			math.Abs(got[i].B-r[i].B) > tol {
			t.Fatalf("vcgt sample %d = %v, want %v", i, got[i], r[i])
		}
	}
}

func TestVCGTAbsent(t *testing.T) {
	doc, err := Parse(buildProfile(2))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, err := doc.VCGT(); err == nil {
		t.Error("VCGT() on profile without vcgt tag succeeded")
	}
}

func TestEncodeClearsProfileID(t *testing.T) {
	raw := buildProfile(2)
	for i := 84; i < 100; i++ {
		raw[i] = 0xAA
	}
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	for i := 84; i < 100; i++ {
		if out[i] != 0 {
			t.Fatalf("profile ID byte %d = %#x, want 0", i, out[i])
		}
	}
}
