// Package icc provides tag-level editing of ICC profile files: loading an
// existing profile, replacing its description, metadata and VCGT tags, and
// serializing it back. It is deliberately not a CMS; tags it does not touch
// are carried through byte-for-byte.
package icc

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/dokzlo13/gammatool/internal/ramp"
)

const headerSize = 128

// Tag and type signatures, big-endian FourCCs.
const (
	sigAcsp = 0x61637370 // "acsp" header magic

	tagDesc = 0x64657363 // "desc"
	tagMeta = 0x6d657461 // "meta"
	tagVCGT = 0x76636774 // "vcgt"

	typeDesc = 0x64657363 // "desc" (textDescriptionType, v2)
	typeMluc = 0x6d6c7563 // "mluc" (multiLocalizedUnicodeType, v4)
	typeDict = 0x64696374 // "dict"
	typeVCGT = 0x76636774 // "vcgt"
)

// Tag is a single entry of the tag table with its raw payload.
type Tag struct {
	Signature uint32
	Data      []byte
}

// Document is a parsed ICC profile open for tag edits.
type Document struct {
	header [headerSize]byte
	tags   []Tag
}

// Parse reads an ICC profile's header and tag table. Unknown tags are kept
// verbatim so a later Encode preserves them.
func Parse(data []byte) (*Document, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("icc: data too short (%d bytes)", len(data))
	}
	if binary.BigEndian.Uint32(data[36:40]) != sigAcsp {
		return nil, fmt.Errorf("icc: missing acsp signature")
	}

	doc := &Document{}
	copy(doc.header[:], data[:headerSize])

	count := binary.BigEndian.Uint32(data[headerSize : headerSize+4])
	if count > 1024 {
		return nil, fmt.Errorf("icc: implausible tag count %d", count)
	}
	tableEnd := headerSize + 4 + int(count)*12
	if len(data) < tableEnd {
		return nil, fmt.Errorf("icc: truncated tag table")
	}

	for i := 0; i < int(count); i++ {
		entry := data[headerSize+4+i*12:]
		sig := binary.BigEndian.Uint32(entry[0:4])
		off := binary.BigEndian.Uint32(entry[4:8])
		size := binary.BigEndian.Uint32(entry[8:12])
		if int(off)+int(size) > len(data) || size < 8 {
			return nil, fmt.Errorf("icc: tag %08x has invalid extent (offset %d size %d)", sig, off, size)
		}
		payload := make([]byte, size)
		copy(payload, data[off:off+size])
		doc.tags = append(doc.tags, Tag{Signature: sig, Data: payload})
	}

	return doc, nil
}

// Version returns the profile's major version from the header.
func (d *Document) Version() int {
	return int(d.header[8])
}

// Tags returns the tag table in file order.
func (d *Document) Tags() []Tag {
	return d.tags
}

func (d *Document) setTag(sig uint32, data []byte) {
	for i := range d.tags {
		if d.tags[i].Signature == sig {
			d.tags[i].Data = data
			return
		}
	}
	d.tags = append(d.tags, Tag{Signature: sig, Data: data})
}

func (d *Document) tag(sig uint32) []byte {
	for i := range d.tags {
		if d.tags[i].Signature == sig {
			return d.tags[i].Data
		}
	}
	return nil
}

// SetDescription replaces the profile description. Version 4 profiles get an
// mluc tag with a single en-US record, earlier versions a textDescriptionType.
func (d *Document) SetDescription(text string) {
	if d.Version() >= 4 {
		d.setTag(tagDesc, encodeMluc(text))
	} else {
		d.setTag(tagDesc, encodeTextDescription(text))
	}
}

// Description returns the profile description, or "" if absent or unreadable.
func (d *Document) Description() string {
	data := d.tag(tagDesc)
	if len(data) < 8 {
		return ""
	}
	switch binary.BigEndian.Uint32(data[0:4]) {
	case typeDesc:
		return decodeTextDescription(data)
	case typeMluc:
		return decodeMluc(data)
	}
	return ""
}

// SetMetadata upserts a key/value pair into the profile's dict metadata tag,
// preserving existing entries.
func (d *Document) SetMetadata(key, value string) error {
	entries, err := decodeDict(d.tag(tagMeta))
	if err != nil {
		return fmt.Errorf("icc: existing metadata unreadable: %w", err)
	}
	replaced := false
	for i := range entries {
		if entries[i][0] == key {
			entries[i][1] = value
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, [2]string{key, value})
	}
	d.setTag(tagMeta, encodeDict(entries))
	return nil
}

// Metadata returns the dict metadata entries in tag order.
func (d *Document) Metadata() (map[string]string, error) {
	entries, err := decodeDict(d.tag(tagMeta))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e[0]] = e[1]
	}
	return out, nil
}

// SetVCGT replaces the video card gamma table with the given ramp, stored as a
// table-format vcgt tag: 3 channels of 256 big-endian uint16 entries.
func (d *Document) SetVCGT(r ramp.Ramp) {
	buf := make([]byte, 12+6+3*ramp.Samples*2)
	binary.BigEndian.PutUint32(buf[0:4], typeVCGT)
	// bytes 4:8 reserved, 8:12 gamma type 0 = table
	binary.BigEndian.PutUint16(buf[12:14], 3)
	binary.BigEndian.PutUint16(buf[14:16], ramp.Samples)
	binary.BigEndian.PutUint16(buf[16:18], 2)

	data := buf[18:]
	for ch := 0; ch < 3; ch++ {
		for i := 0; i < ramp.Samples; i++ {
			var v float64
			switch ch {
			case 0:
				v = r[i].R
			case 1:
				v = r[i].G
			default:
				v = r[i].B
			}
			binary.BigEndian.PutUint16(data[(ch*ramp.Samples+i)*2:], uint16(math.Round(v*65535)))
		}
	}

	d.setTag(tagVCGT, buf)
}

// VCGT decodes a table-format vcgt tag back into a ramp. Returns an error for
// missing, non-table or differently shaped tables.
func (d *Document) VCGT() (ramp.Ramp, error) {
	var r ramp.Ramp
	data := d.tag(tagVCGT)
	if data == nil {
		return r, fmt.Errorf("icc: no vcgt tag")
	}
	if len(data) < 18 || binary.BigEndian.Uint32(data[0:4]) != typeVCGT {
		return r, fmt.Errorf("icc: malformed vcgt tag")
	}
	if binary.BigEndian.Uint32(data[8:12]) != 0 {
		return r, fmt.Errorf("icc: vcgt tag is not table format")
	}
	channels := binary.BigEndian.Uint16(data[12:14])
	entries := binary.BigEndian.Uint16(data[14:16])
	size := binary.BigEndian.Uint16(data[16:18])
	if channels != 3 || entries != ramp.Samples || size != 2 {
		return r, fmt.Errorf("icc: unsupported vcgt shape %dx%dx%d", channels, entries, size)
	}
	if len(data) < 18+3*ramp.Samples*2 {
		return r, fmt.Errorf("icc: truncated vcgt table")
	}

	table := data[18:]
	for i := 0; i < ramp.Samples; i++ {
		r[i] = ramp.RGB{
			R: float64(binary.BigEndian.Uint16(table[(0*ramp.Samples+i)*2:])) / 65535.0,
			G: float64(binary.BigEndian.Uint16(table[(1*ramp.Samples+i)*2:])) / 65535.0,
			B: float64(binary.BigEndian.Uint16(table[(2*ramp.Samples+i)*2:])) / 65535.0,
		}
	}
	return r, nil
}

// Encode serializes the document: header, tag table, then tag payloads each
// aligned to a 4-byte boundary. The header size field is recomputed and the
// profile ID cleared (this tool does not compute the MD5 fingerprint).
func (d *Document) Encode() ([]byte, error) {
	tableSize := 4 + len(d.tags)*12
	offset := headerSize + tableSize
	total := offset
	offsets := make([]int, len(d.tags))
	for i, t := range d.tags {
		total = align4(total)
		offsets[i] = total
		total += len(t.Data)
	}
	total = align4(total)

	out := make([]byte, total)
	copy(out, d.header[:])
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	// Profile ID field (header bytes 84..100) would be the MD5 of the
	// modified profile; left zeroed, which the spec marks as "not computed".
	for i := 84; i < 100; i++ {
		out[i] = 0
	}

	binary.BigEndian.PutUint32(out[headerSize:], uint32(len(d.tags)))
	for i, t := range d.tags {
		entry := out[headerSize+4+i*12:]
		binary.BigEndian.PutUint32(entry[0:4], t.Signature)
		binary.BigEndian.PutUint32(entry[4:8], uint32(offsets[i]))
		binary.BigEndian.PutUint32(entry[8:12], uint32(len(t.Data)))
		copy(out[offsets[i]:], t.Data)
	}

	return out, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// encodeTextDescription builds a v2 textDescriptionType tag: ASCII string
// with terminating NUL, empty Unicode and ScriptCode blocks.
func encodeTextDescription(text string) []byte {
	ascii := []byte(text)
	buf := make([]byte, 8+4+len(ascii)+1+4+4+2+1+67)
	binary.BigEndian.PutUint32(buf[0:4], typeDesc)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(ascii)+1))
	copy(buf[12:], ascii)
	// Remaining bytes (unicode code+count, scriptcode, mac block) stay zero.
	return buf
}

func decodeTextDescription(data []byte) string {
	if len(data) < 12 {
		return ""
	}
	n := int(binary.BigEndian.Uint32(data[8:12]))
	if n <= 1 || 12+n > len(data) {
		return ""
	}
	return string(data[12 : 12+n-1])
}

// encodeMluc builds a v4 multiLocalizedUnicodeType tag with one en-US record.
func encodeMluc(text string) []byte {
	u := utf16.Encode([]rune(text))
	strBytes := len(u) * 2
	buf := make([]byte, 16+12+strBytes)
	binary.BigEndian.PutUint32(buf[0:4], typeMluc)
	binary.BigEndian.PutUint32(buf[8:12], 1)   // record count
	binary.BigEndian.PutUint32(buf[12:16], 12) // record size
	copy(buf[16:18], "en")
	copy(buf[18:20], "US")
	binary.BigEndian.PutUint32(buf[20:24], uint32(strBytes))
	binary.BigEndian.PutUint32(buf[24:28], 28)
	for i, c := range u {
		binary.BigEndian.PutUint16(buf[28+i*2:], c)
	}
	return buf
}

func decodeMluc(data []byte) string {
	if len(data) < 28 {
		return ""
	}
	count := binary.BigEndian.Uint32(data[8:12])
	if count == 0 {
		return ""
	}
	// First record only.
	size := int(binary.BigEndian.Uint32(data[20:24]))
	off := int(binary.BigEndian.Uint32(data[24:28]))
	if off+size > len(data) || size%2 != 0 {
		return ""
	}
	u := make([]uint16, size/2)
	for i := range u {
		u[i] = binary.BigEndian.Uint16(data[off+i*2:])
	}
	return string(utf16.Decode(u))
}

// decodeDict parses a dictType tag into ordered key/value pairs. A nil tag
// yields an empty list.
func decodeDict(data []byte) ([][2]string, error) {
	if data == nil {
		return nil, nil
	}
	if len(data) < 16 || binary.BigEndian.Uint32(data[0:4]) != typeDict {
		return nil, fmt.Errorf("not a dict tag")
	}
	count := int(binary.BigEndian.Uint32(data[8:12]))
	recSize := int(binary.BigEndian.Uint32(data[12:16]))
	if recSize < 16 || count < 0 || 16+count*recSize > len(data) {
		return nil, fmt.Errorf("malformed dict tag")
	}

	entries := make([][2]string, 0, count)
	for i := 0; i < count; i++ {
		rec := data[16+i*recSize:]
		name, err := dictString(data, rec[0:8])
		if err != nil {
			return nil, err
		}
		value, err := dictString(data, rec[8:16])
		if err != nil {
			return nil, err
		}
		entries = append(entries, [2]string{name, value})
	}
	return entries, nil
}

func dictString(data, ptr []byte) (string, error) {
	off := int(binary.BigEndian.Uint32(ptr[0:4]))
	size := int(binary.BigEndian.Uint32(ptr[4:8]))
	if size == 0 {
		return "", nil
	}
	if off+size > len(data) || size%2 != 0 {
		return "", fmt.Errorf("dict string out of bounds")
	}
	u := make([]uint16, size/2)
	for i := range u {
		u[i] = binary.BigEndian.Uint16(data[off+i*2:])
	}
	return string(utf16.Decode(u)), nil
}

// encodeDict serializes key/value pairs as a dictType tag with 16-byte
// records and UTF-16BE strings.
func encodeDict(entries [][2]string) []byte {
	strOff := 16 + len(entries)*16
	var strs [][]byte
	total := strOff
	for _, e := range entries {
		for _, s := range []string{e[0], e[1]} {
			u := utf16.Encode([]rune(s))
			b := make([]byte, len(u)*2)
			for i, c := range u {
				binary.BigEndian.PutUint16(b[i*2:], c)
			}
			strs = append(strs, b)
			total += len(b)
		}
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], typeDict)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(entries)))
	binary.BigEndian.PutUint32(buf[12:16], 16)

	off := strOff
	for i := range entries {
		rec := buf[16+i*16:]
		name := strs[i*2]
		value := strs[i*2+1]
		binary.BigEndian.PutUint32(rec[0:4], uint32(off))
		binary.BigEndian.PutUint32(rec[4:8], uint32(len(name)))
		copy(buf[off:], name)
		off += len(name)
		binary.BigEndian.PutUint32(rec[8:12], uint32(off))
		binary.BigEndian.PutUint32(rec[12:16], uint32(len(value)))
		copy(buf[off:], value)
		off += len(value)
	}

	return buf
}
