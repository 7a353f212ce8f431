package fcgiwire

import (
	"encoding/binary"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// UTF8 is the default VariableEncoding.
var UTF8 encoding.Encoding = unicode.UTF8

// Pair is one decoded name-value pair from a Params or GetValues
// record's content.
type Pair struct {
	Name  string
	Value string
}

// EncodeNVPairs serializes pairs using the 1-byte length form for
// lengths under 128 and the 4-byte high-bit-set form otherwise. This
// is symmetric with DecodeNVPairs: encoding what was just decoded
// reproduces the same pair sequence.
func EncodeNVPairs(pairs []Pair) []byte {
	size := 0
	for _, p := range pairs {
		size += lenFieldSize(len(p.Name)) + lenFieldSize(len(p.Value)) + len(p.Name) + len(p.Value)
	}
	buf := make([]byte, 0, size)
	var lb [4]byte
	for _, p := range pairs {
		buf = append(buf, encodeLen(lb[:], len(p.Name))...)
		buf = append(buf, encodeLen(lb[:], len(p.Value))...)
		buf = append(buf, p.Name...)
		buf = append(buf, p.Value...)
	}
	return buf
}

func lenFieldSize(n int) int {
	if n > 127 {
		return 4
	}
	return 1
}

// encodeLen returns the encoded length field, using scratch b (which
// must be at least 4 bytes) as backing storage for the 4-byte form.
func encodeLen(b []byte, n int) []byte {
	if n > 127 {
		binary.BigEndian.PutUint32(b, uint32(n)|(1<<31))
		return b[:4]
	}
	return []byte{byte(n)}
}

// DecodeNVPairs decodes as many well-formed (len_name, len_value,
// name, value) tuples as fit in buf, tolerating a truncated trailing
// entry by silently dropping it: upstream servers occasionally split
// Params content mid-pair, and the empty terminating Params record is
// the real end-of-stream marker, not this decoder.
// Name and value bytes are decoded through enc, defaulting to UTF-8
// when enc is nil.
func DecodeNVPairs(buf []byte, enc encoding.Encoding) []Pair {
	if enc == nil {
		enc = UTF8
	}
	var pairs []Pair
	i := 0
	for i < len(buf) {
		nameLen, next, ok := decodeLen(buf, i)
		if !ok {
			break
		}
		i = next

		valueLen, next, ok := decodeLen(buf, i)
		if !ok {
			break
		}
		i = next

		if i+nameLen+valueLen > len(buf) {
			break
		}
		nameBytes := buf[i : i+nameLen]
		i += nameLen
		valueBytes := buf[i : i+valueLen]
		i += valueLen

		name, err := enc.NewDecoder().Bytes(nameBytes)
		if err != nil {
			name = nameBytes
		}
		value, err := enc.NewDecoder().Bytes(valueBytes)
		if err != nil {
			value = valueBytes
		}
		pairs = append(pairs, Pair{Name: string(name), Value: string(value)})
	}
	return pairs
}

// decodeLen reads one length field (1 or 4 bytes) starting at i,
// returning the decoded length, the index past the field, and
// whether a complete field was available.
func decodeLen(buf []byte, i int) (n int, next int, ok bool) {
	if i >= len(buf) {
		return 0, i, false
	}
	if buf[i]>>7 == 0 {
		return int(buf[i]), i + 1, true
	}
	if i+4 > len(buf) {
		return 0, i, false
	}
	v := binary.BigEndian.Uint32(buf[i : i+4])
	v &^= 1 << 31
	return int(v), i + 4, true
}
