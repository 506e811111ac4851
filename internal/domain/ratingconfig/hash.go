package ratingconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
)

// Hash lengths.
const (
	FullHashLength         = sha256.Size * 2
	DefaultShortHashLength = 8
	MinShortHashLength     = 8
	MaxShortHashLength     = 12
)

// Encode renders v canonically: keys sorted at every level, no insignificant
// whitespace, numbers in their shortest round-trip form. Non-finite numbers
// and values without a JSON form encode as null.
func Encode(v any) []byte {
	var buf bytes.Buffer
	encodeValue(&buf, Canonicalize(v))
	return buf.Bytes()
}

func encodeValue(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case Object:
		buf.WriteByte('{')
		for i, m := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, m.Key)
			buf.WriteByte(':')
			encodeValue(buf, m.Value)
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeValue(buf, e)
		}
		buf.WriteByte(']')
	case string:
		encodeString(buf, t)
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			buf.WriteString("null")
			return
		}
		encodeFloat(buf, f)
	case float64:
		encodeFloat(buf, t)
	case float32:
		encodeFloat(buf, float64(t))
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			buf.WriteString("null")
			return
		}
		buf.Write(raw)
	}
}

func encodeFloat(buf *bytes.Buffer, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString("null")
		return
	}
	raw, _ := json.Marshal(f)
	buf.Write(raw)
}

func encodeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
}

// Hash returns the lowercase hex SHA-256 of the canonical configuration.
func Hash(cfg Configuration) string {
	return Digest(cfg.Document())
}

// HashDocument parses a stored JSON document and hashes the configuration it
// describes, so every spelling of the same configuration (key order, empty
// versus null dates, omitted zero beta/tau, 25 versus 25.0) hashes like Hash.
func HashDocument(raw []byte) (string, error) {
	cfg, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return Hash(cfg), nil
}

// Digest hashes the canonical encoding of any JSON-like value.
func Digest(v any) string {
	sum := sha256.Sum256(Encode(v))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first n characters of a full hash. n <= 0 selects
// DefaultShortHashLength.
func ShortHash(full string, n int) string {
	if n <= 0 {
		n = DefaultShortHashLength
	}
	if n > len(full) {
		n = len(full)
	}
	return full[:n]
}

// IsValidHashFormat reports whether s is syntactically a full hash or an
// accepted short hash. It does not prove the hash is known.
func IsValidHashFormat(s string) bool {
	n := len(s)
	if n != FullHashLength && (n < MinShortHashLength || n > MaxShortHashLength) {
		return false
	}
	for i := 0; i < n; i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

// IsFullHash reports whether s has the length of a full hash and is hex.
func IsFullHash(s string) bool {
	return len(s) == FullHashLength && IsValidHashFormat(s)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
