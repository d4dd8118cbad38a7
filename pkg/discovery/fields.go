package discovery

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeFields heuristically decodes an arbitrary protobuf blob into one
// line per field, for diagnostic display of messages on unknown topics.
// Decoding stops at the first malformed byte and returns what it has; it
// never fails.
func DecodeFields(data []byte) []string {
	var fields []string
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			break
		}
		data = data[n:]

		var value string
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fields
			}
			data = data[n:]
			value = fmt.Sprintf("varint: %d", v)
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fields
			}
			data = data[n:]
			value = fmt.Sprintf("fixed64: %d", v)
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return fields
			}
			data = data[n:]
			value = fmt.Sprintf("fixed32: %d", v)
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fields
			}
			data = data[n:]
			if utf8.Valid(v) {
				value = fmt.Sprintf("string: %q", string(v))
			} else {
				value = fmt.Sprintf("bytes(%d): %s", len(v), hex.EncodeToString(v))
			}
		default:
			// groups are deprecated; stop rather than misparse
			return fields
		}

		fields = append(fields, fmt.Sprintf("field %d (%s): %s", num, wireTypeName(typ), value))
	}
	return fields
}

// FormatFields renders decoded fields as a single display block.
func FormatFields(fields []string) string {
	var b strings.Builder
	b.WriteString("decoded protobuf message {\n")
	for _, f := range fields {
		b.WriteString("  ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}

func wireTypeName(typ protowire.Type) string {
	switch typ {
	case protowire.VarintType:
		return "varint"
	case protowire.Fixed64Type:
		return "fixed64"
	case protowire.Fixed32Type:
		return "fixed32"
	case protowire.BytesType:
		return "length-delimited"
	default:
		return fmt.Sprintf("wiretype-%d", int(typ))
	}
}
