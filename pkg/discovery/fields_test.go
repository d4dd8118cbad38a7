package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeFields(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, 300)
	data = protowire.AppendTag(data, 2, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("hello"))
	data = protowire.AppendTag(data, 3, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte{0xFF, 0x00})
	data = protowire.AppendTag(data, 4, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 7)

	fields := DecodeFields(data)
	require.Len(t, fields, 4)
	require.Contains(t, fields[0], "varint: 300")
	require.Contains(t, fields[1], `string: "hello"`)
	require.Contains(t, fields[2], "bytes(2): ff00")
	require.Contains(t, fields[3], "fixed32: 7")
}

func TestDecodeFieldsStopsAtMalformed(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)
	// a bytes field cut off mid-payload
	data = protowire.AppendTag(data, 2, protowire.BytesType)
	data = protowire.AppendVarint(data, 50)

	fields := DecodeFields(data)
	require.Len(t, fields, 1)
}

func TestFormatFields(t *testing.T) {
	out := FormatFields([]string{"field 1 (varint): varint: 1"})
	require.Contains(t, out, "decoded protobuf message {")
	require.Contains(t, out, "field 1 (varint)")
}
