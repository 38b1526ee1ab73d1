package reporting

import (
	"bytes"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameParquet(t *testing.T) {
	frame := scoredFrame(t)

	var buf bytes.Buffer
	require.NoError(t, WriteFrameParquet(&buf, frame))

	f, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, int64(frame.Len()), f.NumRows())

	names := make(map[string]bool)
	for _, field := range f.Schema().Fields() {
		names[field.Name()] = true
	}
	assert.True(t, names["Date"])
	for _, name := range frame.Names() {
		assert.True(t, names[name], "missing parquet column %s", name)
	}
}

func TestParquetSchema_Optional(t *testing.T) {
	schema := ParquetSchema(scoredFrame(t))
	for _, field := range schema.Fields() {
		if field.Name() == "Date" {
			assert.False(t, field.Optional())
			continue
		}
		assert.True(t, field.Optional(), "%s should be optional", field.Name())
	}
}
