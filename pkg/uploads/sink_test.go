package uploads

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiny 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func dataURL(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir())
	require.NoError(t, err)
	return sink
}

func TestStoreValidImage(t *testing.T) {
	sink := newTestSink(t)

	res, err := sink.Store(dataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Name, ".png"))
	assert.Equal(t, "/uploads/"+res.Name, res.Path)
	assert.Equal(t, int64(len(pngBytes)), res.Size)

	written, err := os.ReadFile(filepath.Join(sink.Dir(), res.Name))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, written)
}

func TestStoreJpegGetsJpgExtension(t *testing.T) {
	sink := newTestSink(t)

	res, err := sink.Store(dataURL("image/jpeg", []byte{0xff, 0xd8, 0xff}))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Name, ".jpg"))
}

func TestStoreRejectsDisallowedType(t *testing.T) {
	sink := newTestSink(t)

	_, err := sink.Store(dataURL("image/svg+xml", []byte("<svg/>")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = sink.Store(dataURL("image/tiff", []byte{0x49, 0x49}))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestStoreRejectsMalformedPayload(t *testing.T) {
	sink := newTestSink(t)

	tests := []struct {
		name  string
		input string
	}{
		{"not a data URL", "hello"},
		{"missing base64 marker", "data:image/png,abc"},
		{"non-image mime", "data:text/plain;base64,aGk="},
		{"invalid base64", "data:image/png;base64,!!!not-base64!!!"},
		{"empty payload", "data:image/png;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sink.Store(tt.input)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestStoreRejectsOversizedPayload(t *testing.T) {
	sink := newTestSink(t)

	big := make([]byte, MaxDecodedSize+1)
	_, err := sink.Store(dataURL("image/png", big))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// Exactly at the ceiling is still accepted.
	exact := make([]byte, MaxDecodedSize)
	_, err = sink.Store(dataURL("image/png", exact))
	assert.NoError(t, err)
}

func TestStoreGeneratesFreshNames(t *testing.T) {
	sink := newTestSink(t)

	a, err := sink.Store(dataURL("image/png", pngBytes))
	require.NoError(t, err)
	b, err := sink.Store(dataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
}
