package web

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedImageMIME(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantMIME     string
		wantDetected bool
	}{
		{
			name:         "JPEG",
			data:         []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
			wantMIME:     "image/jpeg",
			wantDetected: true,
		},
		{
			name:         "PNG",
			data:         []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			wantMIME:     "image/png",
			wantDetected: true,
		},
		{
			name:         "GIF",
			data:         []byte("GIF89a"),
			wantMIME:     "image/gif",
			wantDetected: true,
		},
		{
			name:         "WebP",
			data:         append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 10)...),
			wantMIME:     "image/webp",
			wantDetected: true,
		},
		{
			name:         "RIFF but not WebP",
			data:         append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "PDF disguised as image",
			data:         []byte("%PDF-1.4 malicious content"),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "empty",
			data:         []byte{},
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "too short for WebP check",
			data:         []byte("RIFF"),
			wantMIME:     "",
			wantDetected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMIME, gotDetected := allowedImageMIME(tt.data)
			if gotDetected != tt.wantDetected {
				t.Errorf("allowedImageMIME() detected = %v, want %v", gotDetected, tt.wantDetected)
			}
			if gotMIME != tt.wantMIME {
				t.Errorf("allowedImageMIME() mimeType = %q, want %q", gotMIME, tt.wantMIME)
			}
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	got, err := decodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, jpeg, got)

	for _, bad := range []string{
		"",
		"botol plastik",
		"data:image/jpeg,rawbytes",
		"data:image/jpeg;base64",
		"data:image/jpeg;base64,!!!",
	} {
		_, err := decodeDataURL(bad)
		assert.ErrorIs(t, err, errInvalidDataURL, "input %q", bad)
	}
}

func TestCheckImage(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	mimeType, err := checkImage(jpeg)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	tooBig := make([]byte, maxPhotoSize+1)
	copy(tooBig, jpeg)
	_, err = checkImage(tooBig)
	var reqErr *requestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 413, reqErr.status)

	_, err = checkImage(nil)
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 400, reqErr.status)

	_, err = checkImage([]byte("%PDF-1.4"))
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, msgImageUnsupported, reqErr.msg)
}

func TestCheckText(t *testing.T) {
	got, err := checkText("  kulit pisang  ")
	require.NoError(t, err)
	assert.Equal(t, "kulit pisang", got)

	_, err = checkText("   ")
	assert.Error(t, err)

	long := make([]rune, maxTextLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = checkText(string(long))
	assert.Error(t, err)
}
