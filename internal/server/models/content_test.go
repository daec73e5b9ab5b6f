package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeContent_TypedDefaults(t *testing.T) {
	c, err := DecodeContent(SignatureTyped, json.RawMessage(`{"text":"Jane Doe"}`))
	require.NoError(t, err)

	assert.Equal(t, &TypedContent{Text: "Jane Doe", Font: DefaultFont, FontSize: 18, Color: "#000000"}, c)
}

func TestDecodeContent_Typed(t *testing.T) {
	c, err := DecodeContent(SignatureTyped, json.RawMessage(`{"text":"Jane Doe","font":"TimesRomanItalic","fontSize":24,"color":"#F00"}`))
	require.NoError(t, err)

	tc := c.(*TypedContent)
	assert.Equal(t, "Times-Italic", tc.Font)
	assert.Equal(t, 24.0, tc.FontSize)
	assert.Equal(t, "#ff0000", tc.Color)

	r, g, b := tc.RGB()
	assert.Equal(t, [3]float64{1, 0, 0}, [3]float64{r, g, b})
}

func TestDecodeContent_TypedEmptyTextAllowed(t *testing.T) {
	c, err := DecodeContent(SignatureTyped, json.RawMessage(`{"text":"   "}`))
	require.NoError(t, err)
	assert.Equal(t, "   ", c.(*TypedContent).Text)
}

func TestDecodeContent_TypedInvalid(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not an object", `"Jane"`, "content"},
		{"null", `null`, "content"},
		{"unknown font", `{"text":"a","font":"Comic Sans"}`, "content.font"},
		{"size too small", `{"text":"a","fontSize":1}`, "content.fontSize"},
		{"size too large", `{"text":"a","fontSize":500}`, "content.fontSize"},
		{"bad color", `{"text":"a","color":"red"}`, "content.color"},
		{"bad hex color", `{"text":"a","color":"#12345g"}`, "content.color"},
		{"too long", `{"text":"` + strings.Repeat("x", MaxTextLength+1) + `"}`, "content.text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeContent(SignatureTyped, json.RawMessage(tt.raw))
			require.ErrorIs(t, err, common.ErrorValidation)

			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestStandardFont(t *testing.T) {
	for in, want := range map[string]string{
		"Helvetica-Bold":  "Helvetica-Bold",
		"HelveticaBold":   "Helvetica-Bold",
		"helvetica bold":  "Helvetica-Bold",
		"Courier":         "Courier",
		"monospace":       "Courier",
		"ZapfDingbats":    "ZapfDingbats",
		"TimesRomanBold":  "Times-Bold",
		"Times New Roman": "Times-Roman",
	} {
		got, ok := StandardFont(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := StandardFont("Dancing Script")
	assert.False(t, ok)
}

func TestDecodeContent_Image(t *testing.T) {
	data := pngBytes(t)
	encoded := base64.StdEncoding.EncodeToString(data)

	for name, raw := range map[string]string{
		"data url": `{"image":"data:image/png;base64,` + encoded + `","width":0.3}`,
		"bare":     `{"image":"` + encoded + `","width":0.3}`,
		"unpadded": `{"image":"` + strings.TrimRight(encoded, "=") + `","width":0.3}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, err := DecodeContent(SignatureDrawn, json.RawMessage(raw))
			require.NoError(t, err)

			ic := c.(*ImageContent)
			assert.Equal(t, data, ic.Data)
			assert.Equal(t, "image/png", ic.MimeType)
			assert.Equal(t, 0.3, ic.Width)
		})
	}
}

func TestDecodeContent_ImageDefaultWidth(t *testing.T) {
	raw := `{"image":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	c, err := DecodeContent(SignatureImage, json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultImageWidth, c.(*ImageContent).Width)
}

func TestDecodeContent_ImageInvalid(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes(t))
	tests := map[string]string{
		"missing image":  `{"width":0.5}`,
		"not base64":     `{"image":"!!!"}`,
		"not an image":   `{"image":"` + base64.StdEncoding.EncodeToString([]byte("hello world")) + `"}`,
		"mime mismatch":  `{"image":"data:image/jpeg;base64,` + encoded + `"}`,
		"not base64 url": `{"image":"data:image/png,abc"}`,
		"zero width":     `{"image":"` + encoded + `","width":0}`,
		"wide":           `{"image":"` + encoded + `","width":1.5}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeContent(SignatureImage, json.RawMessage(raw))
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestDecodeContent_UnknownType(t *testing.T) {
	_, err := DecodeContent(SignatureType("Stamp"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestEncodeContent_RoundTrip(t *testing.T) {
	typed := &TypedContent{Text: "Jane", Font: "Courier", FontSize: 12, Color: "#00ff00"}
	raw, err := EncodeContent(typed)
	require.NoError(t, err)
	back, err := DecodeContent(SignatureTyped, raw)
	require.NoError(t, err)
	assert.Equal(t, typed, back)

	img := &ImageContent{Data: pngBytes(t), MimeType: "image/png", Width: 0.25}
	raw, err = EncodeContent(img)
	require.NoError(t, err)
	back, err = DecodeContent(SignatureImage, raw)
	require.NoError(t, err)
	assert.Equal(t, img, back)

	_, err = EncodeContent(nil)
	assert.Error(t, err)
}

func TestParseSignatureType(t *testing.T) {
	got, ok := ParseSignatureType("typed")
	assert.True(t, ok)
	assert.Equal(t, SignatureTyped, got)

	_, ok = ParseSignatureType("stamp")
	assert.False(t, ok)
}
