package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

const (
	DefaultFont     = "Helvetica-Bold"
	DefaultFontSize = 18.0
	DefaultColor    = "#000000"
	MinFontSize     = 4.0
	MaxFontSize     = 144.0
	MaxTextLength   = 500

	// DefaultImageWidth is a fraction of the displayed page width.
	DefaultImageWidth = 0.2
	MaxImageBytes     = 5 << 20
)

// Content is the type-specific payload of a signature: *TypedContent for
// Typed signatures, *ImageContent for Drawn and Image ones.
type Content interface {
	isContent()
}

// TypedContent is text drawn with one of the standard PDF fonts.
type TypedContent struct {
	Text     string  `json:"text"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize"`
	// Color is normalized to lowercase #rrggbb.
	Color string `json:"color"`
}

func (*TypedContent) isContent() {}

// RGB returns the color components in [0,1].
func (c *TypedContent) RGB() (r, g, b float64) {
	v, err := strconv.ParseUint(strings.TrimPrefix(c.Color, "#"), 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return float64(v>>16&0xff) / 255, float64(v>>8&0xff) / 255, float64(v&0xff) / 255
}

// ImageContent holds decoded image bytes. Width is the displayed width as a
// fraction of the page width; the height follows the image aspect ratio.
type ImageContent struct {
	Data     []byte
	MimeType string
	Width    float64
}

func (*ImageContent) isContent() {}

// DataURL renders the image as a data: URL.
func (c *ImageContent) DataURL() string {
	return "data:" + c.MimeType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

type imageJSON struct {
	Image string  `json:"image"`
	Width float64 `json:"width,omitempty"`
}

func (c *ImageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageJSON{Image: c.DataURL(), Width: c.Width})
}

// standardFonts maps accepted spellings to the base font names of the 14
// standard Type 1 fonts.
var standardFonts = map[string]string{}

func init() {
	base := []string{
		"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
		"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
		"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
		"Symbol", "ZapfDingbats",
	}
	for _, name := range base {
		standardFonts[fontKey(name)] = name
	}
	aliases := map[string]string{
		"TimesRoman":           "Times-Roman",
		"TimesRomanBold":       "Times-Bold",
		"TimesRomanItalic":     "Times-Italic",
		"TimesRomanBoldItalic": "Times-BoldItalic",
		"Times New Roman":      "Times-Roman",
		"serif":                "Times-Roman",
		"Arial":                "Helvetica",
		"sans-serif":           "Helvetica",
		"Courier New":          "Courier",
		"monospace":            "Courier",
	}
	for alias, name := range aliases {
		standardFonts[fontKey(alias)] = name
	}
}

func fontKey(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("-", "", " ", "", "_", "").Replace(s)
}

// StandardFont resolves a font name or alias. HelveticaBold, helvetica-bold
// and "Helvetica Bold" all resolve to Helvetica-Bold.
func StandardFont(name string) (string, bool) {
	base, ok := standardFonts[fontKey(name)]
	return base, ok
}

// DecodeContent validates raw JSON content for a signature of type t.
func DecodeContent(t SignatureType, raw json.RawMessage) (Content, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, common.NewValidationError("content", "is required")
	}

	switch t {
	case SignatureTyped:
		return decodeTyped(raw)
	case SignatureDrawn, SignatureImage:
		return decodeImage(raw)
	default:
		return nil, common.NewValidationError("type", fmt.Sprintf("unknown signature type %q", t))
	}
}

func decodeTyped(raw json.RawMessage) (*TypedContent, error) {
	var in struct {
		Text     string   `json:"text"`
		Font     string   `json:"font"`
		FontSize *float64 `json:"fontSize"`
		Color    string   `json:"color"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, common.NewValidationError("content", "must be an object with a text field")
	}

	c := &TypedContent{Text: in.Text, Font: DefaultFont, FontSize: DefaultFontSize, Color: DefaultColor}

	if utf8.RuneCountInString(in.Text) > MaxTextLength {
		return nil, common.NewValidationError("content.text", fmt.Sprintf("must be at most %d characters", MaxTextLength))
	}

	if in.Font != "" {
		base, ok := StandardFont(in.Font)
		if !ok {
			return nil, common.NewValidationError("content.font", fmt.Sprintf("unsupported font %q", in.Font))
		}
		c.Font = base
	}

	if in.FontSize != nil {
		if *in.FontSize < MinFontSize || *in.FontSize > MaxFontSize {
			return nil, common.NewValidationError("content.fontSize",
				fmt.Sprintf("must be between %g and %g", MinFontSize, MaxFontSize))
		}
		c.FontSize = *in.FontSize
	}

	if in.Color != "" {
		color, ok := normalizeColor(in.Color)
		if !ok {
			return nil, common.NewValidationError("content.color", "must be #rgb or #rrggbb")
		}
		c.Color = color
	}

	return c, nil
}

func normalizeColor(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "#") {
		return "", false
	}
	hex := s[1:]
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", false
		}
	}
	switch len(hex) {
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), true
	case 6:
		return s, true
	default:
		return "", false
	}
}

var imageTypes = map[string]bool{"image/png": true, "image/jpeg": true, "image/gif": true}

func decodeImage(raw json.RawMessage) (*ImageContent, error) {
	var in struct {
		Image string   `json:"image"`
		Width *float64 `json:"width"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, common.NewValidationError("content", "must be an object with an image field")
	}
	if in.Image == "" {
		return nil, common.NewValidationError("content.image", "is required")
	}

	payload := in.Image
	declared := ""
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, common.NewValidationError("content.image", "data URL must be base64 encoded")
		}
		declared = strings.TrimSuffix(meta, ";base64")
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimSpace(payload)); err != nil {
			return nil, common.NewValidationError("content.image", "is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, common.NewValidationError("content.image", "is empty")
	}
	if len(data) > MaxImageBytes {
		return nil, common.NewValidationError("content.image", "is too large")
	}

	sniffed := http.DetectContentType(data)
	if !imageTypes[sniffed] {
		return nil, common.NewValidationError("content.image", "must be a PNG, JPEG or GIF image")
	}
	if declared != "" && declared != sniffed {
		return nil, common.NewValidationError("content.image", fmt.Sprintf("declared %s but contains %s", declared, sniffed))
	}

	c := &ImageContent{Data: data, MimeType: sniffed, Width: DefaultImageWidth}
	if in.Width != nil {
		if *in.Width <= 0 || *in.Width > 1 {
			return nil, common.NewValidationError("content.width", "must be in (0, 1]")
		}
		c.Width = *in.Width
	}
	return c, nil
}

// EncodeContent is the inverse of DecodeContent.
func EncodeContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil content")
	}
	return json.Marshal(c)
}
