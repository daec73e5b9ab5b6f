package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var ErrUnsupportedFilter = errors.New("unsupported filter")

// resolver follows indirect references; nil means only direct objects.
type resolver func(Object) (Object, error)

func resolveWith(res resolver, o Object) Object {
	if res == nil {
		return o
	}
	v, err := res(o)
	if err != nil {
		return Null{}
	}
	return v
}

// decodeStream applies every filter listed on s in order.
func decodeStream(s *Stream, res resolver) ([]byte, error) {
	var filters []Name
	var params []Dict

	switch f := resolveWith(res, s.Dict["Filter"]).(type) {
	case Name:
		filters = []Name{f}
	case Array:
		for _, item := range f {
			if n, ok := resolveWith(res, item).(Name); ok {
				filters = append(filters, n)
			}
		}
	}

	switch dp := resolveWith(res, s.Dict["DecodeParms"]).(type) {
	case Dict:
		params = []Dict{dp}
	case Array:
		for _, item := range dp {
			d, _ := resolveWith(res, item).(Dict)
			params = append(params, d)
		}
	}

	data := s.Data
	for i, f := range filters {
		var p Dict
		if i < len(params) {
			p = params[i]
		}
		var err error
		data, err = applyFilter(f, data, p, res)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func applyFilter(f Name, data []byte, params Dict, res resolver) ([]byte, error) {
	switch f {
	case "FlateDecode", "Fl":
		out, err := inflate(data)
		if err != nil {
			return nil, err
		}
		return unpredict(out, params, res)
	case "ASCIIHexDecode", "AHx":
		return decodeASCIIHex(data)
	case "ASCII85Decode", "A85":
		return decodeASCII85(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f)
	}
}

// inflate tolerates truncated streams and returns what could be read.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("flate: %w", err)
	}
	return out, nil
}

// Deflate compresses data for a /FlateDecode stream.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func decodeASCIIHex(data []byte) ([]byte, error) {
	var digits []byte
	for _, c := range data {
		if c == '>' {
			break
		}
		if isWhite(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("asciihex: %w", err)
	}
	return out, nil
}

func decodeASCII85(data []byte) ([]byte, error) {
	var clean []byte
	for _, c := range data {
		if !isWhite(c) {
			clean = append(clean, c)
		}
	}
	clean = bytes.TrimPrefix(clean, []byte("<~"))
	if i := bytes.Index(clean, []byte("~>")); i >= 0 {
		clean = clean[:i]
	}
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(clean)))
	if err != nil {
		return nil, fmt.Errorf("ascii85: %w", err)
	}
	return out, nil
}

func paramInt(params Dict, key Name, def int, res resolver) int {
	if params == nil {
		return def
	}
	if v, ok := Int(resolveWith(res, params[key])); ok {
		return v
	}
	return def
}

// unpredict reverses PNG (10..15) and TIFF (2) predictors.
func unpredict(data []byte, params Dict, res resolver) ([]byte, error) {
	predictor := paramInt(params, "Predictor", 1, res)
	if predictor <= 1 {
		return data, nil
	}

	colors := paramInt(params, "Colors", 1, res)
	bpc := paramInt(params, "BitsPerComponent", 8, res)
	columns := paramInt(params, "Columns", 1, res)
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, errors.New("predictor: bad parameters")
	}

	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("%w: TIFF predictor with %d bits", ErrUnsupportedFilter, bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for pos := 0; pos < len(data); pos += rowLen + 1 {
		if pos+1 > len(data) {
			break
		}
		ft := data[pos]
		end := pos + 1 + rowLen
		if end > len(data) {
			end = len(data)
		}
		row := make([]byte, rowLen)
		copy(row, data[pos+1:end])

		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch ft {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("predictor: unknown PNG filter %d", ft)
			}
		}
		out = append(out, row[:end-pos-1]...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
