package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("content is empty")

// EncodingError wraps failures of the symbol encoder itself: empty content
// or content exceeding the symbol's capacity at the chosen error-correction
// level. Row-level failures of this kind are recorded and skipped by the
// pipeline; they never abort a batch.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return "qr encoding: " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsEncodingError reports whether err is a row-level encoding failure as
// opposed to a configuration error.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// Encode renders content as a QR symbol and returns PNG bytes. Content is
// treated as an opaque string; callers normalize URLs (scheme prefixing)
// before encoding. The spec must already be valid; Encode re-validates
// and returns the configuration error otherwise.
func Encode(content string, spec Spec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, &EncodingError{Err: ErrEmptyContent}
	}

	level, err := spec.recoveryLevel()
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(content, level)
	if err != nil {
		// The encoder fails when content exceeds symbol capacity.
		return nil, &EncodingError{Err: err}
	}

	// Render at exactly ModuleSize pixels per module and add the quiet
	// zone ourselves, so Border is honored in modules rather than the
	// encoder's fixed default.
	code.DisableBorder = true
	img := code.Image(-spec.ModuleSize)

	if spec.Border > 0 {
		img = addBorder(img, spec.Border*spec.ModuleSize)
	}
	if spec.OutputSize > 0 && spec.OutputSize != img.Bounds().Dx() {
		img = rescale(img, spec.OutputSize)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// addBorder centers img on a white canvas padded by pad pixels per side.
func addBorder(img image.Image, pad int) image.Image {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx()+2*pad, src.Dy()+2*pad))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, src.Add(image.Pt(pad-src.Min.X, pad-src.Min.Y)), img, src.Min, draw.Src)
	return dst
}

// rescale resizes img to size x size. Nearest-neighbor keeps module edges
// crisp, which matters for scanner reliability.
func rescale(img image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
