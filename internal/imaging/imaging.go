// Package imaging normalizes borrow and return evidence photos before they
// are stored locally.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/erazemk/izposoja/internal/errs"
)

// MaxDimension is the maximum width or height of a stored photo.
const MaxDimension = 1600

// MaxInputBytes caps the size of an incoming photo.
const MaxInputBytes = 20 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 82

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo is a normalized evidence photo, always JPEG.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalize reads a photo, checks its format by sniffing bytes, downscales
// it to fit MaxDimension and re-encodes it as JPEG. Unsupported or corrupt
// input is a validation error.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxInputBytes {
		return nil, errs.Validation("photo is larger than %d MB", MaxInputBytes>>20)
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, errs.Validation("unsupported photo format: %s (JPEG, PNG and WebP accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Validation("photo could not be decoded")
	}

	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit scales img down with Catmull-Rom so neither side exceeds maxDim.
// Smaller images are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}
