// Package imageproc normalizes uploaded images to the canonical stored form.
//
// Every stored object is a JPEG: inputs are decoded, scaled down to fit the
// configured bounding box when they exceed it, and re-encoded at a fixed
// quality. Transparency is flattened and animated inputs are reduced to
// their first frame; callers trade fidelity for storage and serving
// uniformity.
package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding
)

// Normalizer converts raw upload bytes into canonical JPEG bytes.
type Normalizer struct {
	// MaxDimension bounds both output axes in pixels. Images already
	// inside the box pass through at their original size.
	MaxDimension int
	// Quality is the JPEG quality factor (1-100).
	Quality int
}

// New creates a Normalizer with the given bounding box edge and JPEG quality.
func New(maxDimension, quality int) *Normalizer {
	return &Normalizer{MaxDimension: maxDimension, Quality: quality}
}

// Normalize decodes the buffer, resizes it to fit within
// MaxDimension x MaxDimension preserving aspect ratio (never enlarging),
// and re-encodes it as JPEG. The input buffer is not retained or mutated.
// A buffer that does not decode as an image is an error, never a panic.
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = n.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.Quality)); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales the image down to fit inside the bounding box. Images already
// within bounds are returned unchanged.
func (n *Normalizer) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= n.MaxDimension && b.Dy() <= n.MaxDimension {
		return img
	}
	return imaging.Fit(img, n.MaxDimension, n.MaxDimension, imaging.Lanczos)
}
