// Package pixel turns encoded images into fixed-size RGB buffers for model input.
package pixel

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Channels is the number of interleaved channels in a Buffer (R, G, B).
const Channels = 3

var (
	ErrEmptyImage = errors.New("image has no pixels")
	ErrTooLarge   = errors.New("image dimensions too large")
)

// MaxPixels bounds width*height of images accepted by Decode.
var MaxPixels = 50_000_000

// Buffer is an 8-bit RGB image in height, width, channel order.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// Shape returns the buffer dimensions as [height, width, channels].
func (b *Buffer) Shape() [3]int {
	return [3]int{b.Height, b.Width, Channels}
}

func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Load decodes the image file at path and cover-fits it to width x height.
func Load(path string, width, height int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return FromImage(img, width, height)
}

// Decode reads the image header first and refuses images above MaxPixels
// before any pixel data is allocated.
func Decode(r io.ReadSeeker) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if cfg.Width > MaxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(r)
	return img, err
}

// FromImage strips the alpha channel, then scales img to fill width x height,
// cropping whatever overflows around the center. The aspect ratio is kept and
// the result is never letterboxed.
func FromImage(img image.Image, width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	// crop before scaling so work stays bounded by the source size
	cw, ch := coverCrop(b.Dx(), b.Dy(), width, height)
	cropped := RemoveAlpha(imaging.CropAnchor(img, cw, ch, imaging.Center))
	fitted := imaging.Resize(cropped, width, height, imaging.Lanczos)
	return fromNRGBA(fitted, width, height)
}

// coverCrop returns the size of the largest region of a srcW x srcH image that
// has the aspect ratio of width x height.
func coverCrop(srcW, srcH, width, height int) (cw, ch int) {
	if srcW*height > srcH*width {
		ch = srcH
		cw = (srcH*width + height/2) / height
	} else {
		cw = srcW
		ch = (srcW*height + width/2) / width
	}
	return min(max(cw, 1), srcW), min(max(ch, 1), srcH)
}

// RemoveAlpha drops the alpha channel without compositing: color values are kept
// as stored and every pixel becomes opaque.
func RemoveAlpha(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func fromNRGBA(img *image.NRGBA, width, height int) (*Buffer, error) {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("resized image is %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}

	out := make([]uint8, width*height*Channels)
	o := 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < len(row); x += 4 {
			out[o] = row[x]
			out[o+1] = row[x+1]
			out[o+2] = row[x+2]
			o += Channels
		}
	}
	return &Buffer{Width: width, Height: height, Pix: out}, nil
}
