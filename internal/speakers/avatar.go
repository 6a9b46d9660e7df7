package speakers

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
)

// AvatarSize is the edge of a cropped avatar in pixels
const AvatarSize = 256

// CropArea is a rectangle in source image pixels
type CropArea struct {
	Width, Height, X, Y float64
}

// ParseCropArea reads "width,height,x,y". An empty string means no explicit
// crop.
func ParseCropArea(s string) (*CropArea, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, apperr.Validation("ERR_INVALID_CROP", "Invalid croppedArea format; expected 4 comma-separated numbers.")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperr.Validation("ERR_INVALID_CROP", "Invalid croppedArea values; expected numbers.")
		}
		v[i] = f
	}
	if v[0] <= 0 || v[1] <= 0 {
		return nil, apperr.Validation("ERR_INVALID_CROP", "Invalid croppedArea values; width and height must be positive.")
	}
	return &CropArea{Width: v[0], Height: v[1], X: v[2], Y: v[3]}, nil
}

// centered is the largest centered square of bounds
func centered(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

func (a *CropArea) rect(b image.Rectangle) image.Rectangle {
	x0 := b.Min.X + int(math.Round(a.X))
	y0 := b.Min.Y + int(math.Round(a.Y))
	return image.Rect(x0, y0, x0+int(math.Round(a.Width)), y0+int(math.Round(a.Height)))
}

// CropAvatar crops src to area, or to a centered square when area is nil,
// and scales the result to AvatarSize x AvatarSize.
func CropAvatar(src image.Image, area *CropArea) image.Image {
	b := src.Bounds()
	r := centered(b)
	if area != nil {
		r = area.rect(b)
	}

	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, r, draw.Over, nil)
	return dst
}

// DecodeImage reads a png, jpeg, gif or webp image
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, apperr.Validation("ERR_INVALID_IMAGE", "Uploaded file is not a supported image.").Wrap(err)
	}
	return img, nil
}

// EncodePNG writes img as png
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
