// Package imaging reads upload dimensions and produces the fixed-size
// crops declared on the media collection.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"folio/internal/schema"
)

// Info describes a decoded upload.
type Info struct {
	Width  int
	Height int
	Format string // "jpeg", "png", "gif" or "webp"
}

// Variant is one generated size, ready to store.
type Variant struct {
	Name        string
	Width       int
	Height      int
	Data        []byte
	ContentType string
}

// Probe reads the dimensions of an image without decoding its pixels.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("probe image: %w", err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Crop scales the image to cover size and cuts the overflow equally from
// both sides, so the result is exactly size.Width by size.Height. PNG
// sources stay PNG; everything else is written as JPEG.
func Crop(data []byte, size schema.ImageSize) (*Variant, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "gif" {
		// Only the first frame of an animation is kept.
		if g, err := gif.DecodeAll(bytes.NewReader(data)); err == nil && len(g.Image) > 0 {
			src = g.Image[0]
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), size.Width, size.Height), draw.Src, nil)

	var buf bytes.Buffer
	contentType := "image/jpeg"
	if format == "png" {
		contentType = "image/png"
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 82})
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", size.Name, err)
	}

	return &Variant{
		Name:        size.Name,
		Width:       size.Width,
		Height:      size.Height,
		Data:        buf.Bytes(),
		ContentType: contentType,
	}, nil
}

// coverRect returns the centred part of b with the aspect ratio w:h.
func coverRect(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	// Compare sw/sh with w/h without floating point.
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := b.Min.X + (sw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := sw * h / w
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}
