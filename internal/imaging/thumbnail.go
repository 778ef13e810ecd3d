package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
)

const thumbnailQuality = 80

// ThumbnailDataURL downscales img so its longest side is at most maxSide
// and returns it as a base64 JPEG data URL. Images already within bounds
// are encoded as-is.
func ThumbnailDataURL(img image.Image, maxSide int) (string, error) {
	if maxSide <= 0 {
		maxSide = 256
	}

	scaled := scaleDown(img, maxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// scaleDown resizes with nearest-neighbor sampling. Thumbnails are preview
// artifacts; sampling quality does not matter here.
func scaleDown(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	var tw, th int
	if w >= h {
		tw = maxSide
		th = h * maxSide / w
	} else {
		th = maxSide
		tw = w * maxSide / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	out := image.NewRGBA(image.Rect(0, 0, tw, th))
	for y := 0; y < th; y++ {
		srcY := bounds.Min.Y + y*h/th
		for x := 0; x < tw; x++ {
			srcX := bounds.Min.X + x*w/tw
			out.Set(x, y, img.At(srcX, srcY))
		}
	}
	return out
}
