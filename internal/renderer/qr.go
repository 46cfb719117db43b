package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/skip2/go-qrcode"
)

var qrCache sync.Map // "size|content" -> image.Image

// qrImage encodes content once per size; end cards repeat the same code on
// every frame.
func qrImage(content string, size int) (image.Image, error) {
	key := fmt.Sprintf("%d|%s", size, content)
	if img, ok := qrCache.Load(key); ok {
		return img.(image.Image), nil
	}

	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	img := q.Image(size)

	actual, _ := qrCache.LoadOrStore(key, img)
	return actual.(image.Image), nil
}
