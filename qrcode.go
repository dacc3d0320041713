package kinopy

import (
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// QR renders a QR code, typically pointing viewers at documentation or a
// download. The code carries its own quiet zone, so it can sit directly on
// busy footage.
type QR struct {
	Content string
	// Size is the edge length in pixels. Zero means 256.
	Size int
}

func (q QR) Render(env RenderEnv) (image.Image, error) {
	size := q.Size
	if size <= 0 {
		size = 256
	}
	code, err := qrcode.New(q.Content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("%w: qr content: %v", ErrConfiguration, err)
	}
	return code.Image(size), nil
}
