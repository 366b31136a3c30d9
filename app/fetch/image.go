package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrNotAnImage = errors.New("not an image")

// DecodeImage reads only the image header and returns its dimensions.
func DecodeImage(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrNotAnImage
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return config.Width, config.Height, nil
}
