package worker

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/liyue201/goqr"

	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/mihoyo"
)

// ErrNoLoginQR means the image held no QR code, or none carrying an
// in-game login payload. Such images are silently ignored by callers.
var ErrNoLoginQR = errors.New("no in-game login QR code in image")

// DecodeLoginQR scans the image bytes for a QR code whose payload is an
// in-game login URL and returns that payload.
func DecodeLoginQR(imageBytes []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", ErrNoLoginQR
	}

	codes, err := goqr.Recognize(img)
	if err != nil || len(codes) == 0 {
		return "", ErrNoLoginQR
	}

	for _, code := range codes {
		payload := strings.TrimSpace(string(code.Payload))
		if strings.HasPrefix(payload, mihoyo.QRCodePrefix) {
			return payload, nil
		}
	}
	return "", ErrNoLoginQR
}
