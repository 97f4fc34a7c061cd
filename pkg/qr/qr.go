package qr

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

const imageSize = 256

// Render encodes text as a PNG QR code. Output is deterministic for identical input.
func Render(text string) ([]byte, error) {
	return qrcode.Encode(text, qrcode.Medium, imageSize)
}

// RenderBase64 returns the PNG produced by Render as standard base64.
func RenderBase64(text string) (string, error) {
	png, err := Render(text)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
