// Package credential renders a participant's check-in credential as a QR
// code and reads it back from a photo of the code.
package credential

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// Size is the edge length of the generated PNG in pixels.
const Size = 256

// Encode returns a PNG QR code carrying registrationID.
func Encode(registrationID string) ([]byte, error) {
	if registrationID == "" {
		return nil, fmt.Errorf("empty registration id: %w", model.ErrValidation)
	}
	png, err := qrcode.Encode(registrationID, qrcode.Medium, Size)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	return png, nil
}

// Decode extracts the registration id from a PNG or JPEG photo.
func Decode(photo []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return "", fmt.Errorf("decode photo: %w: %w", model.ErrValidation, err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare photo: %w: %w", model.ErrValidation, err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("no credential in photo: %w: %w", model.ErrValidation, err)
	}
	id := strings.TrimSpace(result.GetText())
	if id == "" {
		return "", fmt.Errorf("empty credential: %w", model.ErrValidation)
	}
	return id, nil
}
