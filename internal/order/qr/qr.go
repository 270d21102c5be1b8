// Package qr renders payment link URLs as QR codes so staff can hand a
// client the link over chat apps or print.
package qr

import (
	"github.com/skip2/go-qrcode"
)

// EncodeLink returns a 256x256 PNG of the payment link URL.
func EncodeLink(url string) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, 256)
}
