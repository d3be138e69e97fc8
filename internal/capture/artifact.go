package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/e7canasta/lyra-camera-engine/internal/device"
	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

// Artifact is the retained result of the most recent capture: the
// encoded JPEG plus the settings and mode it was taken with.
type Artifact struct {
	ID         string
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	Mode       string
	Settings   exposure.Settings
	Data       []byte
}

// Filename derives the deterministic export name from the capture
// sequence and timestamp.
//
// Example: capture_000042_20251105_234517.123.jpg
func (a Artifact) Filename() string {
	return fmt.Sprintf("capture_%06d_%s.jpg", a.Seq, a.CapturedAt.Format("20060102_150405.000"))
}

// encodeJPEG compresses a raw RGB frame at the given quality (1-100).
func encodeJPEG(frame device.Frame, quality int) ([]byte, error) {
	img, err := rgbToRGBA(frame)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("capture: jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// rgbToRGBA converts raw RGB bytes (3 bytes/pixel) to image.RGBA,
// adding an opaque alpha channel.
func rgbToRGBA(frame device.Frame) (*image.RGBA, error) {
	expected := frame.Width * frame.Height * 3
	if len(frame.Data) != expected {
		return nil, fmt.Errorf("capture: invalid RGB data size: got %d, expected %d",
			len(frame.Data), expected)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		img.Pix[i*4+0] = frame.Data[i*3+0] // R
		img.Pix[i*4+1] = frame.Data[i*3+1] // G
		img.Pix[i*4+2] = frame.Data[i*3+2] // B
		img.Pix[i*4+3] = 255               // A (opaque)
	}
	return img, nil
}
