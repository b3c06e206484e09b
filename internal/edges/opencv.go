//go:build gocv

package edges

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCV runs cv::Canny through gocv. It mirrors the native routine used on
// devices: RGBA to gray, Canny, gray back to RGBA.
type OpenCV struct {
	Low  float32
	High float32
}

// NewOpenCV returns an OpenCV detector with the default thresholds.
func NewOpenCV() *OpenCV {
	return &OpenCV{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Detect replaces pix with its edge map.
func (o *OpenCV) Detect(pix []byte, width, height int) error {
	if err := checkBuffer(pix, width, height); err != nil {
		return err
	}
	n := width * height * 4

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, pix[:n])
	if err != nil {
		return fmt.Errorf("wrap rgba buffer: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, o.Low, o.High)

	out := gocv.NewMat()
	defer out.Close()
	gocv.CvtColor(edges, &out, gocv.ColorGrayToRGBA)

	b := out.ToBytes()
	if len(b) != n {
		return fmt.Errorf("opencv produced %d bytes, want %d", len(b), n)
	}
	copy(pix, b)
	return nil
}
