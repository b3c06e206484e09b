//go:build linux

package devices

import (
	"sort"

	"github.com/blackjack/webcam"
)

// probeFormats opens path and lists its formats. webcam.Open rejects nodes
// without capture and streaming capabilities.
func probeFormats(path string) ([]Format, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, err
	}
	defer cam.Close()

	supported := cam.GetSupportedFormats()
	formats := make([]Format, 0, len(supported))
	for code, desc := range supported {
		f := Format{FourCC: fourCC(uint32(code)), Description: desc}
		for _, size := range cam.GetSupportedFrameSizes(code) {
			f.Sizes = append(f.Sizes, size.GetString())
		}
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i].FourCC < formats[j].FourCC })
	return formats, nil
}
