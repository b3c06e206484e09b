//go:build !linux

package devices

import "errors"

func probeFormats(string) ([]Format, error) {
	return nil, errors.New("V4L2 is only available on Linux")
}
