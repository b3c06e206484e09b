//go:build gocv

package edges

// NewDefault returns the detector compiled into this build.
func NewDefault() Detector {
	return NewOpenCV()
}

// Backend names the default detector implementation.
const Backend = "opencv"
