package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// ErrInvalidFrame is returned for input that cannot be decoded into an image.
var ErrInvalidFrame = errors.New("invalid frame")

// DecodeFrame decodes an encoded image (JPEG, PNG...) into a BGR Mat.
// The caller is responsible for closing the returned Mat.
func DecodeFrame(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidFrame)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: undecodable image", ErrInvalidFrame)
	}
	return &mat, nil
}

// DecodeDataURL extracts the image bytes of a base64 data URL such as
// "data:image/jpeg;base64,/9j/...". A bare base64 payload is accepted too.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidFrame)
	}

	payload := s
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data url", ErrInvalidFrame)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data url is not base64", ErrInvalidFrame)
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidFrame)
	}
	return data, nil
}
