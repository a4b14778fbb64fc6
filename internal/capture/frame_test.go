package capture

import (
	"encoding/base64"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestDecodeDataURL(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	enc := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "jpeg data url", input: "data:image/jpeg;base64," + enc, want: raw},
		{name: "png data url", input: "data:image/png;base64," + enc, want: raw},
		{name: "bare base64", input: enc, want: raw},
		{name: "surrounding whitespace", input: "  data:image/jpeg;base64," + enc + "\n", want: raw},
		{name: "empty", input: "", wantErr: true},
		{name: "missing comma", input: "data:image/jpeg;base64", wantErr: true},
		{name: "not base64 encoded", input: "data:text/plain,hello", wantErr: true},
		{name: "corrupt payload", input: "data:image/jpeg;base64,***", wantErr: true},
		{name: "empty payload", input: "data:image/jpeg;base64,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFrame) {
					t.Fatalf("DecodeDataURL() error = %v, want ErrInvalidFrame", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL() error = %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("DecodeDataURL() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeFrame(data); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("DecodeFrame() error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	src := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer src.Close()

	buf, err := gocv.IMEncode(".jpg", src)
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	defer buf.Close()

	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.GetBytes())
	data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL() error = %v", err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	defer frame.Close()

	if frame.Cols() != 64 || frame.Rows() != 48 {
		t.Errorf("decoded frame is %dx%d, want 64x48", frame.Cols(), frame.Rows())
	}
}
