package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name      string
		deviceID  int
		fallbacks []int
		want      []int
	}{
		{name: "configured then zero", deviceID: 1, want: []int{1, 0}},
		{name: "zero only once", deviceID: 0, want: []int{0}},
		{name: "fallbacks in order", deviceID: 2, fallbacks: []int{1}, want: []int{2, 1, 0}},
		{name: "duplicates dropped", deviceID: 1, fallbacks: []int{1, 0}, want: []int{1, 0}},
		{name: "negative ids ignored", deviceID: -1, fallbacks: []int{-3, 4}, want: []int{4, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.deviceID, tt.fallbacks...))
		})
	}
}

func TestCamera_Closed(t *testing.T) {
	cam := NewCamera(1)

	assert.False(t, cam.IsOpen())
	assert.Equal(t, DefaultFPS, cam.FPS())
	assert.Equal(t, -1, cam.(*cameraImpl).DeviceID())

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)
	assert.NoError(t, cam.Close(), "closing an unopened camera is a no-op")
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)

	steps := []struct {
		set, want int
	}{
		{10, 10},
		{1, 1},
		{0, 1},
		{-5, 1},
		{30, 30},
	}
	for _, s := range steps {
		cam.SetFPS(s.set)
		assert.Equal(t, s.want, cam.FPS(), "after SetFPS(%d)", s.set)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Device 1 falls back to 0 on single-camera machines.
	cam := NewCamera(1)
	if err := cam.Open(); err != nil {
		assert.ErrorIs(t, err, ErrNoCamera)
		t.Skipf("camera not available: %v", err)
	}

	assert.True(t, cam.IsOpen())
	assert.Contains(t, []int{1, 0}, cam.(*cameraImpl).DeviceID())

	mat, err := cam.ReadFrame()
	require.NoError(t, err)
	require.NotNil(t, mat)
	assert.False(t, mat.Empty())
	if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
		t.Logf("frame is %dx%d, camera ignored the requested size", mat.Cols(), mat.Rows())
	}
	mat.Close()

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
	assert.Equal(t, -1, cam.(*cameraImpl).DeviceID())
}
