// Package detector provides landmark detection interfaces and types for driver monitoring.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Face mesh landmark indices following MediaPipe Face Mesh convention.
const (
	LeftEyeTop     = 386
	LeftEyeBottom  = 374
	RightEyeTop    = 159
	RightEyeBottom = 145

	MouthTop         = 13
	MouthBottom      = 14
	MouthLeft        = 78
	MouthRight       = 308
	MouthInnerTop    = 12
	MouthInnerBottom = 15

	NoseTip     = 1
	LeftEar     = 234
	RightEar    = 454
	Forehead    = 10
	Chin        = 152
	LeftTemple  = 447
	RightTemple = 227

	// RefinedFaceLandmarks is the point count of the refined face mesh (with irises).
	RefinedFaceLandmarks = 478
)

// Point3D represents a normalized landmark with x, y in [0,1] and relative depth z.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FaceLandmarks is one face mesh. The point count is fixed per deployment.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
}

// Detection is the landmark input for one frame.
// A nil Face means no face was found, which is a defined state, not an error.
type Detection struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Face   *FaceLandmarks  `json:"face,omitempty"`
	Hands  []HandLandmarks `json:"hands,omitempty"`
}
