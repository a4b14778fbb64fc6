// Package features turns face and hand landmarks into the per-frame
// measurements the alert classifier works on. Every function here is pure.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/detector"
)

// ErrIndexOutOfRange is returned when a landmark index exceeds the supplied set.
var ErrIndexOutOfRange = errors.New("landmark index out of range")

// Horizontal is the side a turned head faces.
type Horizontal string

const (
	HorizontalNone  Horizontal = ""
	HorizontalLeft  Horizontal = "left"
	HorizontalRight Horizontal = "right"
)

// Vertical is the direction a tilted head points.
type Vertical string

const (
	VerticalNone Vertical = ""
	VerticalUp   Vertical = "up"
	VerticalDown Vertical = "down"
)

// HeadPosture describes deviation of the head from facing the road.
type HeadPosture struct {
	Turned     bool
	DirectionH Horizontal
	Tilted     bool
	DirectionV Vertical
}

// FeatureSet is everything measured on a single frame.
type FeatureSet struct {
	FaceDetected     bool
	EyeOpeningLeft   float64
	EyeOpeningRight  float64
	MouthAspectRatio float64
	MouthOpening     float64
	Head             HeadPosture

	// Instantaneous flags derived with the configured thresholds.
	EyesClosed    bool
	Yawning       bool
	PhoneDetected bool
}

func point(points []detector.Point3D, idx int) (detector.Point3D, error) {
	if idx < 0 || idx >= len(points) {
		return detector.Point3D{}, fmt.Errorf("%w: index %d, %d landmarks", ErrIndexOutOfRange, idx, len(points))
	}
	return points[idx], nil
}

// EyeOpening returns the vertical distance between the two lid landmarks.
func EyeOpening(points []detector.Point3D, top, bottom int) (float64, error) {
	t, err := point(points, top)
	if err != nil {
		return 0, err
	}
	b, err := point(points, bottom)
	if err != nil {
		return 0, err
	}
	return math.Abs(t.Y - b.Y), nil
}

// MouthAspectRatio returns vertical/horizontal mouth distance and the raw
// vertical opening. A mouth with zero width yields (0, 0).
func MouthAspectRatio(points []detector.Point3D, top, bottom, left, right int) (mar, opening float64, err error) {
	var pts [4]detector.Point3D
	for i, idx := range []int{top, bottom, left, right} {
		if pts[i], err = point(points, idx); err != nil {
			return 0, 0, err
		}
	}

	vertical := math.Abs(pts[0].Y - pts[1].Y)
	horizontal := math.Abs(pts[2].X - pts[3].X)
	if horizontal == 0 {
		return 0, 0, nil
	}
	return vertical / horizontal, vertical, nil
}

// HeadPose estimates whether the head is turned or tilted.
// Rotation is the mean x spread of ears and temples; tilt is the
// forehead-to-chin y spread. Both comparisons are strict.
func HeadPose(points []detector.Point3D, th config.Thresholds) (HeadPosture, error) {
	idx := []int{
		detector.NoseTip, detector.LeftEar, detector.RightEar,
		detector.Forehead, detector.Chin, detector.LeftTemple, detector.RightTemple,
	}
	for _, i := range idx {
		if _, err := point(points, i); err != nil {
			return HeadPosture{}, err
		}
	}

	nose := points[detector.NoseTip]
	leftEar, rightEar := points[detector.LeftEar], points[detector.RightEar]
	forehead, chin := points[detector.Forehead], points[detector.Chin]
	leftTemple, rightTemple := points[detector.LeftTemple], points[detector.RightTemple]

	var hp HeadPosture

	rotation := (math.Abs(leftEar.X-rightEar.X) + math.Abs(leftTemple.X-rightTemple.X)) / 2
	if rotation > th.HeadRotation {
		hp.Turned = true
		switch {
		case leftEar.X > rightEar.X:
			hp.DirectionH = HorizontalLeft
		case leftEar.X == rightEar.X && th.HeadTieBreak == config.TieBreakLeft:
			hp.DirectionH = HorizontalLeft
		default:
			hp.DirectionH = HorizontalRight
		}
	}

	if math.Abs(forehead.Y-chin.Y) > th.HeadTilt {
		hp.Tilted = true
		if nose.Y > (forehead.Y+chin.Y)/2 {
			hp.DirectionV = VerticalDown
		} else {
			hp.DirectionV = VerticalUp
		}
	}

	return hp, nil
}

// HandProximity reports whether a hand's fingertips are bunched together,
// measured in pixels of a width x height image.
//
// This only recognizes "fingers folded around something". A fist, a
// steering-wheel grip close to the camera or a cup will trigger it as well;
// it is not a phone detector.
func HandProximity(hand detector.HandLandmarks, height, width int) bool {
	tips := []int{detector.ThumbTip, detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}
	w, h := float64(width), float64(height)

	var sum, maxDist float64
	for i := 0; i < len(tips)-1; i++ {
		a, b := hand.Points[tips[i]], hand.Points[tips[i+1]]
		d := math.Hypot((a.X-b.X)*w, (a.Y-b.Y)*h)
		sum += d
		if d > maxDist {
			maxDist = d
		}
	}
	mean := sum / float64(len(tips)-1)

	return mean < 0.15*w && maxDist < 0.25*w
}

// Extractor applies the feature functions with a fixed set of thresholds.
type Extractor struct {
	th config.Thresholds
}

// NewExtractor creates an Extractor for the given thresholds.
func NewExtractor(th config.Thresholds) *Extractor {
	return &Extractor{th: th}
}

// Thresholds returns the thresholds the extractor was built with.
func (e *Extractor) Thresholds() config.Thresholds {
	return e.th
}

// Extract measures a detection. A detection without a face is a valid
// input and yields FaceDetected=false with zero face features; hands are
// still examined.
func (e *Extractor) Extract(det *detector.Detection) (FeatureSet, error) {
	var fs FeatureSet
	if det == nil {
		return fs, nil
	}

	for _, hand := range det.Hands {
		if HandProximity(hand, det.Height, det.Width) {
			fs.PhoneDetected = true
			break
		}
	}

	if det.Face == nil || len(det.Face.Points) == 0 {
		return fs, nil
	}
	points := det.Face.Points
	fs.FaceDetected = true

	var err error
	if fs.EyeOpeningLeft, err = EyeOpening(points, detector.LeftEyeTop, detector.LeftEyeBottom); err != nil {
		return FeatureSet{}, fmt.Errorf("left eye: %w", err)
	}
	if fs.EyeOpeningRight, err = EyeOpening(points, detector.RightEyeTop, detector.RightEyeBottom); err != nil {
		return FeatureSet{}, fmt.Errorf("right eye: %w", err)
	}
	fs.MouthAspectRatio, fs.MouthOpening, err = MouthAspectRatio(points,
		detector.MouthTop, detector.MouthBottom, detector.MouthLeft, detector.MouthRight)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("mouth: %w", err)
	}
	if fs.Head, err = HeadPose(points, e.th); err != nil {
		return FeatureSet{}, fmt.Errorf("head: %w", err)
	}

	fs.EyesClosed = fs.EyeOpeningLeft < e.th.EyeClosed && fs.EyeOpeningRight < e.th.EyeClosed
	fs.Yawning = fs.MouthAspectRatio > e.th.MouthAspectRatio && fs.MouthOpening > e.th.MouthOpen

	return fs, nil
}

// ValidateLayout checks that every named face index fits in a face set of
// count points. It is meant to run once at startup.
func ValidateLayout(count int) error {
	named := []int{
		detector.LeftEyeTop, detector.LeftEyeBottom, detector.RightEyeTop, detector.RightEyeBottom,
		detector.MouthTop, detector.MouthBottom, detector.MouthLeft, detector.MouthRight,
		detector.NoseTip, detector.LeftEar, detector.RightEar, detector.Forehead, detector.Chin,
		detector.LeftTemple, detector.RightTemple,
	}
	for _, idx := range named {
		if idx >= count {
			return fmt.Errorf("%w: index %d needs at least %d landmarks, configured %d",
				ErrIndexOutOfRange, idx, idx+1, count)
		}
	}
	return nil
}
