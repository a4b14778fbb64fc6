// Package config loads runtime configuration and detection thresholds for vigil.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfiguration is returned when thresholds are non-positive or inconsistent.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// YawnPolicy selects which yawn signal is fed to the classifier.
type YawnPolicy string

const (
	// YawnSustained feeds "at least two debounced yawns in the current streak".
	YawnSustained YawnPolicy = "sustained"
	// YawnInstant feeds the per-frame MAR flag.
	YawnInstant YawnPolicy = "instant"
)

// TieBreak decides the head-turn direction when both ears share the same x.
type TieBreak string

const (
	TieBreakRight TieBreak = "right"
	TieBreakLeft  TieBreak = "left"
)

// Thresholds holds every tunable value of the detection core.
type Thresholds struct {
	EyeClosed        float64
	MouthAspectRatio float64
	MouthOpen        float64
	HeadRotation     float64
	HeadTilt         float64
	HeadTieBreak     TieBreak

	EyesClosedTime  time.Duration
	PhoneDetection  time.Duration
	Danger          time.Duration
	YawnMinGap      time.Duration
	YawnResetWindow time.Duration
	YawnPolicy      YawnPolicy
}

// DefaultThresholds returns the values used by the streaming API deployment.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EyeClosed:        0.02,
		MouthAspectRatio: 0.4,
		MouthOpen:        0,
		HeadRotation:     0.2,
		HeadTilt:         0.1,
		HeadTieBreak:     TieBreakRight,
		EyesClosedTime:   20 * time.Second,
		PhoneDetection:   5 * time.Second,
		Danger:           3 * time.Second,
		YawnMinGap:       3 * time.Second,
		YawnResetWindow:  10 * time.Second,
		YawnPolicy:       YawnSustained,
	}
}

// Validate rejects non-positive or inconsistent thresholds.
func (t Thresholds) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"EYE_CLOSED_THRESHOLD", t.EyeClosed},
		{"MAR_THRESHOLD", t.MouthAspectRatio},
		{"HEAD_ROTATION_THRESHOLD", t.HeadRotation},
		{"HEAD_TILT_THRESHOLD", t.HeadTilt},
		{"EYES_CLOSED_TIME_THRESHOLD", t.EyesClosedTime.Seconds()},
		{"PHONE_DETECTION_THRESHOLD", t.PhoneDetection.Seconds()},
		{"DANGER_THRESHOLD", t.Danger.Seconds()},
		{"YAWN_MIN_GAP", t.YawnMinGap.Seconds()},
		{"YAWN_RESET_WINDOW", t.YawnResetWindow.Seconds()},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfiguration, p.name, p.value)
		}
	}

	if !(t.MouthOpen >= 0) || math.IsInf(t.MouthOpen, 0) {
		return fmt.Errorf("%w: MOUTH_OPEN_THRESHOLD must be finite and not negative, got %v", ErrInvalidConfiguration, t.MouthOpen)
	}
	if t.YawnResetWindow <= t.YawnMinGap {
		return fmt.Errorf("%w: YAWN_RESET_WINDOW (%s) must exceed YAWN_MIN_GAP (%s)",
			ErrInvalidConfiguration, t.YawnResetWindow, t.YawnMinGap)
	}

	switch t.YawnPolicy {
	case YawnSustained, YawnInstant:
	default:
		return fmt.Errorf("%w: unknown YAWN_POLICY %q", ErrInvalidConfiguration, t.YawnPolicy)
	}

	switch t.HeadTieBreak {
	case TieBreakRight, TieBreakLeft:
	default:
		return fmt.Errorf("%w: unknown HEAD_TURN_TIE_BREAK %q", ErrInvalidConfiguration, t.HeadTieBreak)
	}

	return nil
}

// Config is the full process configuration.
type Config struct {
	Thresholds        Thresholds
	FaceLandmarkCount int

	HTTPAddr        string
	DataDir         string
	StaticDir       string
	CameraID        int
	FPS             int
	DetectorWorkers int

	LogLevel  string
	LogFormat string
	LogFile   string

	PluginDir   string
	AlarmPlugin string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	RedisAddr   string
	RedisStream string
}

// Load reads configuration from the environment, honouring a .env file when present.
func Load() (*Config, error) {
	// A missing .env is normal; system environment variables are used instead.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".vigil")

	d := DefaultThresholds()
	th := Thresholds{
		EyeClosed:        getEnvFloat("EYE_CLOSED_THRESHOLD", d.EyeClosed),
		MouthAspectRatio: getEnvFloat("MAR_THRESHOLD", d.MouthAspectRatio),
		MouthOpen:        getEnvFloat("MOUTH_OPEN_THRESHOLD", d.MouthOpen),
		HeadRotation:     getEnvFloat("HEAD_ROTATION_THRESHOLD", d.HeadRotation),
		HeadTilt:         getEnvFloat("HEAD_TILT_THRESHOLD", d.HeadTilt),
		HeadTieBreak:     TieBreak(getEnv("HEAD_TURN_TIE_BREAK", string(d.HeadTieBreak))),
		EyesClosedTime:   getEnvSeconds("EYES_CLOSED_TIME_THRESHOLD", d.EyesClosedTime),
		PhoneDetection:   getEnvSeconds("PHONE_DETECTION_THRESHOLD", d.PhoneDetection),
		Danger:           getEnvSeconds("DANGER_THRESHOLD", d.Danger),
		YawnMinGap:       getEnvSeconds("YAWN_MIN_GAP", d.YawnMinGap),
		YawnResetWindow:  getEnvSeconds("YAWN_RESET_WINDOW", d.YawnResetWindow),
		YawnPolicy:       YawnPolicy(getEnv("YAWN_POLICY", string(d.YawnPolicy))),
	}

	cfg := &Config{
		Thresholds:        th,
		FaceLandmarkCount: getEnvInt("FACE_LANDMARK_COUNT", 478),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		DataDir:           getEnv("DATA_DIR", base),
		StaticDir:         getEnv("STATIC_DIR", ""),
		CameraID:          getEnvInt("CAMERA_ID", 1),
		FPS:               getEnvInt("FPS", 10),
		DetectorWorkers:   getEnvInt("DETECTOR_WORKERS", 2),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", ""),
		PluginDir:         getEnv("PLUGIN_DIR", filepath.Join(base, "plugins")),
		AlarmPlugin:       getEnv("ALARM_PLUGIN", "alarm-sound"),
		MQTTBroker:        getEnv("MQTT_BROKER", ""),
		MQTTTopic:         getEnv("MQTT_TOPIC", "vigil/alarm"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "vigil"),
		MQTTUsername:      getEnv("MQTT_USERNAME", ""),
		MQTTPassword:      getEnv("MQTT_PASSWORD", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisStream:       getEnv("REDIS_STREAM", "vigil:alerts"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks thresholds and runtime settings.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.FaceLandmarkCount <= 0 {
		return fmt.Errorf("%w: FACE_LANDMARK_COUNT must be positive", ErrInvalidConfiguration)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: FPS must be positive", ErrInvalidConfiguration)
	}
	if c.DetectorWorkers <= 0 {
		return fmt.Errorf("%w: DETECTOR_WORKERS must be positive", ErrInvalidConfiguration)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvFloat returns NaN for unparsable values so Validate rejects them
// instead of silently falling back to the default.
func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// getEnvSeconds reads a duration expressed in (fractional) seconds.
func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return -1
	}
	return Seconds(f)
}

// Seconds converts fractional seconds to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
