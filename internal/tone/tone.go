// Package tone synthesizes the alarm sound played when the driver is in danger.
package tone

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// Tone is an enveloped sine wave.
type Tone struct {
	Frequency  float64
	Duration   time.Duration
	Attack     time.Duration
	Release    time.Duration
	SampleRate int
}

// Alarm returns the default alarm: one second of A4 with 100ms fades so
// looping playback does not click.
func Alarm() Tone {
	return Tone{
		Frequency:  440,
		Duration:   time.Second,
		Attack:     100 * time.Millisecond,
		Release:    100 * time.Millisecond,
		SampleRate: 44100,
	}
}

func (t Tone) count(d time.Duration) int {
	return int(float64(t.SampleRate) * d.Seconds())
}

// Samples renders the tone as signed 16-bit PCM values.
func (t Tone) Samples() []int {
	n := t.count(t.Duration)
	if n <= 0 {
		return nil
	}

	attack := min(t.count(t.Attack), n)
	release := min(t.count(t.Release), n)
	duration := t.Duration.Seconds()

	out := make([]int, n)
	for i := range out {
		// Sample times span [0, duration] inclusive.
		var at float64
		if n > 1 {
			at = duration * float64(i) / float64(n-1)
		}
		v := math.Sin(2 * math.Pi * t.Frequency * at)

		if i < attack {
			v *= ramp(i, attack)
		}
		if j := i - (n - release); j >= 0 {
			v *= 1 - ramp(j, release)
		}

		out[i] = int(v * math.MaxInt16)
	}
	return out
}

// ramp goes from 0 at i=0 to 1 at i=n-1.
func ramp(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(i) / float64(n-1)
}

// WriteFile writes the tone as a mono 16-bit WAV file, creating parent
// directories as needed.
func (t Tone) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create tone directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tone file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, t.SampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: t.SampleRate},
		Data:           t.Samples(),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize tone: %w", err)
	}
	return nil
}

// Ensure writes the alarm tone to path unless a file already exists there,
// so a user-supplied sound is never overwritten.
func Ensure(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Alarm().WriteFile(path)
}
