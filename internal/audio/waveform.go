// Package audio converts arbitrary uploaded audio into the canonical
// waveform the separation engine consumes: 44.1 kHz, stereo, 16-bit PCM WAV.
package audio

import "math"

// Canonical output parameters.
const (
	TargetSampleRate = 44100
	TargetChannels   = 2
	TargetBitDepth   = 16
)

// Waveform holds decoded PCM as interleaved float64 samples in [-1, 1).
type Waveform struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (w *Waveform) Frames() int {
	if w.Channels == 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// ToStereo reshapes the waveform to exactly two channels: mono is duplicated,
// anything beyond the first two channels is dropped.
func (w *Waveform) ToStereo() {
	switch {
	case w.Channels == TargetChannels:
		return
	case w.Channels == 1:
		out := make([]float64, 0, len(w.Samples)*2)
		for _, s := range w.Samples {
			out = append(out, s, s)
		}
		w.Samples = out
	default:
		frames := w.Frames()
		out := make([]float64, 0, frames*2)
		for i := 0; i < frames; i++ {
			base := i * w.Channels
			out = append(out, w.Samples[base], w.Samples[base+1])
		}
		w.Samples = out
	}
	w.Channels = TargetChannels
}

// Resample converts the waveform to the given rate using per-channel linear
// interpolation. Duration is preserved within rounding of one frame.
func (w *Waveform) Resample(rate int) {
	if w.SampleRate == rate || w.Frames() == 0 {
		w.SampleRate = rate
		return
	}

	srcFrames := w.Frames()
	dstFrames := int(math.Round(float64(srcFrames) * float64(rate) / float64(w.SampleRate)))
	if dstFrames < 1 {
		dstFrames = 1
	}

	out := make([]float64, dstFrames*w.Channels)
	step := float64(srcFrames-1) / float64(dstFrames-1)
	if dstFrames == 1 {
		step = 0
	}
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		left := int(pos)
		right := left + 1
		if right >= srcFrames {
			right = srcFrames - 1
		}
		frac := pos - float64(left)
		for ch := 0; ch < w.Channels; ch++ {
			a := w.Samples[left*w.Channels+ch]
			b := w.Samples[right*w.Channels+ch]
			out[i*w.Channels+ch] = a + (b-a)*frac
		}
	}

	w.Samples = out
	w.SampleRate = rate
}
