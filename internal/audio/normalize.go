package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	audiobuf "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	log "github.com/sirupsen/logrus"
)

// Normalizer produces canonical WAV files from arbitrary supported uploads.
// It never mutates the input file.
type Normalizer struct {
	// FFmpeg is the binary used to decode formats without a native decoder
	// (m4a/aac).
	FFmpeg string
}

func NewNormalizer(ffmpegBin string) *Normalizer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Normalizer{FFmpeg: ffmpegBin}
}

// Canonical reports whether the file is already a WAV at the canonical
// sample rate, channel count and bit depth, in which case no conversion is
// needed before separation.
func (n *Normalizer) Canonical(path string) bool {
	if Extension(path) != "wav" {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	return dec.Err() == nil &&
		int(dec.SampleRate) == TargetSampleRate &&
		int(dec.NumChans) == TargetChannels &&
		int(dec.BitDepth) == TargetBitDepth
}

// Normalize converts inputPath into a canonical WAV at outputPath. A source
// already at the target rate and channel count is repackaged losslessly.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	ext := Extension(inputPath)

	switch ext {
	case "m4a", "aac":
		return n.ffmpegDecode(ctx, inputPath, outputPath)
	}

	w, err := Decode(inputPath)
	if err != nil {
		return err
	}
	if w.Frames() == 0 {
		return fmt.Errorf("%s: no audio frames decoded", inputPath)
	}

	w.ToStereo()
	w.Resample(TargetSampleRate)

	log.WithFields(log.Fields{
		"input":  inputPath,
		"format": ext,
		"frames": w.Frames(),
	}).Debug("normalized waveform")

	return writeCanonicalWAV(outputPath, w)
}

// ffmpegDecode shells out to ffmpeg for containers without a native decoder,
// letting it downmix and resample to the canonical parameters directly.
func (n *Normalizer) ffmpegDecode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", fmt.Sprintf("%d", TargetChannels),
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-c:a", "pcm_s16le",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, n.FFmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func writeCanonicalWAV(path string, w *Waveform) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(out, TargetSampleRate, TargetBitDepth, TargetChannels, 1)

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		v := int(s * 32768.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = v
	}

	buf := &audiobuf.IntBuffer{
		Format:         &audiobuf.Format{NumChannels: TargetChannels, SampleRate: TargetSampleRate},
		Data:           data,
		SourceBitDepth: TargetBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		out.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return out.Close()
}
