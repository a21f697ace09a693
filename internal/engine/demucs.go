// Package engine drives the external Demucs separation process and collects
// its output stems.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Invoker runs demucs as a subprocess. The engine writes a nested directory
// tree (outDir/model/track/*.wav) which is flattened into outDir afterwards.
type Invoker struct {
	// Python is the interpreter used to launch `python -m demucs.separate`.
	Python string
	// Timeout bounds a single engine run. Zero means no bound.
	Timeout time.Duration
}

func NewInvoker(python string, timeout time.Duration) *Invoker {
	if python == "" {
		python = "python3"
	}
	return &Invoker{Python: python, Timeout: timeout}
}

// Separate runs the engine on inputPath and returns the flattened stem
// names found in outDir. Zero stems is an error even when the engine exits
// cleanly. There are no retries; one failed run is reported once.
func (v *Invoker) Separate(ctx context.Context, inputPath, outDir, model, twoStems string) ([]string, error) {
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	args := []string{
		"-m", "demucs.separate",
		"--out", outDir,
		"--name", model,
	}
	if twoStems != "" {
		args = append(args, "--two-stems", twoStems)
	}
	args = append(args, inputPath)

	cmd := exec.CommandContext(ctx, v.Python, args...)
	// Demucs picks a torchaudio backend at import time; soundfile avoids
	// depending on system codecs.
	cmd.Env = append(os.Environ(), "TORCHAUDIO_BACKEND=soundfile")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{"model": model, "input": inputPath}).Info("starting separation engine")
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("separation timed out after %s", v.Timeout)
	}
	if err != nil {
		diag := filterDiagnostics(stderr.String())
		if diag == "" {
			diag = fmt.Sprintf("demucs exited abnormally: %v", err)
		}
		return nil, fmt.Errorf("%s", diag)
	}

	stems, err := flattenStems(outDir, model)
	if err != nil {
		return nil, err
	}
	if len(stems) == 0 {
		msg := "separation finished but no WAV stems were produced"
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg += ": " + s
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return stems, nil
}

// filterDiagnostics strips known-benign warning lines (optional codec
// availability notices) from engine stderr, keeping the rest verbatim.
func filterDiagnostics(stderr string) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		if strings.Contains(line, "torchcodec") || strings.Contains(line, "ModuleNotFoundError") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
