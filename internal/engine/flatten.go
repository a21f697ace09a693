package engine

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// flattenStems copies the engine's nested output (outDir/model/track/*.wav)
// into outDir as <stem>.wav and returns the stem names, sorted. A missing or
// misshapen tree yields an empty list, which the caller treats as "no stems
// found" rather than a crash.
func flattenStems(outDir, model string) ([]string, error) {
	modelDir := filepath.Join(outDir, model)
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, nil
	}

	var trackDir string
	for _, e := range entries {
		if e.IsDir() {
			trackDir = filepath.Join(modelDir, e.Name())
			break
		}
	}
	if trackDir == "" {
		return nil, nil
	}

	files, err := os.ReadDir(trackDir)
	if err != nil {
		return nil, nil
	}

	var stems []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".wav") {
			continue
		}
		stem := strings.TrimSuffix(f.Name(), ".wav")
		src := filepath.Join(trackDir, f.Name())
		dst := filepath.Join(outDir, stem+".wav")
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		stems = append(stems, stem)
	}

	sort.Strings(stems)
	return stems, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
