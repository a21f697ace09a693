package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/model"
	"github.com/stemsplit/api/internal/store"
)

var allowedExtensions = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"flac": true,
	"ogg":  true,
	"m4a":  true,
	"aac":  true,
}

// AllowedExtensions returns the upload allow-list for error messages.
func AllowedExtensions() []string {
	return []string{"mp3", "wav", "flac", "ogg", "m4a", "aac"}
}

// UploadService receives uploaded audio files and registers jobs for them
type UploadService struct {
	store      *store.Store
	sweeper    *RetentionSweeper
	uploadsDir string
	maxSize    int64
}

func NewUploadService(st *store.Store, sweeper *RetentionSweeper, uploadsDir string, maxSize int64) *UploadService {
	return &UploadService{
		store:      st,
		sweeper:    sweeper,
		uploadsDir: uploadsDir,
		maxSize:    maxSize,
	}
}

// Save validates and stores an uploaded file under its own job directory and
// creates the job record. Each upload also triggers an opportunistic
// retention sweep.
func (s *UploadService) Save(ctx context.Context, filename string, size int64, file io.Reader) (*model.UploadResponse, error) {
	if s.sweeper != nil {
		s.sweeper.Sweep()
	}

	ext := extension(filename)
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: allowed: %s", ErrUnsupportedType, strings.Join(AllowedExtensions(), ", "))
	}
	if size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	id := uuid.New().String()
	dir := filepath.Join(s.uploadsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	savePath := filepath.Join(dir, "input."+ext)
	if err := writeFile(savePath, file); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("save upload: %w", err)
	}

	job := model.Job{
		ID:        id,
		Status:    model.StatusUploaded,
		Progress:  0,
		Stems:     []string{},
		CreatedAt: time.Now(),
		InputPath: savePath,
	}
	if err := s.store.Create(job); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	log.WithFields(log.Fields{"file_id": id, "filename": filename, "size": size}).Info("upload registered")

	return &model.UploadResponse{
		FileID:   id,
		Filename: filename,
		Size:     size,
	}, nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
