package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/model"
	"github.com/stemsplit/api/internal/store"
	"github.com/stemsplit/api/internal/websocket"
)

// Engine runs the external separation process and returns the stem names it
// flattened into outDir.
type Engine interface {
	Separate(ctx context.Context, inputPath, outDir, model, twoStems string) ([]string, error)
}

// Normalizer converts uploads into the canonical waveform.
type Normalizer interface {
	Canonical(path string) bool
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Dispatcher hands a claimed job to a background executor. When none is
// configured the pipeline runs on a goroutine in-process.
type Dispatcher interface {
	Dispatch(ctx context.Context, fileID string, params model.SeparationParams) error
}

// SeparationService owns the job pipeline: claim, normalize, invoke the
// engine, finalize, clean up.
type SeparationService struct {
	store      *store.Store
	normalizer Normalizer
	engine     Engine
	hub        *websocket.Hub
	outputsDir string
	dispatcher Dispatcher
}

func NewSeparationService(st *store.Store, norm Normalizer, eng Engine, hub *websocket.Hub, outputsDir string) *SeparationService {
	return &SeparationService{
		store:      st,
		normalizer: norm,
		engine:     eng,
		hub:        hub,
		outputsDir: outputsDir,
	}
}

// UseDispatcher routes background execution through d (the redis queue
// driver) instead of an in-process goroutine.
func (s *SeparationService) UseDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Start claims the job and launches background separation. Exactly one
// caller wins the uploaded→processing transition; the rest get
// ErrAlreadyStarted and trigger no work.
func (s *SeparationService) Start(ctx context.Context, req *model.SeparateRequest) (*model.SeparateResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = model.ModelHTDemucs
	}
	if !model.ValidModel(modelName) {
		return nil, ErrInvalidModel
	}

	if _, err := s.store.Get(req.FileID); err != nil {
		return nil, ErrJobNotFound
	}

	if !s.store.TryTransition(req.FileID, model.StatusUploaded, model.StatusProcessing) {
		return nil, ErrAlreadyStarted
	}

	params := model.SeparationParams{Model: modelName}
	if req.StemMode == "" || req.StemMode == "vocals" {
		params.TwoStems = "vocals"
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, req.FileID, params); err != nil {
			s.fail(req.FileID, "failed to queue separation: "+err.Error())
			return nil, fmt.Errorf("dispatch separation: %w", err)
		}
	} else {
		go s.Process(context.Background(), req.FileID, params)
	}

	return &model.SeparateResponse{FileID: req.FileID, Status: "started"}, nil
}

// Process runs the pipeline for a claimed job. All failures land on the job
// record; the uploaded file and any transient converted file are removed on
// every exit path, best-effort.
func (s *SeparationService) Process(ctx context.Context, fileID string, params model.SeparationParams) error {
	job, err := s.store.Get(fileID)
	if err != nil {
		return err
	}

	inputPath := job.InputPath
	var converted string
	defer func() {
		for _, p := range []string{inputPath, converted} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.WithError(err).WithField("path", p).Debug("transient file cleanup failed")
			}
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(fileID, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	s.progress(fileID, 5)

	outDir := filepath.Join(s.outputsDir, fileID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		s.fail(fileID, "prepare output directory: "+err.Error())
		return nil
	}

	engineInput := inputPath
	if !s.normalizer.Canonical(inputPath) {
		converted = convertedPath(inputPath)
		if err := s.normalizer.Normalize(ctx, inputPath, converted); err != nil {
			s.fail(fileID, err.Error())
			return nil
		}
		engineInput = converted
	}
	s.progress(fileID, 20)

	stems, err := s.engine.Separate(ctx, engineInput, outDir, params.Model, params.TwoStems)
	s.progress(fileID, 85)
	if err != nil {
		s.fail(fileID, err.Error())
		return nil
	}

	s.store.Update(fileID, func(j *model.Job) {
		j.Status = model.StatusDone
		j.Progress = 100
		j.Stems = stems
	})
	s.hub.BroadcastComplete(fileID, stems)
	log.WithFields(log.Fields{"file_id": fileID, "stems": stems}).Info("separation finished")
	return nil
}

// Status returns the polled view of a job.
func (s *SeparationService) Status(fileID string) (*model.StatusResponse, error) {
	job, err := s.store.Get(fileID)
	if err != nil {
		return nil, ErrJobNotFound
	}

	stems := job.Stems
	if stems == nil {
		stems = []string{}
	}
	return &model.StatusResponse{
		Status:   job.Status,
		Progress: job.Progress,
		Stems:    stems,
		Error:    job.Error,
	}, nil
}

// StemPath resolves a stem name to its file under the job's output
// directory. Path separators and traversal sequences are rejected before any
// file-system access.
func (s *SeparationService) StemPath(fileID, stem string) (string, error) {
	if stem == "" || strings.Contains(stem, "..") || strings.ContainsAny(stem, `/\`) {
		return "", ErrInvalidStem
	}
	if _, err := s.store.Get(fileID); err != nil {
		return "", ErrJobNotFound
	}

	path := filepath.Join(s.outputsDir, fileID, stem+".wav")
	if _, err := os.Stat(path); err != nil {
		return "", ErrStemNotFound
	}
	return path, nil
}

func (s *SeparationService) progress(fileID string, progress int) {
	s.store.Update(fileID, func(j *model.Job) {
		if progress > j.Progress {
			j.Progress = progress
		}
	})
	s.hub.BroadcastProgress(fileID, model.StatusProcessing, progress)
}

func (s *SeparationService) fail(fileID, message string) {
	s.store.Update(fileID, func(j *model.Job) {
		j.Status = model.StatusError
		j.Error = &message
	})
	s.hub.BroadcastError(fileID, message)
	log.WithField("file_id", fileID).Warnf("separation failed: %s", message)
}

// convertedPath is the transient canonical file written beside the upload,
// e.g. uploads/<id>/input.mp3 -> uploads/<id>/input_converted.wav.
func convertedPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_converted.wav"
}
