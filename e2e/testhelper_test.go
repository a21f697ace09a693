package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	audiobuf "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stemsplit/api/internal/audio"
	"github.com/stemsplit/api/internal/handler"
	"github.com/stemsplit/api/internal/service"
	"github.com/stemsplit/api/internal/store"
	ws "github.com/stemsplit/api/internal/websocket"
)

// stubEngine stands in for demucs: it writes flat stem WAVs straight into
// the job's output directory and reports their names.
type stubEngine struct {
	stems []string
	err   error
}

func (s *stubEngine) Separate(ctx context.Context, inputPath, outDir, model, twoStems string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, stem := range s.stems {
		if err := writeStereoWAV(filepath.Join(outDir, stem+".wav"), 4410); err != nil {
			return nil, err
		}
	}
	return s.stems, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.Store
}

// setupApp composes the Fiber app the way cmd/server does, with the local
// queue driver and the given engine in place of demucs.
func setupApp(t *testing.T, eng service.Engine) *testApp {
	t.Helper()

	uploadsDir := t.TempDir()
	outputsDir := t.TempDir()

	jobStore := store.New()
	hub := ws.NewHub()
	go hub.Run()

	normalizer := audio.NewNormalizer("")
	sweeper := service.NewRetentionSweeper(jobStore, uploadsDir, outputsDir, time.Hour)
	uploadService := service.NewUploadService(jobStore, sweeper, uploadsDir, 200<<20)
	separationService := service.NewSeparationService(jobStore, normalizer, eng, hub, outputsDir)

	validate := validator.New()
	uploadHandler := handler.NewUploadHandler(uploadService)
	separationHandler := handler.NewSeparationHandler(separationService, validate)

	app := fiber.New(fiber.Config{BodyLimit: 208 << 20})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/upload", uploadHandler.Upload)
	api.Post("/separate", separationHandler.Separate)
	api.Get("/status/:fileId", separationHandler.Status)
	api.Get("/download/:fileId/:stem", separationHandler.Download)

	return &testApp{app: app, store: jobStore}
}

// writeStereoWAV writes a small canonical-format WAV file.
func writeStereoWAV(path string, frames int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, audio.TargetSampleRate, audio.TargetBitDepth, audio.TargetChannels, 1)
	data := make([]int, frames*2)
	for i := range data {
		data[i] = (i % 500) - 250
	}
	buf := &audiobuf.IntBuffer{
		Format:         &audiobuf.Format{NumChannels: 2, SampleRate: audio.TargetSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// makeMonoWAV returns the bytes of a mono 22.05 kHz WAV of the given length.
func makeMonoWAV(t *testing.T, seconds int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mono.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	const rate = 22050
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, rate*seconds)
	for i := range data {
		data[i] = (i % 800) - 400
	}
	buf := &audiobuf.IntBuffer{
		Format:         &audiobuf.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// uploadRequest builds a multipart/form-data request carrying the file.
func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", body, err)
	}
	return result
}
