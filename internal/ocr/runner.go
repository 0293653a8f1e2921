package ocr

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/repair"
)

// Runner drives an Engine over image directories.
type Runner struct {
	engine Engine
}

// NewRunner creates a runner around the given engine.
func NewRunner(engine Engine) *Runner {
	return &Runner{engine: engine}
}

// ProcessDirectory transcribes every jpeg in imagesDir and writes one
// <image>_result.json per image into resultsDir. Malformed payloads are
// repaired; the pre-repair version is kept alongside as <image>_raw.json.
// Per-image failures are recorded on the job and the run continues. The
// returned job is complete when the call returns; run the call in a
// goroutine and poll Progress for live tracking.
func (r *Runner) ProcessDirectory(ctx context.Context, imagesDir, resultsDir, prompt string) (*Job, error) {
	images, err := listImages(imagesDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ocr").
			Context("dir", resultsDir).
			Build()
	}

	job := newJob(len(images))
	defer job.done.Store(true)

	logger.Info("transcription run started",
		"job_id", job.ID, "dir", imagesDir, "images", len(images))

	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return job, err
		}

		start := time.Now()
		result := FileResult{Filename: image}

		resultPath, repaired, err := r.processImage(ctx, filepath.Join(imagesDir, image), resultsDir, prompt)
		result.Duration = time.Since(start)
		result.ResultPath = resultPath
		result.Repaired = repaired
		result.Err = err

		if err != nil {
			logger.Error("transcription failed", "job_id", job.ID, "file", image, "error", err)
		} else {
			logger.Info("image transcribed",
				"job_id", job.ID, "file", image,
				"repaired", repaired, "duration", result.Duration)
		}
		job.record(result)
	}

	processed, total, _ := job.Progress()
	logger.Info("transcription run finished",
		"job_id", job.ID, "processed", processed, "total", total,
		"success", job.SuccessCount())
	return job, nil
}

// processImage runs one image through the engine and writes its result file.
func (r *Runner) processImage(ctx context.Context, imagePath, resultsDir, prompt string) (resultPath string, repaired bool, err error) {
	text, err := r.engine.Transcribe(ctx, imagePath, prompt)
	if err != nil {
		return "", false, err
	}

	content := repair.StripMarkdownFence(text)
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		snippet := content
		if len(snippet) > 100 {
			snippet = snippet[:100]
		}
		return "", false, errors.Newf("engine returned non-JSON: %v (starts with %q)", err, snippet).
			Category(errors.CategoryJSONParsing).
			Component("ocr").
			Build()
	}

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))

	if issues := repair.Validate(payload); len(issues) > 0 {
		logger.Warn("payload needs repair", "file", filepath.Base(imagePath), "issues", len(issues))
		if err := writeJSON(filepath.Join(resultsDir, base+"_raw.json"), payload); err != nil {
			return "", false, err
		}
		payload = repair.Repair(payload)
		repaired = true
	}

	name := base + "_result.json"
	if err := writeJSON(filepath.Join(resultsDir, name), payload); err != nil {
		return "", repaired, err
	}
	return name, repaired, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ocr").
			Context("dir", dir).
			Build()
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg":
			images = append(images, entry.Name())
		}
	}
	return images, nil
}

func writeJSON(path string, payload map[string]any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ocr").
			Context("path", path).
			Build()
	}
	return nil
}
