package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/repair"
)

// IngestResult aggregates one directory ingestion pass.
type IngestResult struct {
	Total    int
	Imported int
	Skipped  int
	Errors   []string
}

// IngestDirectory imports every OCR result file from a directory into the
// raw-transcription store. Re-running on the same directory is a no-op for
// files already ingested; per-file failures are collected and the pass
// continues.
func (s *Service) IngestDirectory(dir string) IngestResult {
	result := IngestResult{}
	suffix := s.settings.Ingest.FileSuffix

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("ingest directory unreadable", "dir", dir, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("reading %s: %v", dir, err))
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		result.Total++

		payload, err := readTranscriptionFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Error("ingest failed", "file", entry.Name(), "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}

		created, err := s.store.InsertTranscription(entry.Name(), payload)
		if err != nil {
			logger.Error("ingest insert failed", "file", entry.Name(), "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if !created {
			result.Skipped++
			continue
		}

		result.Imported++
		logger.Info("transcription ingested", "file", entry.Name())
	}

	return result
}

// readTranscriptionFile reads an OCR result file, strips an optional
// markdown fence and re-serializes the validated JSON.
func readTranscriptionFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryFileIO).
			Component("reconcile").
			Build()
	}

	content := repair.StripMarkdownFence(string(raw))

	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		snippet := content
		if len(snippet) > 100 {
			snippet = snippet[:100]
		}
		return "", errors.Newf("invalid JSON: %v (content starts with: %q)", err, snippet).
			Category(errors.CategoryJSONParsing).
			Component("reconcile").
			Build()
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(normalized), nil
}
