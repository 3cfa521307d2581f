package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/storage"
)

// Artifacts holds the URIs of the written report artifacts.
type Artifacts struct {
	HTMLURI string `json:"html_uri"`
	JSONURI string `json:"json_uri"`
}

// Writer persists report artifacts through a blob store.
type Writer struct {
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewWriter constructs a Writer. A nil blob store discards artifacts.
func NewWriter(blobs storage.BlobStore, logger *zap.Logger) *Writer {
	if blobs == nil {
		blobs = storage.NoOpBlobStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{blobs: blobs, logger: logger}
}

// Write renders and stores the HTML and JSON artifacts for a report. Writing
// the same report twice overwrites the earlier artifacts at the same paths.
func (w *Writer) Write(ctx context.Context, rep Report) (Artifacts, error) {
	htmlBytes, err := RenderHTML(rep)
	if err != nil {
		return Artifacts{}, err
	}
	jsonBytes, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return Artifacts{}, fmt.Errorf("marshal json report: %w", err)
	}

	base := path.Join("runs", rep.RunID)
	htmlURI, err := w.blobs.PutObject(ctx, path.Join(base, "report.html"), "text/html; charset=utf-8", bytes.NewReader(htmlBytes))
	if err != nil {
		return Artifacts{}, fmt.Errorf("store html report: %w", err)
	}
	jsonURI, err := w.blobs.PutObject(ctx, path.Join(base, "report.json"), "application/json", bytes.NewReader(jsonBytes))
	if err != nil {
		return Artifacts{}, fmt.Errorf("store json report: %w", err)
	}

	w.logger.Info("report artifacts written",
		zap.String("run_id", rep.RunID),
		zap.String("html_uri", htmlURI),
		zap.String("json_uri", jsonURI),
	)
	return Artifacts{HTMLURI: htmlURI, JSONURI: jsonURI}, nil
}
