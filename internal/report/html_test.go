package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/storage/memory"
)

func TestRenderHTMLSections(t *testing.T) {
	t.Parallel()

	out, err := RenderHTML(Generate(sampleRun()))
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<h1>Results</h1>")
	require.Contains(t, html, "run-42")
	require.Contains(t, html, "<h2>Broken</h2>")
	require.Contains(t, html, "<h2>Valid</h2>")
	require.Contains(t, html, `class="invalid"`)
	require.Contains(t, html, "https://example.com/c")
	require.Contains(t, html, "not found")
}

func TestRenderHTMLOmitsEmptySections(t *testing.T) {
	t.Parallel()

	run := sampleRun()
	run.Records = run.Records[:1]
	out, err := RenderHTML(Generate(run))
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<h2>Valid</h2>")
	require.NotContains(t, html, "<h2>Broken</h2>")
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	t.Parallel()

	run := checker.CheckRun{
		ID:     "run-esc",
		Status: checker.RunCompleted,
		Records: []checker.LinkRecord{
			{TargetURL: "https://example.com/x", Status: checker.LinkBroken, Reason: `<script>alert("x")</script>`},
		},
	}
	out, err := RenderHTML(Generate(run))
	require.NoError(t, err)
	require.NotContains(t, string(out), "<script>alert")
}

func TestWriterStoresBothArtifacts(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	writer := NewWriter(blobs, zap.NewNop())

	artifacts, err := writer.Write(context.Background(), Generate(sampleRun()))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/run-42/report.html", artifacts.HTMLURI)
	require.Equal(t, "memory://runs/run-42/report.json", artifacts.JSONURI)

	htmlBytes, ok := blobs.Object("runs/run-42/report.html")
	require.True(t, ok)
	require.Contains(t, string(htmlBytes), "Results")

	jsonBytes, ok := blobs.Object("runs/run-42/report.json")
	require.True(t, ok)
	require.Contains(t, string(jsonBytes), `"run_id": "run-42"`)
}

func TestWriterNilBlobStore(t *testing.T) {
	t.Parallel()

	writer := NewWriter(nil, nil)
	artifacts, err := writer.Write(context.Background(), Generate(sampleRun()))
	require.NoError(t, err)
	require.Empty(t, artifacts.HTMLURI)
}
