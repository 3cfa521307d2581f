package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// pdfURIPattern matches URI action annotations inside a raw PDF byte stream.
var pdfURIPattern = regexp.MustCompile(`/Type/Action/S/URI/URI\((.*?)\)`)

// StaticSource yields an explicitly configured list of target URLs.
type StaticSource struct {
	Targets []string
}

// Name implements Source.
func (s *StaticSource) Name() string { return "config" }

// Links implements Source.
func (s *StaticSource) Links(ctx context.Context, emit func(source, target string) error) error {
	for _, t := range s.Targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(s.Name(), t); err != nil {
			return err
		}
	}
	return nil
}

// PDFFileSource extracts link annotations from a PDF on disk.
type PDFFileSource struct {
	Path string
}

// Name implements Source.
func (s *PDFFileSource) Name() string { return s.Path }

// Links implements Source.
func (s *PDFFileSource) Links(ctx context.Context, emit func(source, target string) error) error {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("read pdf %s: %w", s.Path, err)
	}
	return emitPDFLinks(ctx, s.Name(), raw, emit)
}

// PDFURLSource downloads a PDF and extracts its link annotations. GitHub
// blob URLs are rewritten to their raw-content form first.
type PDFURLSource struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// Name implements Source.
func (s *PDFURLSource) Name() string { return s.URL }

// Links implements Source.
func (s *PDFURLSource) Links(ctx context.Context, emit func(source, target string) error) error {
	fetchURL, err := RewriteGitHubBlobURL(s.URL)
	if err != nil {
		return err
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return fmt.Errorf("build pdf request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download pdf %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download pdf %s: unexpected status %d", fetchURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pdf body: %w", err)
	}
	return emitPDFLinks(ctx, s.Name(), raw, emit)
}

func emitPDFLinks(ctx context.Context, source string, raw []byte, emit func(source, target string) error) error {
	seen := make(map[string]struct{})
	for _, match := range pdfURIPattern.FindAllSubmatch(raw, -1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := string(match[1])
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		if err := emit(source, target); err != nil {
			return err
		}
	}
	return nil
}

// RewriteGitHubBlobURL converts a github.com blob URL to the raw download
// form; any other URL is returned unchanged.
func RewriteGitHubBlobURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse pdf url: %w", err)
	}
	if !strings.EqualFold(u.Host, "github.com") {
		return raw, nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || parts[2] != "blob" {
		return raw, nil
	}
	owner, repo, branch := parts[0], parts[1], parts[3]
	filePath := strings.Join(parts[4:], "/")
	return fmt.Sprintf("https://github.com/%s/%s/raw/%s/%s", owner, repo, branch, filePath), nil
}

// HTMLPageSource scans one HTML page for anchor targets using colly.
type HTMLPageSource struct {
	PageURL   string
	UserAgent string
}

// Name implements Source.
func (s *HTMLPageSource) Name() string { return s.PageURL }

// Links implements Source.
func (s *HTMLPageSource) Links(ctx context.Context, emit func(source, target string) error) error {
	opts := []colly.CollectorOption{colly.MaxDepth(1)}
	if s.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(http.DefaultTransport)

	var emitErr error
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if emitErr != nil || ctx.Err() != nil {
			return
		}
		href := e.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		target := e.Request.AbsoluteURL(href)
		if target == "" {
			// Keep the raw value so it shows up as an invalid-url skip.
			target = href
		}
		if err := emit(s.Name(), target); err != nil {
			emitErr = err
		}
	})

	if err := c.Visit(s.PageURL); err != nil {
		return fmt.Errorf("scan page %s: %w", s.PageURL, err)
	}
	c.Wait()
	if emitErr != nil {
		return emitErr
	}
	return ctx.Err()
}

// SourcesFromSnapshot assembles the Source list for a run in a stable order:
// explicit URLs first, then the PDF inputs, then page scans.
func SourcesFromSnapshot(snap Snapshot) []Source {
	var sources []Source
	if len(snap.EntryURLs) > 0 {
		sources = append(sources, &StaticSource{Targets: snap.EntryURLs})
	}
	if snap.PDFPath != "" {
		sources = append(sources, &PDFFileSource{Path: snap.PDFPath})
	}
	if snap.PDFURL != "" {
		sources = append(sources, &PDFURLSource{URL: snap.PDFURL, UserAgent: snap.UserAgent})
	}
	for _, page := range snap.ScanPages {
		sources = append(sources, &HTMLPageSource{PageURL: page, UserAgent: snap.UserAgent})
	}
	return sources
}
