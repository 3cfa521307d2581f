// Package update checks GitHub releases for newer versions of the tool.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCheckInProgress is returned when a check is requested while another one
// is still running.
var ErrCheckInProgress = errors.New("update check already in progress")

// Outcome classifies the comparison between the running and latest versions.
type Outcome string

// Possible comparison outcomes.
const (
	OutcomeUpToDate        Outcome = "up_to_date"
	OutcomeUpdateAvailable Outcome = "update_available"
	OutcomeAhead           Outcome = "ahead"
)

// Result captures one completed update check.
type Result struct {
	Outcome        Outcome   `json:"outcome"`
	CurrentVersion string    `json:"current_version"`
	LatestVersion  string    `json:"latest_version"`
	ReleaseURL     string    `json:"release_url,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

const defaultBaseURL = "https://api.github.com"

// Checker queries the GitHub releases API. At most one check runs at a time.
type Checker struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
	current string
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight bool
	last     *Result
}

// Option customizes a Checker.
type Option func(*Checker)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBaseURL overrides the GitHub API base URL (primarily for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *Checker) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Checker for the given repository and running version.
func New(owner, repo, currentVersion string, opts ...Option) *Checker {
	c := &Checker{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultBaseURL,
		owner:   owner,
		repo:    repo,
		current: currentVersion,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type latestRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check fetches the latest release and compares it to the running version.
// Concurrent calls beyond the first return ErrCheckInProgress.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Result{}, ErrCheckInProgress
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	release, err := c.fetchLatest(ctx)
	if err != nil {
		c.logger.Warn("update check failed", zap.Error(err))
		return Result{}, err
	}

	result := Result{
		CurrentVersion: c.current,
		LatestVersion:  strings.TrimPrefix(release.TagName, "v"),
		ReleaseURL:     release.HTMLURL,
		CheckedAt:      time.Now().UTC(),
	}
	switch compareVersions(strings.TrimPrefix(c.current, "v"), result.LatestVersion) {
	case -1:
		result.Outcome = OutcomeUpdateAvailable
	case 0:
		result.Outcome = OutcomeUpToDate
	default:
		result.Outcome = OutcomeAhead
	}

	c.mu.Lock()
	c.last = &result
	c.mu.Unlock()

	c.logger.Info("update check completed",
		zap.String("outcome", string(result.Outcome)),
		zap.String("latest", result.LatestVersion),
	)
	return result, nil
}

// Last returns the most recent successful check result.
func (c *Checker) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

func (c *Checker) fetchLatest(ctx context.Context) (latestRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return latestRelease{}, fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return latestRelease{}, fmt.Errorf("fetch latest release: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return latestRelease{}, fmt.Errorf("fetch latest release: unexpected status %d", resp.StatusCode)
	}
	var release latestRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return latestRelease{}, fmt.Errorf("decode release response: %w", err)
	}
	if release.TagName == "" {
		return latestRelease{}, errors.New("release response missing tag name")
	}
	return release, nil
}

// compareVersions orders two dotted numeric versions, returning -1, 0, or 1.
// Non-numeric segments compare lexically so pre-release tags still order
// deterministically.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := "0", "0"
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		switch {
		case aerr == nil && berr == nil:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		default:
			if av != bv {
				if av < bv {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}
