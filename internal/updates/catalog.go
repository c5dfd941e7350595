package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wledfleet/wledd/internal/errors"
)

const defaultCatalogBaseURL = "https://api.github.com"

// CatalogSource fetches the firmware release listing for one repository.
// The update pipeline itself never performs I/O; it only consumes the cached
// slice this source produces.
type CatalogSource struct {
	logger     *slog.Logger
	repo       string // "owner/name"
	baseURL    string
	httpClient *http.Client
}

// NewCatalogSource creates a source for the given "owner/name" repository.
func NewCatalogSource(repo string, logger *slog.Logger) *CatalogSource {
	return &CatalogSource{
		logger:     logger,
		repo:       repo,
		baseURL:    defaultCatalogBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// releaseJSON is the subset of the GitHub release object the pipeline needs.
type releaseJSON struct {
	TagName     string    `json:"tag_name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Fetch retrieves the current release listing.
func (s *CatalogSource) Fetch(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=30", s.baseURL, s.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Networkf("failed to fetch release catalog: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Networkf("release catalog returned status %d", resp.StatusCode)
	}

	var raw []releaseJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Networkf("failed to decode release catalog: %v", err)
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		if r.TagName == "" {
			continue
		}
		releases = append(releases, Release{
			Tag:         r.TagName,
			Prerelease:  r.Prerelease,
			PublishedAt: r.PublishedAt,
		})
	}
	s.logger.Debug("catalog: fetched releases", "repo", s.repo, "count", len(releases))
	return releases, nil
}

// Run refreshes the catalog on a timer until ctx is cancelled, handing each
// successful fetch to onUpdate. A failed refresh keeps the previous catalog;
// the next tick tries again.
func (s *CatalogSource) Run(ctx context.Context, interval time.Duration, onUpdate func([]Release)) {
	refresh := func() {
		fetchCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		releases, err := s.Fetch(fetchCtx)
		if err != nil {
			s.logger.Warn("catalog: refresh failed", "repo", s.repo, "error", err)
			return
		}
		onUpdate(releases)
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
