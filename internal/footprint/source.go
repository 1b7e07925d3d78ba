package footprint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
	"github.com/jonjones-gis/lidar-picker/internal/geo"
)

// Source queries the remote footprint feature service. A non-2xx status
// or unparsable body surfaces as an error; it never panics the pipeline.
type Source struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	cache   *Cache // optional
}

func NewSource(logger *slog.Logger, client *http.Client, baseURL string, cache *Cache) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger, client: client, baseURL: baseURL, cache: cache}
}

// Fetch loads the full footprint collection, optionally restricted to one
// product category. The whole document is fetched at once; there is no
// incremental patching.
func (s *Source) Fetch(ctx context.Context, category string) (geo.Collection, error) {
	key := Key(s.baseURL, category)
	if s.cache != nil {
		if body, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("footprint cache read failed", "err", err)
		} else if ok {
			s.logger.Debug("footprint cache hit", "category", category)
			return s.decode(category, body)
		}
	}

	body, err := s.fetchRemote(ctx, category)
	if err != nil {
		return geo.Collection{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, body); err != nil {
			s.logger.Warn("footprint cache write failed", "err", err)
		}
	}
	return s.decode(category, body)
}

func (s *Source) fetchRemote(ctx context.Context, category string) ([]byte, error) {
	params := url.Values{}
	params.Set("f", "geojson")
	params.Set("where", "1=1")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	if category != "" {
		params.Set("where", fmt.Sprintf("Product = '%s'", strings.ReplaceAll(category, "'", "''")))
	}

	u := strings.TrimRight(s.baseURL, "/") + "/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("footprint service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("footprint_service", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("footprint service status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (s *Source) decode(category string, body []byte) (geo.Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return geo.Collection{}, fmt.Errorf("parse footprint geojson: %w", err)
	}
	schema := "lidar-extents"
	if category != "" {
		schema += ":" + category
	}
	return geo.FromFeatureCollection(schema, fc), nil
}
