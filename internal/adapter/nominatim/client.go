// Package nominatim resolves locality boundaries through the Nominatim
// search API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const userAgent = "heat-insight-engine/1.0"

// Client implements boundary.Source.
type Client struct {
	httpClient *http.Client
	baseURL    string
	region     string
	logger     *slog.Logger
}

// NewClient creates a Nominatim boundary source. region is appended to every
// search to disambiguate common names.
func NewClient(baseURL, region string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		region:  region,
		logger:  logger,
	}
}

// Fetch searches for name and returns the first result with an area geometry.
func (c *Client) Fetch(ctx context.Context, name string) (boundary.Geometry, error) {
	query := name
	if c.region != "" {
		query = fmt.Sprintf("%s, %s", name, c.region)
	}
	params := url.Values{
		"q":               {query},
		"format":          {"jsonv2"},
		"polygon_geojson": {"1"},
		"limit":           {"3"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return boundary.Geometry{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return boundary.Geometry{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return boundary.Geometry{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return boundary.Geometry{}, fmt.Errorf("decode response: %w", err)
	}

	for _, p := range places {
		if len(p.GeoJSON) == 0 {
			continue
		}
		g, err := boundary.ParseGeoJSON(p.GeoJSON)
		if errors.Is(err, boundary.ErrUnsupportedGeometry) {
			// Point results for villages or landmarks with the same name.
			continue
		}
		if err != nil {
			return boundary.Geometry{}, fmt.Errorf("decode geometry for %s: %w", p.DisplayName, err)
		}
		if !g.Empty() {
			return g, nil
		}
	}
	c.logger.Debug("nominatim returned no area", "locality", name, "results", len(places))
	return boundary.Geometry{}, boundary.ErrNotFound
}

// Nominatim API response types.

type place struct {
	OSMType     string          `json:"osm_type"`
	DisplayName string          `json:"display_name"`
	GeoJSON     json.RawMessage `json:"geojson"`
}
