// Package bcgeo implements domain.Geocoder against the BC Address Geocoder
// REST API, plus a two-level result cache.
package bcgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
)

// DefaultBaseURL is the public BC Address Geocoder endpoint.
const DefaultBaseURL = "https://geocoder.api.gov.bc.ca"

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RateLimit caps outgoing requests per second; 0 disables limiting.
	RateLimit float64
	// Presentation is returned from PresentationConfig; nil disables KML hints.
	Presentation *domain.PresentationConfig
}

// Client implements domain.Geocoder over HTTP. It is safe for concurrent use.
type Client struct {
	apiKey       string
	httpClient   *http.Client
	baseURL      string
	limiter      *rate.Limiter
	config       domain.EngineConfig
	presentation *domain.PresentationConfig
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a BC geocoder client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Client{
		apiKey: opts.APIKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:      base,
		limiter:      limiter,
		config:       domain.DefaultEngineConfig(),
		presentation: opts.Presentation,
		metrics:      metrics,
		logger:       logger,
	}
}

func (c *Client) EngineConfig() domain.EngineConfig { return c.config }

func (c *Client) PresentationConfig() *domain.PresentationConfig { return c.presentation }

// Geocode sends q to the addresses endpoint and maps every returned feature.
func (c *Client) Geocode(ctx context.Context, q domain.Query) (domain.SearchResults, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.SearchResults{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	u := c.baseURL + "/addresses.geojson?" + queryParams(q, c.config.BaseSRID).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	start := domain.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.SearchResults{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.SearchResults{}, fmt.Errorf("geocoder API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.SearchResults{}, fmt.Errorf("decode response: %w", err)
	}

	sr := domain.SearchResults{
		Matches:         make([]domain.MatchResult, 0, len(fc.Features)),
		ExecutionTime:   float64(fc.ExecutionTime),
		SearchTimestamp: start,
	}
	if fc.ExecutionTime == 0 {
		sr.ExecutionTime = domain.ElapsedMillis(start)
	}
	if ts, err := time.Parse(searchTimestampLayout, fc.SearchTimestamp); err == nil {
		sr.SearchTimestamp = ts
	}
	srid := fc.srid(c.config.BaseSRID)
	for _, f := range fc.Features {
		sr.Matches = append(sr.Matches, f.toMatch(srid))
	}

	outcome := "success"
	if len(sr.Matches) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	c.logger.Debug("geocoded", "your_id", q.YourID, "matches", len(sr.Matches),
		"execution_time_ms", sr.ExecutionTime)
	return sr, nil
}

// queryParams renders q in the API's parameter vocabulary.
func queryParams(q domain.Query, outputSRS int) url.Values {
	v := url.Values{}
	set := func(name, value string) {
		if value != "" {
			v.Set(name, value)
		}
	}

	set("addressString", q.AddressString)
	v.Set("maxResults", strconv.Itoa(q.MaxResults))
	v.Set("minScore", strconv.Itoa(q.MinScore))
	v.Set("setBack", strconv.Itoa(q.SetBack))
	v.Set("echo", strconv.FormatBool(q.Echo))
	set("interpolation", string(q.Interpolation))
	set("locationDescriptor", string(q.LocationDescriptor))
	v.Set("outputSRS", strconv.Itoa(outputSRS))

	set("matchPrecision", joinPrecisions(q.MatchPrecision))
	set("matchPrecisionNot", joinPrecisions(q.MatchPrecisionNot))
	set("localities", strings.Join(q.Localities, ","))
	set("notLocalities", strings.Join(q.NotLocalities, ","))
	if q.Centre != nil {
		v.Set("centre", formatXY(q.Centre.X, q.Centre.Y))
	}
	if q.MaxDistance != nil {
		v.Set("maxDistance", strconv.Itoa(*q.MaxDistance))
	}
	if bb := q.BBox; bb != nil {
		v.Set("bbox", strings.Join([]string{
			formatFloat(bb.MinX), formatFloat(bb.MinY), formatFloat(bb.MaxX), formatFloat(bb.MaxY),
		}, ","))
	}

	set("siteName", q.SiteName)
	set("unitDesignator", q.UnitDesignator)
	set("unitNumber", q.UnitNumber)
	set("unitNumberSuffix", q.UnitNumberSuffix)
	set("civicNumber", q.CivicNumber)
	set("civicNumberSuffix", q.CivicNumberSuffix)
	set("streetName", q.StreetName)
	set("streetType", q.StreetType)
	set("streetDirection", q.StreetDirection)
	set("streetQualifier", q.StreetQualifier)
	set("localityName", q.LocalityName)
	set("provinceCode", q.ProvinceCode)

	if q.Extrapolate {
		v.Set("extrapolate", "true")
	}
	if q.ParcelPoint != nil {
		v.Set("parcelPoint", formatXY(q.ParcelPoint.X, q.ParcelPoint.Y))
	}
	return v
}

func joinPrecisions(ps []domain.MatchPrecision) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func formatXY(x, y float64) string { return formatFloat(x) + "," + formatFloat(y) }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
