// Package geocode resolves coordinates to human-readable addresses using a
// chain of external providers with graceful degradation: LocationIQ first,
// OpenStreetMap Nominatim second, and a formatted coordinate string when
// every provider fails. Resolution never returns an error to callers — a
// failed lookup degrades to coordinates instead of aborting an export.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is one resolved address.
type Result struct {
	Address  string
	Provider string // "locationiq", "nominatim", or "coordinates"

	// Succeeded is false when the address is a coordinate fallback.
	Succeeded bool
}

// Resolver is the capability the export pipeline depends on. The concrete
// Client lives here; tests inject deterministic fakes.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) Result
}

// Client resolves addresses against the real provider chain. The zero value
// is not usable; construct with NewClient.
type Client struct {
	locationIQKey     string
	locationIQBaseURL string
	nominatimBaseURL  string
	userAgent         string

	// fallbackPause is the wait between provider attempts, a courtesy to
	// free-tier rate limits.
	fallbackPause time.Duration

	httpClient *http.Client
	log        *slog.Logger
}

// Options configures a Client. Zero values get sensible defaults.
type Options struct {
	// LocationIQKey enables the LocationIQ provider. Empty skips it.
	LocationIQKey     string
	LocationIQBaseURL string // default "https://us1.locationiq.com"
	NominatimBaseURL  string // default "https://nominatim.openstreetmap.org"
	UserAgent         string // default "ekco-tracker/1.0"
	FallbackPause     time.Duration
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// NewClient constructs a Client with the given options.
func NewClient(opts Options) *Client {
	c := &Client{
		locationIQKey:     opts.LocationIQKey,
		locationIQBaseURL: opts.LocationIQBaseURL,
		nominatimBaseURL:  opts.NominatimBaseURL,
		userAgent:         opts.UserAgent,
		fallbackPause:     opts.FallbackPause,
		httpClient:        opts.HTTPClient,
		log:               opts.Logger,
	}
	if c.locationIQBaseURL == "" {
		c.locationIQBaseURL = "https://us1.locationiq.com"
	}
	if c.nominatimBaseURL == "" {
		c.nominatimBaseURL = "https://nominatim.openstreetmap.org"
	}
	if c.userAgent == "" {
		c.userAgent = "ekco-tracker/1.0"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// FallbackAddress formats a coordinate pair the way exports present
// unresolvable locations, e.g. "Location (-33.918861, 18.423300)".
func FallbackAddress(lat, lon float64) string {
	return fmt.Sprintf("Location (%.6f, %.6f)", lat, lon)
}

// Resolve tries each provider in order and returns the first successful
// address. When all providers fail it returns the coordinate fallback with
// Succeeded=false. The per-call context bounds the whole chain.
func (c *Client) Resolve(ctx context.Context, lat, lon float64) Result {
	type provider struct {
		name string
		fn   func(context.Context, float64, float64) (string, error)
	}

	providers := []provider{}
	if c.locationIQKey != "" {
		providers = append(providers, provider{"locationiq", c.resolveLocationIQ})
	}
	providers = append(providers, provider{"nominatim", c.resolveNominatim})

	for i, p := range providers {
		if i > 0 && c.fallbackPause > 0 {
			select {
			case <-time.After(c.fallbackPause):
			case <-ctx.Done():
				return Result{Address: FallbackAddress(lat, lon), Provider: "coordinates"}
			}
		}

		address, err := p.fn(ctx, lat, lon)
		if err != nil {
			c.log.Warn("geocoder provider failed",
				"provider", p.name, "lat", lat, "lon", lon, "error", err)
			continue
		}
		return Result{Address: address, Provider: p.name, Succeeded: true}
	}

	return Result{Address: FallbackAddress(lat, lon), Provider: "coordinates"}
}

// resolveLocationIQ queries the LocationIQ reverse endpoint and returns its
// display_name.
func (c *Client) resolveLocationIQ(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("key", c.locationIQKey)
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.getJSON(ctx, c.locationIQBaseURL+"/v1/reverse?"+params.Encode(), &payload); err != nil {
		return "", err
	}
	if payload.DisplayName == "" {
		return "", errors.New("no address found")
	}
	return payload.DisplayName, nil
}

// resolveNominatim queries OSM Nominatim and assembles a readable address
// from its structured parts (road before suburb before city, state and
// country last).
func (c *Client) resolveNominatim(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("zoom", "18")
	params.Set("addressdetails", "1")

	var payload struct {
		Address struct {
			Road        string `json:"road"`
			HouseNumber string `json:"house_number"`
			Suburb      string `json:"suburb"`
			City        string `json:"city"`
			Town        string `json:"town"`
			Village     string `json:"village"`
			State       string `json:"state"`
			Country     string `json:"country"`
		} `json:"address"`
	}
	if err := c.getJSON(ctx, c.nominatimBaseURL+"/reverse?"+params.Encode(), &payload); err != nil {
		return "", err
	}

	a := payload.Address
	var parts []string
	for _, p := range []string{a.Road, a.HouseNumber, a.Suburb, a.City, a.Town, a.Village, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no address found")
	}
	return strings.Join(parts, ", "), nil
}

// getJSON performs a GET with the client's User-Agent and decodes the JSON
// response body into out. Non-2xx statuses are errors.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
