package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairostech/ekco-tracker/backend/internal/geocode"
)

// newClient builds a Client pointed at the given test servers. An empty
// locationIQKey disables the LocationIQ provider, matching production
// behaviour when no key is configured.
func newClient(locationIQURL, nominatimURL, locationIQKey string) *geocode.Client {
	return geocode.NewClient(geocode.Options{
		LocationIQKey:     locationIQKey,
		LocationIQBaseURL: locationIQURL,
		NominatimBaseURL:  nominatimURL,
	})
}

func TestResolve_LocationIQFirst(t *testing.T) {
	liq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reverse", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"display_name":"1 Main Road, Cape Town, South Africa"}`))
	}))
	defer liq.Close()

	nominatimCalled := false
	nom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nominatimCalled = true
	}))
	defer nom.Close()

	c := newClient(liq.URL, nom.URL, "test-key")
	got := c.Resolve(context.Background(), -33.9, 18.4)

	assert.True(t, got.Succeeded)
	assert.Equal(t, "locationiq", got.Provider)
	assert.Equal(t, "1 Main Road, Cape Town, South Africa", got.Address)
	assert.False(t, nominatimCalled, "nominatim must not be consulted when LocationIQ succeeds")
}

func TestResolve_FallsBackToNominatim(t *testing.T) {
	liq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer liq.Close()

	nom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		w.Write([]byte(`{"address":{"road":"Main Road","city":"Cape Town","country":"South Africa"}}`))
	}))
	defer nom.Close()

	c := newClient(liq.URL, nom.URL, "test-key")
	got := c.Resolve(context.Background(), -33.9, 18.4)

	require.True(t, got.Succeeded)
	assert.Equal(t, "nominatim", got.Provider)
	assert.Equal(t, "Main Road, Cape Town, South Africa", got.Address)
}

func TestResolve_SkipsLocationIQWithoutKey(t *testing.T) {
	nom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{"city":"Cape Town"}}`))
	}))
	defer nom.Close()

	c := newClient("http://127.0.0.1:0", nom.URL, "")
	got := c.Resolve(context.Background(), -33.9, 18.4)

	require.True(t, got.Succeeded)
	assert.Equal(t, "nominatim", got.Provider)
}

// TestResolve_AllProvidersFail verifies the coordinate fallback: resolution
// degrades, it never errors.
func TestResolve_AllProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	c := newClient(failing.URL, failing.URL, "test-key")
	got := c.Resolve(context.Background(), -33.918861, 18.4233)

	assert.False(t, got.Succeeded)
	assert.Equal(t, "coordinates", got.Provider)
	assert.Equal(t, "Location (-33.918861, 18.423300)", got.Address)
}

func TestResolve_EmptyNominatimAddress(t *testing.T) {
	nom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{}}`))
	}))
	defer nom.Close()

	c := newClient("", nom.URL, "")
	got := c.Resolve(context.Background(), 0.5, 0.5)

	assert.False(t, got.Succeeded)
	assert.Equal(t, "Location (0.500000, 0.500000)", got.Address)
}

func TestFallbackAddress_SixDecimalPlaces(t *testing.T) {
	assert.Equal(t, "Location (1.000000, 2.000000)", geocode.FallbackAddress(1, 2))
}
