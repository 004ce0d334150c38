package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/platform/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GeocoderConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, opts...)
}

func TestClientResolve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dhaka, Bangladesh", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"Dhaka","address":{
			"city":"Dhaka","state":"Dhaka Division","countryName":"Bangladesh",
			"label":"Dhaka, Bangladesh"}}]}`))
	})

	loc := client.Resolve(context.Background(), "Dhaka, Bangladesh")
	require.False(t, loc.IsUnknown())
	assert.Equal(t, "Dhaka", loc.City)
	assert.Equal(t, "Dhaka Division", loc.Region)
	assert.Equal(t, "Bangladesh", loc.Country)
	assert.Equal(t, "Dhaka, Bangladesh", loc.Label)
}

func TestClientResolveFallsBackToCounty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"address":{
			"city":"Cork","county":"County Cork","countryName":"Ireland",
			"label":"Cork, Ireland"}}]}`))
	})

	loc := client.Resolve(context.Background(), "Cork")
	assert.Equal(t, "County Cork", loc.Region)
}

func TestClientResolveServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	loc := client.Resolve(context.Background(), "anywhere")
	assert.True(t, loc.IsUnknown())
	assert.Equal(t, "Unknown", loc.Label)
}

func TestClientResolveNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	assert.True(t, client.Resolve(context.Background(), "xyzzy").IsUnknown())
}

func TestClientResolveWithoutAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(config.GeocoderConfig{BaseURL: srv.URL, Timeout: time.Second})
	assert.True(t, client.Resolve(context.Background(), "Dhaka").IsUnknown())
	assert.False(t, called, "no API key must short-circuit before any HTTP call")
}

func TestClientResolveEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("unexpected HTTP call")
	})
	assert.True(t, client.Resolve(context.Background(), "   ").IsUnknown())
}

func TestStaticResolver(t *testing.T) {
	resolver := Static{
		"Dhaka": {City: "Dhaka", Country: "Bangladesh", Label: "Dhaka, Bangladesh"},
	}

	assert.Equal(t, "Dhaka", resolver.Resolve(context.Background(), "Dhaka").City)
	assert.Equal(t, "Dhaka", resolver.Resolve(context.Background(), "  Dhaka  ").City)
	assert.True(t, resolver.Resolve(context.Background(), "Mars").IsUnknown())
}
