package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		check(r)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVisualMatchesPrefersMarketplaces(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_lens", q.Get("engine"))
		assert.Equal(t, "https://img/crop.jpg", q.Get("url"))
		assert.Equal(t, "red Shirt", q.Get("text"))
		assert.Equal(t, "key", q.Get("api_key"))
	}, `{"visual_matches":[
		{"title":"Generic","link":"https://a","source":"Amazon","thumbnail":"t1"},
		{"title":"Grail","link":"https://b","source":"Grailed","price":{"currency":"$","extracted_value":120},"thumbnail":"t2"}
	]}`)

	got, err := New("key").WithBaseURL(srv.URL).VisualMatches(context.Background(), "https://img/crop.jpg", "red Shirt")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Grail", got[0].Title)
	assert.Equal(t, "$ 120", got[0].Price)
}

func TestVisualMatchesFallsBackToTopFive(t *testing.T) {
	srv := serve(t, func(*http.Request) {}, `{"visual_matches":[
		{"title":"1"},{"title":"2"},{"title":"3"},{"title":"4"},{"title":"5"},{"title":"6"}
	]}`)

	got, err := New("key").WithBaseURL(srv.URL).VisualMatches(context.Background(), "u", "")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "N/A", got[0].Price)
}

func TestShopping(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		assert.Equal(t, "google_shopping", r.URL.Query().Get("engine"))
		assert.Equal(t, "black boots", r.URL.Query().Get("q"))
	}, `{"shopping_results":[
		{"title":"Boot A","product_link":"https://p/a","price":"$80.00","source":"Shop","rating":4.5,"reviews":12},
		{"title":"Boot B","link":"https://p/b"}
	]}`)

	got, err := New("key").WithBaseURL(srv.URL).Shopping(context.Background(), "black boots", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://p/a", got[0].Link)
	assert.Equal(t, "4.5", got[0].Rating)
	assert.Equal(t, "12", got[0].Reviews)
	assert.Equal(t, "N/A", got[1].Price)
}

func TestSearchErrorPayload(t *testing.T) {
	srv := serve(t, func(*http.Request) {}, `{"error":"Invalid API key."}`)

	_, err := New("key").WithBaseURL(srv.URL).Shopping(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key.")
}

func TestSearchWithoutKey(t *testing.T) {
	_, err := New("").VisualMatches(context.Background(), "u", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
