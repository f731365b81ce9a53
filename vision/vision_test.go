package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestLocalizeParsesAnnotations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "images:annotate")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reqs := body["requests"].([]interface{})
		features := reqs[0].(map[string]interface{})["features"].([]interface{})
		assert.Equal(t, "OBJECT_LOCALIZATION", features[0].(map[string]interface{})["type"])

		_, _ = w.Write([]byte(`{"responses":[{"localizedObjectAnnotations":[
			{"name":"Shirt","score":0.91,"boundingPoly":{"normalizedVertices":[
				{"x":0.1,"y":0.2},{"x":0.6,"y":0.2},{"x":0.6,"y":0.7},{"x":0.1,"y":0.7}]}},
			{"name":"Shoe","score":0.8,"boundingPoly":{"normalizedVertices":[
				{},{"x":0.3},{"x":0.3,"y":0.4},{"y":0.4}]}}
		]}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	objects, err := c.Localize(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, Object{Name: "Shirt", Score: 0.91, XMin: 0.1, YMin: 0.2, XMax: 0.6, YMax: 0.7}, objects[0])
	assert.Equal(t, Object{Name: "Shoe", Score: 0.8, XMin: 0, YMin: 0, XMax: 0.3, YMax: 0.4}, objects[1])
}

func TestLocalizeReportsPerImageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	_, err = c.Localize(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad image data.")
}
