package removebg

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "auto", r.FormValue("size"))

		f, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "jpeg-bytes", string(data))

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	out, err := New("key").WithBaseURL(srv.URL).Remove(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(out))
}

func TestRemoveReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"Insufficient credits"}]}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	_, err := New("key").WithBaseURL(srv.URL).Remove(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
}

func TestRemoveWithoutKey(t *testing.T) {
	_, err := New("").Remove(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
