package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"openfashion/models"
	"openfashion/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVision struct {
	objects []vision.Object
	err     error
}

func (f *fakeVision) Localize(context.Context, []byte) ([]vision.Object, error) {
	return f.objects, f.err
}

type fakeStorage struct {
	mu    sync.Mutex
	names []string
	fail  func(name string) bool
}

func (f *fakeStorage) Upload(_ context.Context, _ []byte, folder, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil && f.fail(name) {
		return "", errors.New("storage down")
	}
	f.names = append(f.names, name)
	return "https://cdn/" + folder + "/" + name, nil
}

type fakeRemover struct{ err error }

func (f *fakeRemover) Remove(_ context.Context, img []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return img, nil
}

type fakeSearch struct {
	perCall int
	hints   []string
	err     error
}

func (f *fakeSearch) VisualMatches(_ context.Context, url, hint string) ([]models.Product, error) {
	f.hints = append(f.hints, hint)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Product, f.perCall)
	for i := range out {
		out[i] = models.Product{Title: fmt.Sprintf("%s#%d", url, i)}
	}
	return out, nil
}

type fakeQueries struct {
	queries []string
	err     error
}

func (f *fakeQueries) RegionQueries(context.Context, string, string, []models.Product, *models.StyleProfile) ([]string, error) {
	return f.queries, f.err
}

func redSquarePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 20, 60, 60), image.NewUniform(color.RGBA{R: 220, G: 10, B: 10, A: 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newPipeline(v *fakeVision, s *fakeStorage, r *fakeRemover, sr *fakeSearch, q *fakeQueries) *Pipeline {
	return &Pipeline{Vision: v, Storage: s, Remover: r, Search: sr, Queries: q, Log: zap.NewNop()}
}

var shirt = vision.Object{Name: "Shirt", Score: 0.9, XMin: 0.3, YMin: 0.3, XMax: 0.5, YMax: 0.5}

func TestAnalyzeRegion(t *testing.T) {
	store := &fakeStorage{}
	search := &fakeSearch{perCall: 7}
	p := newPipeline(&fakeVision{objects: []vision.Object{shirt}}, store, &fakeRemover{}, search,
		&fakeQueries{queries: []string{"a", "b", "c", "d", "e", "f"}})

	res, err := p.Analyze(context.Background(), "job-1234567890", redSquarePNG(t), nil)
	require.NoError(t, err)
	require.Len(t, res.Components, 1)

	c := res.Components[0]
	assert.Equal(t, "Shirt", c.Name)
	assert.Equal(t, models.BoundingBox{XMin: 20, YMin: 20, XMax: 60, YMax: 60}, c.Box)
	assert.Equal(t, "red", c.ColorName)
	assert.True(t, strings.HasSuffix(c.OriginalImageURL, "_original"))
	assert.True(t, strings.HasSuffix(c.BgRemovedURL, "_removed"))
	assert.Len(t, c.ClothingItems, MaxCandidates)
	assert.True(t, strings.HasPrefix(c.ClothingItems[0].Title, c.OriginalImageURL), "original results come first")
	assert.Len(t, c.SimilarQueries, MaxRegionQueries)
	assert.Equal(t, []string{"red Shirt", "red Shirt"}, search.hints)
	assert.NotEmpty(t, res.AnnotatedImageBase64)
}

func TestAnalyzeBackgroundRemovalFailureIsNotFatal(t *testing.T) {
	search := &fakeSearch{perCall: 3}
	p := newPipeline(&fakeVision{objects: []vision.Object{shirt}}, &fakeStorage{},
		&fakeRemover{err: errors.New("402")}, search, &fakeQueries{err: errors.New("llm down")})

	res, err := p.Analyze(context.Background(), "job", redSquarePNG(t), nil)
	require.NoError(t, err)
	require.Len(t, res.Components, 1)

	c := res.Components[0]
	assert.Empty(t, c.BgRemovedURL)
	assert.Len(t, c.ClothingItems, 3)
	assert.Equal(t, []string{}, c.SimilarQueries)
	assert.Len(t, search.hints, 1, "only the original crop is searched")
}

func TestAnalyzeSkipsBadRegions(t *testing.T) {
	store := &fakeStorage{fail: func(name string) bool { return strings.Contains(name, "Hat") }}
	objects := []vision.Object{
		{Name: "Off", XMin: 1.5, YMin: 0.1, XMax: 1.8, YMax: 0.2},
		{Name: "Hat", XMin: 0.1, YMin: 0.1, XMax: 0.2, YMax: 0.2},
		shirt,
	}
	p := newPipeline(&fakeVision{objects: objects}, store, &fakeRemover{}, &fakeSearch{err: errors.New("serp down")}, &fakeQueries{})

	res, err := p.Analyze(context.Background(), "job", redSquarePNG(t), nil)
	require.NoError(t, err)
	require.Len(t, res.Components, 1)
	assert.Equal(t, "Shirt", res.Components[0].Name)
	assert.Equal(t, []models.Product{}, res.Components[0].ClothingItems)
}

func TestAnalyzeFailsBeforeRegions(t *testing.T) {
	p := newPipeline(&fakeVision{err: errors.New("quota")}, &fakeStorage{}, &fakeRemover{}, &fakeSearch{}, &fakeQueries{})

	_, err := p.Analyze(context.Background(), "job", redSquarePNG(t), nil)
	assert.EqualError(t, err, "quota")

	_, err = p.Analyze(context.Background(), "job", []byte("not an image"), nil)
	assert.Error(t, err)
}

func TestRunFetchesImage(t *testing.T) {
	data := redSquarePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := newPipeline(&fakeVision{}, &fakeStorage{}, &fakeRemover{}, &fakeSearch{}, &fakeQueries{})
	p.Fetcher = NewHTTPFetcher()

	res, err := p.Run(context.Background(), &models.AnalysisJob{JobID: "j", ImageURL: srv.URL + "/img.png"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Components)

	_, err = p.Run(context.Background(), &models.AnalysisJob{JobID: "j", ImageURL: srv.URL + "/missing"}, nil)
	assert.Error(t, err)
}

func TestHTTPFetcherRejectsOversizedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 64))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	f.MaxBytes = 64
	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, data, 64)

	f.MaxBytes = 63
	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "exceeds 63 bytes")
}
