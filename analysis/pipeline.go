// Package analysis runs the outfit-photo pipeline: object localization,
// per-region crops with background removal, visual search and generated
// shopping queries.
package analysis

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"regexp"
	"time"

	"openfashion/imaging"
	"openfashion/models"
	"openfashion/removebg"
	"openfashion/storage"
	"openfashion/vision"

	"go.uber.org/zap"
)

const (
	Padding          = 10
	MaxCandidates    = 10
	MaxRegionQueries = 5

	maxImageBytes = 20 << 20
)

// VisualSearcher finds catalogue products that look like an image.
type VisualSearcher interface {
	VisualMatches(ctx context.Context, imageURL, hint string) ([]models.Product, error)
}

// QueryGenerator proposes extra shopping searches for one region.
type QueryGenerator interface {
	RegionQueries(ctx context.Context, label, color string, candidates []models.Product, profile *models.StyleProfile) ([]string, error)
}

// Fetcher downloads a stored object.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Pipeline struct {
	Vision  vision.Localizer
	Storage storage.Uploader
	Remover removebg.Remover
	Search  VisualSearcher
	Queries QueryGenerator
	Fetcher Fetcher
	Log     *zap.Logger
}

// Run fetches the job's image and analyses it.
func (p *Pipeline) Run(ctx context.Context, job *models.AnalysisJob, profile *models.StyleProfile) (*models.AnalysisResult, error) {
	data, err := p.Fetcher.Fetch(ctx, job.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	return p.Analyze(ctx, job.JobID, data, profile)
}

// Analyze processes every detected region. Failures before the first region
// fail the whole run; a failing region is logged and skipped.
func (p *Pipeline) Analyze(ctx context.Context, jobID string, data []byte, profile *models.StyleProfile) (*models.AnalysisResult, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	objects, err := p.Vision.Localize(ctx, data)
	if err != nil {
		return nil, err
	}

	log := p.Log.With(zap.String("job_id", jobID))
	components := []models.Component{}
	var boxes []imaging.Box

	for _, obj := range objects {
		rect, ok := imaging.PaddedBox(img.Bounds(), obj.XMin, obj.YMin, obj.XMax, obj.YMax, Padding)
		if !ok {
			continue
		}
		comp, err := p.region(ctx, log, jobID, img, rect, obj, profile)
		if err != nil {
			log.Warn("[Analysis] component processing failed", zap.String("label", obj.Name), zap.Error(err))
			continue
		}
		components = append(components, *comp)
		boxes = append(boxes, imaging.Box{Rect: rect, Label: obj.Name, Color: comp.DominantColor})
	}

	annotated, err := imaging.EncodeBase64JPEG(imaging.Annotate(img, boxes))
	if err != nil {
		log.Warn("[Analysis] annotated preview failed", zap.Error(err))
		annotated = ""
	}
	return &models.AnalysisResult{AnnotatedImageBase64: annotated, Components: components}, nil
}

func (p *Pipeline) region(ctx context.Context, log *zap.Logger, jobID string, img image.Image, rect image.Rectangle, obj vision.Object, profile *models.StyleProfile) (*models.Component, error) {
	crop := imaging.Crop(img, rect)
	cropJPEG, err := imaging.EncodeJPEG(crop)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("%s_%s_%d_%d_%d", shortID(jobID), safeName(obj.Name), rect.Min.X, rect.Min.Y, time.Now().Unix())
	originalURL, err := p.Storage.Upload(ctx, cropJPEG, storage.FolderCrops, base+"_original")
	if err != nil {
		return nil, fmt.Errorf("upload crop: %w", err)
	}

	removedURL := ""
	if cutout, err := p.Remover.Remove(ctx, cropJPEG); err != nil {
		log.Warn("[Analysis] background removal failed", zap.String("label", obj.Name), zap.Error(err))
	} else if removedURL, err = p.Storage.Upload(ctx, cutout, storage.FolderCrops, base+"_removed"); err != nil {
		log.Warn("[Analysis] background-removed upload failed", zap.String("label", obj.Name), zap.Error(err))
		removedURL = ""
	}

	dominant := imaging.DominantColor(crop)
	colorName := imaging.ColorName(dominant)
	hint := colorName + " " + obj.Name

	candidates := p.search(ctx, log, originalURL, hint)
	if removedURL != "" {
		candidates = append(candidates, p.search(ctx, log, removedURL, hint)...)
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	queries, err := p.Queries.RegionQueries(ctx, obj.Name, colorName, candidates, profile)
	if err != nil {
		log.Warn("[Analysis] query generation failed", zap.String("label", obj.Name), zap.Error(err))
		queries = []string{}
	}
	if len(queries) > MaxRegionQueries {
		queries = queries[:MaxRegionQueries]
	}

	return &models.Component{
		Name:  obj.Name,
		Score: obj.Score,
		Box: models.BoundingBox{
			XMin: rect.Min.X - img.Bounds().Min.X,
			YMin: rect.Min.Y - img.Bounds().Min.Y,
			XMax: rect.Max.X - img.Bounds().Min.X,
			YMax: rect.Max.Y - img.Bounds().Min.Y,
		},
		DominantColor:    dominant,
		ColorName:        colorName,
		OriginalImageURL: originalURL,
		BgRemovedURL:     removedURL,
		ClothingItems:    candidates,
		SimilarQueries:   queries,
	}, nil
}

// search never fails the region; an upstream error yields no candidates.
func (p *Pipeline) search(ctx context.Context, log *zap.Logger, url, hint string) []models.Product {
	items, err := p.Search.VisualMatches(ctx, url, hint)
	if err != nil {
		log.Warn("[Analysis] visual search failed", zap.String("url", url), zap.Error(err))
		return []models.Product{}
	}
	return items
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func safeName(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// HTTPFetcher downloads stored images over HTTP.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes caps the download; zero means maxImageBytes.
	MaxBytes int64
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = maxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("fetch %s: image exceeds %d bytes", url, limit)
	}
	return data, nil
}
