// Package vision wraps Google Cloud Vision object localization.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"openfashion/metrics"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

// Object is one localized object with its box in normalized [0,1] coordinates.
type Object struct {
	Name  string
	Score float64
	XMin  float64
	YMin  float64
	XMax  float64
	YMax  float64
}

// Localizer finds objects in an encoded image.
type Localizer interface {
	Localize(ctx context.Context, img []byte) ([]Object, error)
}

type Client struct {
	svc        *visionapi.Service
	maxResults int64
}

// New builds a client from an API key, falling back to a credentials file
// and then to application default credentials.
func New(ctx context.Context, apiKey, credentialsFile string, extra ...option.ClientOption) (*Client, error) {
	opts := extra
	switch {
	case apiKey != "":
		opts = append(opts, option.WithAPIKey(apiKey))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision service: %w", err)
	}
	return &Client{svc: svc, maxResults: 20}, nil
}

func (c *Client) Localize(ctx context.Context, img []byte) ([]Object, error) {
	objects, err := c.localize(ctx, img)
	metrics.ObserveUpstream("vision", err)
	return objects, err
}

func (c *Client) localize(ctx context.Context, img []byte) ([]Object, error) {
	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(img)},
			Features: []*visionapi.Feature{{Type: "OBJECT_LOCALIZATION", MaxResults: c.maxResults}},
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, errors.New("vision annotate: empty response")
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate: %s", first.Error.Message)
	}

	out := make([]Object, 0, len(first.LocalizedObjectAnnotations))
	for _, ann := range first.LocalizedObjectAnnotations {
		if ann.BoundingPoly == nil {
			continue
		}
		obj, ok := fromVertices(ann.Name, ann.Score, ann.BoundingPoly.NormalizedVertices)
		if ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// fromVertices takes the top-left and bottom-right corners of a
// four-vertex polygon. Vision omits zero coordinates, which decode as 0.
func fromVertices(name string, score float64, vs []*visionapi.NormalizedVertex) (Object, bool) {
	if len(vs) < 3 || vs[0] == nil || vs[2] == nil {
		return Object{}, false
	}
	return Object{
		Name:  name,
		Score: score,
		XMin:  vs[0].X,
		YMin:  vs[0].Y,
		XMax:  vs[2].X,
		YMax:  vs[2].Y,
	}, true
}

// Disabled fails every call with Err. It stands in when the client could
// not be built at startup.
type Disabled struct {
	Err error
}

func (d Disabled) Localize(context.Context, []byte) ([]Object, error) {
	return nil, d.Err
}
