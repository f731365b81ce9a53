package removebg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"openfashion/metrics"
)

const defaultURL = "https://api.remove.bg/v1.0/removebg"

var ErrNotConfigured = errors.New("remove.bg API key is not set")

// Remover strips the background from an image and returns the cut-out PNG.
type Remover interface {
	Remove(ctx context.Context, img []byte) ([]byte, error)
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey string) *Client {
	return &Client{apiKey: apiKey, baseURL: defaultURL, http: &http.Client{Timeout: 60 * time.Second}}
}

// WithBaseURL points the client at another endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

func (c *Client) Remove(ctx context.Context, img []byte) ([]byte, error) {
	out, err := c.remove(ctx, img)
	metrics.ObserveUpstream("removebg", err)
	return out, err
}

func (c *Client) remove(ctx context.Context, img []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image_file", "image.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(img); err != nil {
		return nil, err
	}
	if err := mw.WriteField("size", "auto"); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remove.bg request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remove.bg failed: %d, %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
