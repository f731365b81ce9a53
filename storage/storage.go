package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"openfashion/metrics"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// Uploader stores a blob and returns a public https URL for it.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder, name string) (string, error)
}

// Folders under the configured root.
const (
	FolderUploads    = "uploads"
	FolderCrops      = "crops"
	FolderThumbnails = "thumbnails"
	FolderOutfits    = "outfits"
)

type Cloudinary struct {
	cld  *cloudinary.Cloudinary
	root string
}

func NewCloudinary(url, root string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return &Cloudinary{cld: cld, root: root}, nil
}

func (s *Cloudinary) Upload(ctx context.Context, data []byte, folder, name string) (string, error) {
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   path.Join(s.root, folder),
		PublicID: name,
	})
	if err == nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	metrics.ObserveUpstream("cloudinary", err)
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", name, err)
	}
	return res.SecureURL, nil
}

// Disabled rejects every upload. It stands in when CLOUDINARY_URL is unset.
type Disabled struct{}

func (Disabled) Upload(context.Context, []byte, string, string) (string, error) {
	return "", ErrNotConfigured
}
