package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"merchpos/internal/domain"
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type storageService struct {
	store          domain.ObjectStore
	productRepo    domain.ProductRepository
	maxBytes       int64
	contextTimeout time.Duration
}

// NewStorageService creates a StorageService that writes product images to store.
func NewStorageService(store domain.ObjectStore, productRepo domain.ProductRepository, maxBytes int64, timeout time.Duration) domain.StorageService {
	return &storageService{
		store:          store,
		productRepo:    productRepo,
		maxBytes:       maxBytes,
		contextTimeout: timeout,
	}
}

// UploadProductImage checks the bytes are a supported image, stores them under
// products/{productID}/ and points the product's image_url at the new object.
func (s *storageService) UploadProductImage(ctx context.Context, productID string, data []byte) (*domain.StoredObject, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, len(data), s.maxBytes)
	}
	mime := mimetype.Detect(data)
	contentType := strings.SplitN(mime.String(), ";", 2)[0]
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, contentType)
	}

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	name := path.Join("products", productID, uuid.NewString()+ext)
	url, err := s.store.Put(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}
	if _, err := s.productRepo.Update(ctx, productID, domain.ProductUpdate{ImageURL: &url}); err != nil {
		return nil, fmt.Errorf("set product image: %w", err)
	}
	return &domain.StoredObject{
		Name:        name,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// DeleteObject removes an object. Only names under products/ are accepted.
func (s *storageService) DeleteObject(ctx context.Context, name string) error {
	clean := path.Clean("/" + name)[1:]
	if clean != name || !strings.HasPrefix(clean, "products/") {
		return fmt.Errorf("%w: invalid object name", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
