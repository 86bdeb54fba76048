package domain

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors for object storage.
var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileTooLarge     = errors.New("file too large")
)

// ObjectStore is the blob storage port used for product images.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (publicURL string, err error)
	Delete(ctx context.Context, name string) error
}

// StoredObject describes an uploaded object.
type StoredObject struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// StorageService uploads and removes product images.
type StorageService interface {
	UploadProductImage(ctx context.Context, productID string, data []byte) (*StoredObject, error)
	DeleteObject(ctx context.Context, name string) error
}

// Locker serializes maintenance jobs across processes.
type Locker interface {
	// Obtain acquires key or returns ErrLocked. The returned func releases the lock.
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// ReportService renders exports of sales data.
type ReportService interface {
	WriteEventSalesReport(ctx context.Context, eventID string, w io.Writer) error
}
