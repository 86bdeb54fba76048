package controllers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

const (
	uploadFormField = "file"
	// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
	multipartOverhead = 64 << 10
)

// StoredObjectSuccessResponse is the success response envelope for POST /api/storage/products/{id}/image.
type StoredObjectSuccessResponse struct {
	Data  *domain.StoredObject `json:"data"`
	Error *h.APIError          `json:"error"`
}

type StorageController struct {
	Logger         *slog.Logger
	Service        domain.StorageService
	Activity       domain.ActivityService
	MaxUploadBytes int64
}

func NewStorageController(logger *slog.Logger, svc domain.StorageService, activity domain.ActivityService, maxUploadBytes int64) *StorageController {
	return &StorageController{
		Logger:         logger,
		Service:        svc,
		Activity:       activity,
		MaxUploadBytes: maxUploadBytes,
	}
}

// UploadProductImage godoc
// @Summary Upload a product image
// @Description Multipart upload in field "file". PNG, JPEG, WebP and GIF only; the type is detected from content. Sets the product's image_url.
// @Tags storage
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Param file formData file true "Image"
// @Success 201 {object} controllers.StoredObjectSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 413 {object} helpers.APIResponse "error.code: payload_too_large"
// @Failure 415 {object} helpers.APIResponse "error.code: unsupported_media_type"
// @Router /api/storage/products/{id}/image [post]
func (c *StorageController) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if c.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.MaxUploadBytes+multipartOverhead)
	}
	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeServiceError(w, r, c.Logger, domain.ErrFileTooLarge, "product not found")
			return
		}
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "failed to read upload")
		return
	}
	obj, err := c.Service.UploadProductImage(r.Context(), id, data)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionUploadImage, "product", id, obj.Name)
	h.WriteJSONSuccess(w, http.StatusCreated, obj)
}

// DeleteObject godoc
// @Summary Delete a stored object
// @Description Only objects under products/ can be deleted.
// @Tags storage
// @Security BearerAuth
// @Param name path string true "Object name, e.g. products/{id}/{file}"
// @Success 204 "No Content"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/storage/objects/{name} [delete]
func (c *StorageController) DeleteObject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing object name")
		return
	}
	if err := c.Service.DeleteObject(r.Context(), name); err != nil {
		writeServiceError(w, r, c.Logger, err, "object not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
