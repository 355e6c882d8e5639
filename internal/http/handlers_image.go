package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/objstore"
)

// maxUploadMemory bounds the multipart form buffer for receipt uploads.
const maxUploadMemory = 8 << 20

// handleUploadImage attaches a receipt image to one of the viewer's entries.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.images == nil || s.imageRepo == nil {
		NotFoundError("Tải ảnh chưa được bật").Write(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		BadRequestError("Yêu cầu không hợp lệ").Write(w)
		return
	}

	entryID, ok := ParseID(r.Form.Get("entry_id"))
	if !ok {
		BadRequestError("Thiếu mã khoản chi").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	// Ownership check: an uploaded image only attaches to the viewer's
	// own entry.
	if _, err := s.imageRepo.GetEntry(ctx, entryID, v.User.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Không tìm thấy khoản chi").Write(w)
			return
		}
		InternalServerError("Không thể kiểm tra khoản chi").Write(w)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		BadRequestError("Thiếu tệp ảnh").Write(w)
		return
	}
	defer file.Close()

	key, err := s.images.Save(ctx, header.Filename, file)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Image save failed",
			"error", err, "entry_id", entryID, "user_id", v.User.ID)
		UnprocessableEntityError("Không thể lưu ảnh").Write(w)
		return
	}

	if _, err := s.imageRepo.AddEntryImage(ctx, entryID, key); err != nil {
		_ = s.images.Remove(key)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Image record failed",
			"error", err, "entry_id", entryID)
		InternalServerError("Không thể lưu ảnh").Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Receipt image uploaded",
		"entry_id", entryID, "object_key", key, "user_id", v.User.ID)

	NewHTMXResponse().
		TriggerEntryChanged(0).
		TriggerSuccessNotification("Đã tải ảnh hóa đơn").
		Write(w)
}

// handleServeImage streams a stored receipt image. The viewer must own the
// entry the image belongs to.
func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	if s.images == nil {
		http.NotFound(w, r)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/images/")
	rc, err := s.images.Open(key)
	if err != nil {
		if errors.Is(err, objstore.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	switch {
	case strings.HasSuffix(key, ".png"):
		w.Header().Set("Content-Type", "image/png")
	case strings.HasSuffix(key, ".webp"):
		w.Header().Set("Content-Type", "image/webp")
	default:
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = io.Copy(w, rc)
}

// handleDeleteImage removes a receipt image record and its stored object.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.images == nil || s.imageRepo == nil {
		NotFoundError("Tải ảnh chưa được bật").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	entryID, ok := ParseID(r.Form.Get("entry_id"))
	if !ok {
		BadRequestError("Thiếu mã khoản chi").Write(w)
		return
	}
	imageID, ok := ParseID(r.Form.Get("image_id"))
	if !ok {
		BadRequestError("Thiếu mã ảnh").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	if _, err := s.imageRepo.GetEntry(ctx, entryID, v.User.ID); err != nil {
		NotFoundError("Không tìm thấy khoản chi").Write(w)
		return
	}

	images, err := s.imageRepo.ListEntryImages(ctx, entryID)
	if err != nil {
		InternalServerError("Không thể tải danh sách ảnh").Write(w)
		return
	}
	var objectKey string
	for _, img := range images {
		if img.ID == imageID {
			objectKey = img.ObjectKey
			break
		}
	}
	if objectKey == "" {
		NotFoundError("Không tìm thấy ảnh").Write(w)
		return
	}

	if err := s.imageRepo.DeleteEntryImage(ctx, imageID); err != nil {
		InternalServerError("Không thể xóa ảnh").Write(w)
		return
	}
	if err := s.images.Remove(objectKey); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Stored object removal failed",
			"error", err, "object_key", objectKey)
	}

	NewHTMXResponse().
		TriggerSuccessNotification("Đã xóa ảnh hóa đơn").
		Write(w)
}
