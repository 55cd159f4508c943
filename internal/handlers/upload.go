package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"missionrewards/internal/apperr"
)

// multipartOverhead leaves room for boundaries and other form fields on top
// of the file size limit.
const multipartOverhead = 1 << 20

// readUpload parses a multipart body and returns the named file. A missing
// file yields nil data and no error so callers can fall back to other fields.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", apperr.Field(field, fmt.Sprintf("The %s may not be greater than %d kilobytes.", field, limit>>10))
		}
		return nil, "", apperr.Field(field, fmt.Sprintf("The %s must be a file.", field))
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", apperr.Field(field, fmt.Sprintf("The %s must be a file.", field))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", apperr.Unexpected("could not read upload", err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
