// Package request parses path, query and multipart inputs for handlers.
package request

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing
const maxMultipartMemory = 8 << 20

// URLInt64 parses a chi URL parameter as a positive int64
func URLInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// QueryInt64 parses an optional query parameter; nil when absent
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &v, nil
}

// QueryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter
func QueryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s", name)
}

// File reads a multipart file field, refusing bodies larger than maxBytes
func File(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		// room for multipart framing around the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file must be smaller than %d KB", maxBytes/1024)
		}
		return nil, fmt.Errorf("invalid multipart body")
	}

	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required", field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", field)
	}
	return data, nil
}
