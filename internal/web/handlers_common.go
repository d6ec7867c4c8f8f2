package web

// Shared helpers for the upload, audit and history handlers.

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/extract"
)

const (
	// multipartMemory is kept in memory; larger uploads spill to temp files.
	multipartMemory = 32 << 20
	// formOverhead covers multipart framing and the small text fields.
	formOverhead = 1 << 20
)

// parseIntParam parses a positive integer query parameter, clamped to max.
func parseIntParam(r *http.Request, name string, def, max int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return def
	}
	return min(i, max)
}

// parseUpload reads a multipart upload of at most maxFile bytes of file
// content. The caller must call the returned cleanup.
func parseUpload(w http.ResponseWriter, r *http.Request, maxFile int64) (func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return func() {}, fmt.Errorf("%w: %w", extract.ErrFileTooLarge, err)
		}
		return func() {}, fmt.Errorf("%w: %v", errBadForm, err)
	}
	return func() { _ = r.MultipartForm.RemoveAll() }, nil
}

// uploadedSource picks an extractor for the "file" form field by extension.
// The returned file must be closed by the caller.
func uploadedSource(r *http.Request, maxFile int64) (extract.Extractor, multipart.File, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}

	name := filepath.Base(header.Filename)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return &extract.CSV{R: file, Source: name, MaxBytes: maxFile}, file, nil
	case ".xlsx", ".xlsm":
		return &extract.XLSX{R: file, Source: name, Sheet: r.FormValue("sheet")}, file, nil
	default:
		file.Close()
		return nil, nil, fmt.Errorf("%w %q", errUnsupportedFile, filepath.Ext(name))
	}
}

// formMapping parses repeated "map" fields of the form field=Header.
func formMapping(r *http.Request) (extract.Mapping, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	pairs := r.MultipartForm.Value["map"]
	if len(pairs) == 0 {
		return nil, nil
	}
	m, err := extract.ParseMapping(pairs)
	if err != nil {
		return nil, core.NewConfigurationError("%v", err)
	}
	return m, nil
}
