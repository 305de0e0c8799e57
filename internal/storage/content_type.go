package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Content types written by this service.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// =============================================================================
// Content Type Detection
// =============================================================================

// knownExtensions covers the keys this service writes, independent of the
// host's mime.types.
var knownExtensions = map[string]string{
	".jpg":  ContentTypeJPEG,
	".jpeg": ContentTypeJPEG,
	".csv":  ContentTypeCSV,
}

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
// 1. If providedType is non-empty, use it directly
// 2. The extension, first from knownExtensions and then mime.TypeByExtension
// 3. Sniff content from the first 512 bytes of data (if available)
// 4. Fall back to "application/octet-stream"
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType, ok := knownExtensions[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// =============================================================================
// Content Type Validation
// =============================================================================

// AllowedLogoTypes are the formats the logo pipeline can decode.
var AllowedLogoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}

// IsAllowedLogoType checks if a content type is accepted for logo uploads.
func IsAllowedLogoType(contentType string) bool {
	return AllowedLogoTypes[baseType(contentType)]
}

// IsImage returns true if the content type is any image format.
func IsImage(contentType string) bool {
	return strings.HasPrefix(baseType(contentType), "image/")
}
