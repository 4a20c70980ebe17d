package constants

import "strings"

// Format families handled by the extraction chain.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TEXT  = "TEXT"
)

// AllowedExtensions holds the default allowed file extensions for exam uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"txt":  {},
	"md":   {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its format family.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tiff", "bmp":
		return IMAGE
	case "txt", "md", "text":
		return TEXT
	default:
		return ""
	}
}
