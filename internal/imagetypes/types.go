package imagetypes

import (
	"path/filepath"
	"strings"
)

// Extensions maps lowercase file extensions to whether a scan treats the file
// as a candidate image.
var Extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
}

// MimeTypes maps candidate extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
}

// Ext returns the lowercase extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsCandidate reports whether a file name has one of the supported image
// extensions. Matching ignores case, so "A.JPG" and "a.Jpeg" both qualify.
func IsCandidate(name string) bool {
	return Extensions[Ext(name)]
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
