// Package imagetypes defines the set of image file extensions a scan
// considers and the MIME types associated with them.
//
// It is dependency-free so that the scanner, the fingerprint codec and the
// HTTP handlers can share it without import cycles.
//
//	if imagetypes.IsCandidate(d.Name()) {
//	    // hash it
//	}
//
// The set is fixed: jpg, jpeg, png, bmp, webp and tiff. Note that ".tif" and
// ".gif" are deliberately not candidates.
package imagetypes
