// Package fingerprint computes and compares perceptual image fingerprints.
//
// A fingerprint is an average hash: the image is decoded (jpeg, png, bmp,
// webp and tiff are supported), orientation from EXIF is applied, it is
// resized to an N×N grid, converted to grayscale, and each cell becomes one
// bit which is set when the cell is brighter than the grid mean. With the
// default N of 8 the fingerprint is 64 bits.
//
// Fingerprints are compared by Hamming distance ([Distance]) and stored as
// fixed-length lowercase hex ([Fingerprint.Hex], [Parse]).
package fingerprint
