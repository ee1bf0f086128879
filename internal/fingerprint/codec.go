package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"time"

	// Image format decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support

	"source-seeker/internal/filesystem"
	"source-seeker/internal/imagetypes"
	"source-seeker/internal/logging"
	"source-seeker/internal/metrics"
)

const (
	// DefaultGridSize yields a 64-bit fingerprint.
	DefaultGridSize = 8

	// MaxImageDimension is the largest side hashed at full size. Larger
	// images are downscaled first.
	MaxImageDimension = 4096

	// MaxImagePixels rejects images whose header declares more pixels than
	// this, before any pixel data is decoded.
	MaxImagePixels = 100_000_000

	// sniffLen is the number of header bytes filetype needs to match every
	// format it knows.
	sniffLen = 261
)

// Codec computes fingerprints from encoded images.
type Codec struct {
	gridSize     int
	maxDimension int
	maxPixels    int
	retry        filesystem.RetryConfig
}

// NewCodec returns a codec hashing over a gridSize×gridSize grid. gridSize
// must be a positive multiple of 8 so that fingerprints fill whole words.
func NewCodec(gridSize int) (*Codec, error) {
	if err := ValidateGridSize(gridSize); err != nil {
		return nil, err
	}
	return &Codec{
		gridSize:     gridSize,
		maxDimension: MaxImageDimension,
		maxPixels:    MaxImagePixels,
		retry:        filesystem.DefaultRetryConfig(),
	}, nil
}

// ValidateGridSize reports whether gridSize is usable by NewCodec.
func ValidateGridSize(gridSize int) error {
	if gridSize <= 0 || gridSize%8 != 0 {
		return fmt.Errorf("grid size must be a positive multiple of 8, got %d", gridSize)
	}
	return nil
}

// GridSize returns the side of the sampling grid.
func (c *Codec) GridSize() int {
	return c.gridSize
}

// Bits returns the width of fingerprints produced by c.
func (c *Codec) Bits() int {
	return c.gridSize * c.gridSize
}

// WithRetry returns a copy of c that opens files with rc.
func (c *Codec) WithRetry(rc filesystem.RetryConfig) *Codec {
	cp := *c
	cp.retry = rc
	return &cp
}

// FromFile opens path and fingerprints its contents.
func (c *Codec) FromFile(path string) (Fingerprint, error) {
	f, err := filesystem.OpenWithRetry(path, c.retry)
	if err != nil {
		metrics.FingerprintErrors.WithLabelValues("open").Inc()
		return Fingerprint{}, fmt.Errorf("%w: open %s: %w", ErrUnreadable, path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("failed to close %s: %v", path, closeErr)
		}
	}()

	fp, err := c.compute(f, path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%s: %w", path, err)
	}
	return fp, nil
}

// Compute decodes an image from r and returns its fingerprint. The result
// depends only on the decoded pixels, so identical content always yields an
// identical fingerprint. Every failure wraps ErrUnreadable.
func (c *Codec) Compute(r io.Reader) (Fingerprint, error) {
	return c.compute(r, "")
}

// compute is Compute for content read from name. A non-empty name is checked
// against the sniffed format; a mismatch is counted but still hashed.
func (c *Codec) compute(r io.Reader, name string) (fp Fingerprint, err error) {
	start := time.Now()
	format := "unknown"

	// Some decoders panic on hostile input.
	defer func() {
		if rec := recover(); rec != nil {
			metrics.FingerprintErrors.WithLabelValues("decode").Inc()
			fp, err = Fingerprint{}, fmt.Errorf("%w: decoder panic: %v", ErrUnreadable, rec)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		metrics.FingerprintErrors.WithLabelValues("open").Inc()
		return Fingerprint{}, fmt.Errorf("%w: read: %w", ErrUnreadable, err)
	}

	head := data[:min(len(data), sniffLen)]
	if !filetype.IsImage(head) {
		metrics.FingerprintErrors.WithLabelValues("not_image").Inc()
		return Fingerprint{}, fmt.Errorf("%w: content is not a recognized image", ErrUnreadable)
	}
	if kind, matchErr := filetype.Match(head); matchErr == nil && kind != filetype.Unknown {
		format = kind.MIME.Subtype
		if name != "" {
			if want := imagetypes.GetMimeType(imagetypes.Ext(name)); want != kind.MIME.Value {
				metrics.FingerprintExtensionMismatch.Inc()
				logging.Debug("%s holds %s content, extension says %s", name, kind.MIME.Value, want)
			}
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		metrics.FingerprintErrors.WithLabelValues("decode").Inc()
		return Fingerprint{}, fmt.Errorf("%w: decode header: %w", ErrUnreadable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > c.maxPixels {
		metrics.FingerprintErrors.WithLabelValues("decode").Inc()
		return Fingerprint{}, fmt.Errorf("%w: unsupported dimensions %dx%d", ErrUnreadable, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		metrics.FingerprintErrors.WithLabelValues("decode").Inc()
		return Fingerprint{}, fmt.Errorf("%w: decode: %w", ErrUnreadable, err)
	}

	if b := img.Bounds(); b.Dx() > c.maxDimension || b.Dy() > c.maxDimension {
		logging.Debug("Downscaling %dx%d image before hashing", b.Dx(), b.Dy())
		img = imaging.Fit(img, c.maxDimension, c.maxDimension, imaging.Box)
	}

	hash, err := goimagehash.ExtAverageHash(img, c.gridSize, c.gridSize)
	if err != nil {
		metrics.FingerprintErrors.WithLabelValues("hash").Inc()
		return Fingerprint{}, fmt.Errorf("%w: hash: %w", ErrUnreadable, err)
	}

	metrics.FingerprintDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	return Fingerprint{words: hash.GetHash()}, nil
}
