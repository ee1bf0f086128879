package fingerprint

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"source-seeker/internal/filesystem"
	"source-seeker/internal/metrics"
)

// writePattern saves an 8x8 black image whose white cells are the set bits
// of mask, most significant bit first in row-major order. For any mask with
// both colors present the average hash of the result is exactly mask.
func writePattern(t *testing.T, path string, mask uint64) {
	t.Helper()
	img := imaging.New(8, 8, color.Black)
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(63-i)) != 0 {
			img.Set(i%8, i/8, color.White)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to save %s: %v", path, err)
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(DefaultGridSize)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func TestCodecHashesExactPattern(t *testing.T) {
	t.Parallel()

	const mask uint64 = 0xff00ff00f0f00f0f
	codec := newTestCodec(t)

	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "pattern"+ext)
			writePattern(t, path, mask)

			fp, err := codec.FromFile(path)
			if err != nil {
				t.Fatalf("FromFile() error = %v", err)
			}
			if !fp.Equal(fromWords(mask)) {
				t.Errorf("FromFile() = %s, want %016x", fp, mask)
			}
		})
	}
}

func TestCodecUniformImageHasNoBits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "black.png")
	if err := imaging.Save(imaging.New(8, 8, color.Black), path); err != nil {
		t.Fatal(err)
	}

	fp, err := newTestCodec(t).FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if fp.Hex() != "0000000000000000" {
		t.Errorf("uniform image hash = %s, want all zero", fp)
	}
}

func TestCodecDeterministic(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 3), B: uint8(x + y), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "gradient.jpg")
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}

	codec := newTestCodec(t)
	first, err := codec.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	second, err := codec.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("fingerprints differ across runs: %s vs %s", first, second)
	}
	if first.Bits() != 64 {
		t.Errorf("Bits() = %d, want 64", first.Bits())
	}
}

func TestCodecUnreadable(t *testing.T) {
	t.Parallel()

	var pngBuf bytes.Buffer
	if err := imaging.Encode(&pngBuf, imaging.New(64, 64, color.White), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	truncated := pngBuf.Bytes()[:pngBuf.Len()/2]

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text", data: []byte("definitely not an image")},
		{name: "truncated png", data: truncated},
	}

	codec := newTestCodec(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Compute(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrUnreadable) {
				t.Errorf("Compute() error = %v, want ErrUnreadable", err)
			}
		})
	}
}

func TestFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := newTestCodec(t).FromFile(filepath.Join(t.TempDir(), "gone.png"))
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("FromFile() error = %v, want ErrUnreadable", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FromFile() error = %v, want to wrap os.ErrNotExist", err)
	}
}

func TestFromFileWrongExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fake.png")
	if err := os.WriteFile(path, []byte("hello world, this is text"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := newTestCodec(t).FromFile(path); !errors.Is(err, ErrUnreadable) {
		t.Errorf("FromFile() error = %v, want ErrUnreadable", err)
	}
}

func TestWithRetryCopiesCodec(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePattern(t, path, 0x00FF00FF00FF00FF)

	c := newTestCodec(t)
	rc := filesystem.DefaultRetryConfig()
	rc.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"scan": dir})
	scoped := c.WithRetry(rc)

	if scoped == c {
		t.Fatal("WithRetry() returned the receiver")
	}
	if c.retry.VolumeResolver != nil {
		t.Error("WithRetry() modified the receiver")
	}
	if scoped.retry.VolumeResolver != rc.VolumeResolver {
		t.Error("WithRetry() did not keep the retry config")
	}
	if scoped.Bits() != c.Bits() {
		t.Errorf("Bits() = %d, want %d", scoped.Bits(), c.Bits())
	}

	want, err := c.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := scoped.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("scoped FromFile() = %v, want %v", got, want)
	}
}

// Not parallel: the mismatch counter is process-wide.
func TestFromFileCountsExtensionMismatch(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(8, 8, color.Black)
	img.Set(0, 0, color.White)

	var png bytes.Buffer
	if err := imaging.Encode(&png, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	misnamed := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(misnamed, png.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	named := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(named, png.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestCodec(t)
	before := testutil.ToFloat64(metrics.FingerprintExtensionMismatch)

	want, err := c.FromFile(named)
	if err != nil {
		t.Fatalf("FromFile(%s) error = %v", named, err)
	}
	if got := testutil.ToFloat64(metrics.FingerprintExtensionMismatch); got != before {
		t.Errorf("mismatch counter moved for a correctly named file: %v -> %v", before, got)
	}

	got, err := c.FromFile(misnamed)
	if err != nil {
		t.Fatalf("FromFile(%s) error = %v, want the content hashed anyway", misnamed, err)
	}
	if !got.Equal(want) {
		t.Errorf("fingerprint of misnamed file = %s, want %s", got, want)
	}
	if after := testutil.ToFloat64(metrics.FingerprintExtensionMismatch); after != before+1 {
		t.Errorf("mismatch counter = %v, want %v", after, before+1)
	}
}

func TestNewCodecGridSize(t *testing.T) {
	tests := []struct {
		grid    int
		wantErr bool
		bits    int
	}{
		{grid: 8, bits: 64},
		{grid: 16, bits: 256},
		{grid: 0, wantErr: true},
		{grid: 4, wantErr: true},
		{grid: 12, wantErr: true},
		{grid: -8, wantErr: true},
	}

	for _, tt := range tests {
		c, err := NewCodec(tt.grid)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewCodec(%d) expected error", tt.grid)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewCodec(%d) error = %v", tt.grid, err)
		}
		if c.Bits() != tt.bits {
			t.Errorf("NewCodec(%d).Bits() = %d, want %d", tt.grid, c.Bits(), tt.bits)
		}
	}
}

func TestCodecWideGrid(t *testing.T) {
	t.Parallel()

	img := imaging.New(16, 16, color.Black)
	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			img.Set(x, y, color.White)
		}
	}
	path := filepath.Join(t.TempDir(), "wide.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}

	codec, err := NewCodec(16)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := codec.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if fp.Bits() != 256 || len(fp.Hex()) != 64 {
		t.Fatalf("Bits() = %d, len(Hex()) = %d, want 256 and 64", fp.Bits(), len(fp.Hex()))
	}
	// Each 16-cell row is eight dark cells then eight bright ones.
	for i, w := range fp.words {
		if w != 0x00ff00ff00ff00ff {
			t.Errorf("word %d = %016x, want 00ff00ff00ff00ff", i, w)
		}
	}
}

func TestCodecLimits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.png")
	writePattern(t, path, 0xf0f0f0f0f0f0f0f0)

	t.Run("pixel limit rejects", func(t *testing.T) {
		c := newTestCodec(t)
		c.maxPixels = 10
		if _, err := c.FromFile(path); !errors.Is(err, ErrUnreadable) {
			t.Errorf("FromFile() error = %v, want ErrUnreadable", err)
		}
	})

	t.Run("oversized image is downscaled", func(t *testing.T) {
		c := newTestCodec(t)
		c.maxDimension = 4
		fp, err := c.FromFile(path)
		if err != nil {
			t.Fatalf("FromFile() error = %v", err)
		}
		if fp.Bits() != 64 {
			t.Errorf("Bits() = %d, want 64", fp.Bits())
		}
	})
}
