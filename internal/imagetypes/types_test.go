package imagetypes

import "testing"

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		file string
		want bool
	}{
		{name: "jpg", file: "a.jpg", want: true},
		{name: "jpeg", file: "a.jpeg", want: true},
		{name: "png", file: "dir/b.png", want: true},
		{name: "bmp", file: "c.bmp", want: true},
		{name: "webp", file: "d.webp", want: true},
		{name: "tiff", file: "e.tiff", want: true},
		{name: "upper case", file: "A.JPG", want: true},
		{name: "mixed case", file: "photo.Jpeg", want: true},
		{name: "tif is not tiff", file: "scan.tif", want: false},
		{name: "gif", file: "anim.gif", want: false},
		{name: "text", file: "notes.txt", want: false},
		{name: "no extension", file: "README", want: false},
		{name: "dot only", file: "weird.", want: false},
		{name: "extension in directory", file: "x.png/readme", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCandidate(tt.file); got != tt.want {
				t.Errorf("IsCandidate(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".webp", "image/webp"},
		{".tiff", "image/tiff"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestExtensionsHaveMimeTypes(t *testing.T) {
	for ext := range Extensions {
		if _, ok := MimeTypes[ext]; !ok {
			t.Errorf("extension %s has no MIME type", ext)
		}
	}
}
