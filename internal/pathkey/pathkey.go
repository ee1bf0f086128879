// Package pathkey normalizes filesystem paths for comparison and answers
// separator-aware containment questions.
package pathkey

import (
	"path/filepath"
	"runtime"
	"strings"
)

// FoldCase is true on platforms whose default filesystems compare names
// without regard to case.
var FoldCase = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// Normalize cleans p and, when fold is set, lower-cases it.
func Normalize(p string, fold bool) string {
	c := filepath.Clean(p)
	if fold {
		c = strings.ToLower(c)
	}
	return c
}

// WithSeparator returns p with exactly one trailing separator.
func WithSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

// Within reports whether path equals root or lies beneath it. Both arguments
// must already be normalized the same way. "/a/b" contains "/a/b/c" but not
// "/a/bc".
func Within(root, path string) bool {
	return path == root || strings.HasPrefix(path, WithSeparator(root))
}

// UpperBound returns the smallest string greater than every string that has
// prefix as a prefix, for use as an exclusive range bound. ok is false when
// no such bound exists (prefix is empty or all 0xff bytes).
func UpperBound(prefix string) (bound string, ok bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
