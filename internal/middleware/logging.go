package middleware

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// w3cFields is the #Fields directive written before the first entry.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(Content-Encoding) cs(User-Agent)"

// pollPath is the scan state endpoint clients poll during a scan
const pollPath = "/api/scan"

var healthCheckPaths = map[string]bool{
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// responseWriter records the status code and body size of a response
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	SkipPaths      []string
	SkipExtensions []string
	LogStaticFiles bool
	// LogHealthChecks logs the health endpoints
	LogHealthChecks bool
	// LogPolling logs GET requests for the scan state, which clients
	// repeat several times a second while a scan runs
	LogPolling bool
	// Output receives log entries; nil means stderr
	Output io.Writer
}

// DefaultLoggingConfig returns the server's logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipExtensions:  []string{".ico", ".png", ".jpg", ".jpeg", ".webp", ".bmp", ".tif", ".tiff", ".txt"},
		LogHealthChecks: true,
	}
}

// W3CLogger writes requests in W3C Extended Log Format
type W3CLogger struct {
	config      LoggingConfig
	serviceName string

	mu         sync.Mutex
	out        io.Writer
	headerDone bool
}

// NewW3CLogger creates a logger that writes the directive header before its
// first entry.
func NewW3CLogger(config LoggingConfig, serviceName string) *W3CLogger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	return &W3CLogger{config: config, serviceName: serviceName, out: out}
}

// Logger returns HTTP logging middleware using W3C Extended Log Format
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logger := NewW3CLogger(config, "SourceSeeker/1.0")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			logger.logRequest(r, wrapped, time.Since(start))
		})
	}
}

func (l *W3CLogger) skip(r *http.Request) bool {
	if !l.config.LogPolling && r.Method == http.MethodGet && r.URL.Path == pollPath {
		return true
	}
	return shouldSkip(r.URL.Path, l.config)
}

// logRequest writes one entry. Every client supplied field is sanitized.
func (l *W3CLogger) logRequest(r *http.Request, rw *responseWriter, duration time.Duration) {
	now := time.Now().UTC()

	entry := strings.Join([]string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		w3cValue(getClientIP(r)),
		w3cValue(r.Method),
		w3cValue(r.URL.Path),
		w3cValue(r.URL.RawQuery),
		fmt.Sprint(rw.statusCode),
		fmt.Sprint(rw.bytesWritten),
		fmt.Sprint(duration.Milliseconds()),
		w3cValue(rw.Header().Get("Content-Encoding")),
		w3cValue(r.Header.Get("User-Agent")),
	}, " ")

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.headerDone {
		fmt.Fprintf(l.out, "#Software: %s\n#Version: 1.0\n#Date: %s\n#Fields: %s\n",
			l.serviceName, now.Format("2006-01-02 15:04:05"), w3cFields)
		l.headerDone = true
	}
	fmt.Fprintln(l.out, entry)
}

// w3cValue sanitizes a field, writes "-" for empty values and quotes values
// that contain separators.
func w3cValue(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return escapeW3CField(s)
}

// sanitizeLogField removes control characters that could forge log lines or
// drive a terminal. Newlines become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}

	if !config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}

	if !config.LogStaticFiles {
		lower := strings.ToLower(path)
		for _, ext := range config.SkipExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
	}

	return false
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing spaces, tabs or quotes and
// doubles embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
