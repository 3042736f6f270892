package bind

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// accessRecorder captures the status and body size written through it.
type accessRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (a *accessRecorder) WriteHeader(code int) {
	if !a.wroteHeader {
		a.status = code
		a.wroteHeader = code >= http.StatusOK || code == http.StatusSwitchingProtocols
	}
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(b []byte) (int, error) {
	a.wroteHeader = true
	n, err := a.ResponseWriter.Write(b)
	a.size += n
	return n, err
}

func (a *accessRecorder) Flush() {
	//nolint:errcheck,gosec // unsupported flushing is a no-op
	http.NewResponseController(a.ResponseWriter).Flush()
}

// Hijack hands the connection over, for websocket upgrades.
func (a *accessRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(a.ResponseWriter).Hijack()
	if err == nil {
		a.status = http.StatusSwitchingProtocols
		a.wroteHeader = true
	}
	return conn, rw, err
}

func (a *accessRecorder) Unwrap() http.ResponseWriter {
	return a.ResponseWriter
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger returns middleware that writes one "request" entry per request:
// error level for 5xx, warn for 4xx, info otherwise.
func Logger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &accessRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ce := logger.Check(accessLevel(rec.status), "request")
			if ce == nil {
				return
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("size", rec.size),
				zap.String("remote", r.RemoteAddr),
			}
			if id := GetRequestID(r); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			ce.Write(fields...)
		})
	}
}
