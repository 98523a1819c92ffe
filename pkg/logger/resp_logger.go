package logger

import "net/http"

// ResponseLogger wraps a ResponseWriter and records the status code and the
// number of body bytes written.
type ResponseLogger struct {
	w       http.ResponseWriter
	status  int
	written int
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

func (l *ResponseLogger) WriteHeader(code int) {
	l.status = code
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	n, err := l.w.Write(b)
	l.written += n
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *ResponseLogger) Status() int {
	return l.status
}

// Written returns the number of body bytes sent so far.
func (l *ResponseLogger) Written() int {
	return l.written
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (l *ResponseLogger) Unwrap() http.ResponseWriter {
	return l.w
}
