package httpserver

import (
	"net/http"
	"time"
)

// New builds the server the compliance API listens on. The write timeout
// sits above the 30s per-request budget the router enforces, so slow
// handlers are cut off by the middleware rather than a dropped connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
