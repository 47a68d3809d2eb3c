package httpserver

import (
	"net/http"
	"time"
)

// New builds the admin read surface's HTTP server. Timeouts are generous
// enough for the comparison endpoint, which walks two snapshots per request.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
