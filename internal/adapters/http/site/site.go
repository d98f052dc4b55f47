// Package site serves the embedded static assets used by the HTML pages.
package site

import (
	"context"
	"net/http"
	"strings"
)

const cacheControl = "public, max-age=3600"

// Register attaches GET /static/ to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /static/", Handler())
}

// Handler serves the embedded files under /static/. Directory listings are
// not exposed.
func Handler() http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(FS()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", cacheControl)
		files.ServeHTTP(w, r)
	})
}
