package handlers

import (
	"net/http"
	"path"
	"strings"
)

// StaticHandler serves saved artifacts from dir under prefix. Only PNG
// files are served and directory listings are refused.
func StaticHandler(prefix, dir string) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") || !strings.HasSuffix(name, ".png") || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		fs.ServeHTTP(w, r)
	})
}
