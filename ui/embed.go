// Package ui embeds the browser viewer.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:static
var staticFS embed.FS

// Handler returns an http.Handler that serves the embedded viewer.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)

		// Unknown extensionless paths fall back to the viewer page
		if !strings.Contains(path.Base(p), ".") {
			if f, openErr := fsys.Open(strings.TrimPrefix(p, "/")); openErr != nil {
				r.URL.Path = "/"
			} else {
				_ = f.Close()
			}
		}

		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	}), nil
}
