package webui

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gologme/log"
)

// staticHandler serves the panel page and its assets. The root serves
// index.html and /static/ is an alias of the root of the assets.
func staticHandler(assets http.FileSystem, log *log.Logger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestPath := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		requestPath = strings.TrimPrefix(requestPath, "static/")
		if requestPath == "" || requestPath == "static" {
			requestPath = "index.html"
		}

		f, err := assets.Open("/" + requestPath)
		if err != nil {
			log.Debugf("File not found: %s", requestPath)
			http.NotFound(rw, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(rw, r)
			return
		}

		if contentType := mime.TypeByExtension(path.Ext(requestPath)); contentType != "" {
			rw.Header().Set("Content-Type", contentType)
		}
		http.ServeContent(rw, r, requestPath, info.ModTime(), f)
	})
}
