//go:build !debug
// +build !debug

package webui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// builtinAssets returns the assets embedded in the binary.
func builtinAssets() http.FileSystem {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("failed to get embedded static files: " + err.Error())
	}
	return http.FS(staticFS)
}
