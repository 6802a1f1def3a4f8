//go:build debug
// +build debug

package webui

import "net/http"

// builtinAssets serves the assets from the source tree so they can be
// edited without rebuilding.
func builtinAssets() http.FileSystem {
	return http.Dir("src/webui/static")
}
