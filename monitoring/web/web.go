// Package web includes the static web page of the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the static assets. When GOSSIP_MONITOR_DEV is set, they
// are served from the source tree so that the page can be edited without a
// rebuild.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		return http.Dir(path.Join(path.Dir(file), "dist"))
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

func isDevelopmentMode() bool {
	v, ok := os.LookupEnv("GOSSIP_MONITOR_DEV")
	if !ok {
		return false
	}

	return strings.EqualFold(v, "true") || v == "1"
}
