// web/embed.go
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// Static returns the browser UI rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
