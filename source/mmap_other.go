//go:build !unix

package source

import (
	"io"
	"os"
)

// openMapped streams the file on platforms without mmap support.
func openMapped(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
