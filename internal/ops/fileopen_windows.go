//go:build windows

package ops

import "os"

// createExportTemp creates path exclusively. Symlinks were already rejected
// by ValidateExportPath.
func createExportTemp(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}
