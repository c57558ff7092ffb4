//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

// createExportTemp creates path exclusively. O_NOFOLLOW makes a symlink
// planted at the final component fail with ELOOP instead of being written
// through.
func createExportTemp(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|syscall.O_NOFOLLOW, 0600)
	if stderrors.Is(err, syscall.ELOOP) {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	return f, err
}
