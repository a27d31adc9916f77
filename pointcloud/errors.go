package pointcloud

import (
	"github.com/pkg/errors"
)

// ErrInvalidParameter is returned (wrapped with the offending parameter) when
// an operation is called with a parameter outside its documented domain. The
// operation fails fast and produces no partial output.
var ErrInvalidParameter = errors.New("invalid parameter")

func invalidParameterf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}
