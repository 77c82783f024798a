//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package cli

import (
	"errors"
	"os"
)

func hideInput(*os.File) (func(), error) {
	return nil, errors.New("terminal echo control unsupported")
}
