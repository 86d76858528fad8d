//go:build !linux && !darwin

package frame

import "errors"

func diskSpace(dir string) (total, free uint64, err error) {
	return 0, 0, errors.New("disk usage not supported on this platform")
}
