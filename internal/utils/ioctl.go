package utils

import (
	"os"

	"golang.org/x/sys/unix"
)

// IOCtl は入力デバイスのファイルディスクリプタに対してioctlを発行する
func IOCtl(deviceFile *os.File, request uint64, arg uintptr) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		deviceFile.Fd(),
		uintptr(request),
		arg,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
