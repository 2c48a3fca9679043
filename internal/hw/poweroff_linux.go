//go:build linux

package hw

import "golang.org/x/sys/unix"

// powerOff flushes filesystems and asks the kernel to cut power. It
// only returns on failure, typically EPERM without CAP_SYS_BOOT.
func powerOff() error {
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
}
