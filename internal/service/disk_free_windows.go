//go:build windows

package service

import (
	"os"

	"golang.org/x/sys/windows"
)

// FreeDiskSpace returns the bytes available to the caller on the volume
// holding path, or 0 if it cannot be determined.
func FreeDiskSpace(path string) uint64 {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return 0
	}

	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0
	}

	return freeBytes
}
