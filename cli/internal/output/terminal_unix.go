//go:build !windows

package output

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// winsize mirrors the kernel struct filled by TIOCGWINSZ.
type winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// getTerminalWidth reports the width of the attached terminal. COLUMNS
// wins when set, then the TIOCGWINSZ ioctl; anything else (piped stdout,
// no tty) falls back to defaultWidth.
func getTerminalWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		var width int
		if _, err := fmt.Sscanf(cols, "%d", &width); err == nil && width > 0 {
			return width
		}
	}

	ws := &winsize{}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL,
		uintptr(syscall.Stdout),
		uintptr(syscall.TIOCGWINSZ),
		uintptr(unsafe.Pointer(ws)))
	if errno == 0 && ws.Col > 0 {
		return int(ws.Col)
	}

	return defaultWidth
}
