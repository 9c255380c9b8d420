package monitor

import (
	"os/exec"
	"runtime"

	"cursortop/internal/api"
)

// OpenDashboard opens the Cursor usage dashboard in the default browser.
func OpenDashboard() error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", api.DashboardURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", api.DashboardURL)
	default:
		cmd = exec.Command("xdg-open", api.DashboardURL)
	}
	return cmd.Start()
}
