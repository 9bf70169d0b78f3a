//go:build darwin

package machineid

import (
	"os/exec"
	"strings"
)

// hardwareUUID shells out to ioreg to read IOPlatformUUID, the same way
// the original implementation did. There is no stdlib or cgo-free path to
// this value on macOS.
func hardwareUUID() (string, bool) {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "IOPlatformUUID") {
			continue
		}
		parts := strings.Split(line, "\"")
		if len(parts) < 4 {
			continue
		}
		return parts[3], true
	}
	return "", false
}
