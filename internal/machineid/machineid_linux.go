//go:build linux

package machineid

import (
	"os"
	"strings"
)

// machineIDPaths are tried in order; /etc/machine-id is the systemd-managed
// location, /var/lib/dbus/machine-id is the older dbus fallback still
// present on some distributions.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

func hardwareUUID() (string, bool) {
	for _, path := range machineIDPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(string(raw))
		if trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}
