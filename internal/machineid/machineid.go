// Package machineid identifies the machine a job's snapshots were taken on,
// so a manifest recorded on removable storage can be traced back to its
// source even after the machine that wrote it is gone.
package machineid

import "os"

// idLength is how many leading characters of the platform UUID (or
// /etc/machine-id) are kept. A short, stable prefix is plenty to
// disambiguate machines without embedding a full UUID in every manifest.
const idLength = 8

// ID returns a short, stable identifier for the current machine: the first
// idLength characters of the platform hardware UUID when one is available,
// otherwise an empty string.
func ID() string {
	id, ok := hardwareUUID()
	if !ok {
		return ""
	}
	if len(id) > idLength {
		id = id[:idLength]
	}
	return id
}

// Name returns a human-readable label for the current machine, used
// alongside ID in manifest entries. Falls back to "unknown" if the
// hostname cannot be determined.
func Name() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
