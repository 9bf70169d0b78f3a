//go:build darwin

package volume

func mountRoots() []string {
	return []string{"/Volumes"}
}

func systemVolumeNames() []string {
	return []string{
		"Macintosh HD",
		"Macintosh HD - Data",
		"Recovery",
		"Preboot",
		"VM",
		"Update",
	}
}
