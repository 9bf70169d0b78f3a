package api

import (
	"net/http"

	"github.com/amber-sync/amber-sub000/internal/volume"
)

// volumeResponse describes one mounted, externally-attached volume
// eligible as a backup destination.
type volumeResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsSystem bool   `json:"isSystem"`
}

// VolumeHandler serves GET /api/v1/volumes.
type VolumeHandler struct{}

// NewVolumeHandler creates a new VolumeHandler.
func NewVolumeHandler() *VolumeHandler {
	return &VolumeHandler{}
}

// List handles GET /api/v1/volumes. Lists every volume currently mounted
// under a platform mount root, annotated with whether it is a protected
// system volume.
func (h *VolumeHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []volumeResponse
	for _, root := range volume.MountRoots() {
		for _, path := range volume.ListMounted(root) {
			name, ok := volume.NameFromPath(path)
			if !ok {
				continue
			}
			items = append(items, volumeResponse{
				Name:     name,
				Path:     path,
				IsSystem: volume.IsSystem(path),
			})
		}
	}
	if items == nil {
		items = []volumeResponse{}
	}
	Ok(w, items)
}
