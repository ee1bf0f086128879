package handlers

import (
	"errors"
	"net/http"

	"source-seeker/internal/cachegroups"
	"source-seeker/internal/logging"
	"source-seeker/internal/scanner"
)

// RemoveGroupsRequest names the folders to drop from the cache.
type RemoveGroupsRequest struct {
	Folders []string `json:"folders"`
}

// RemoveGroupsResponse reports per-folder results.
type RemoveGroupsResponse struct {
	Results []cachegroups.RemoveResult `json:"results"`
	Removed int64                      `json:"removed"`
}

// ListCacheGroups returns every cached folder group.
func (h *Handlers) ListCacheGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.grouper.ListGroups(r.Context())
	if err != nil {
		logging.Error("Failed to list cache groups: %v", err)
		writeJSONError(w, "Failed to list cache groups", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []cachegroups.FolderGroup{}
	}
	writeJSONStatusCode(w, groups, http.StatusOK)
}

// RemoveCacheGroups deletes the cached fingerprints of the given folders and
// their subfolders. It is refused while a scan is running.
func (h *Handlers) RemoveCacheGroups(w http.ResponseWriter, r *http.Request) {
	var req RemoveGroupsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Folders) == 0 {
		writeJSONError(w, "folders is required", http.StatusBadRequest)
		return
	}
	var results []cachegroups.RemoveResult
	err := h.controller.WhileIdle(func() error {
		var err error
		results, err = h.grouper.RemoveGroups(r.Context(), req.Folders)
		return err
	})
	if errors.Is(err, scanner.ErrScanInProgress) {
		writeJSONError(w, "Cannot modify the cache while a scan is running", http.StatusConflict)
		return
	}

	resp := RemoveGroupsResponse{Results: results}
	for _, res := range results {
		resp.Removed += res.Removed
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	writeJSONStatusCode(w, resp, status)
}

// GetCacheStats returns cache row counts and size on disk.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to read cache stats: %v", err)
		writeJSONError(w, "Failed to read cache stats", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, stats, http.StatusOK)
}
