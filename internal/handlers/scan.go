package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"source-seeker/internal/logging"
	"source-seeker/internal/scanner"
)

// ScanRequest starts a scan of Folder for images similar to Image.
type ScanRequest struct {
	Folder string `json:"folder"`
	Image  string `json:"image"`
}

// ScanStarted is returned when a scan has been accepted.
type ScanStarted struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
	Image  string `json:"image"`
}

// EventView is the JSON form of a scan event.
type EventView struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	Percent int    `json:"percent,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScanState is the response of a scan poll.
type ScanState struct {
	ID        string          `json:"id"`
	Folder    string          `json:"folder"`
	Image     string          `json:"image"`
	State     string          `json:"state"`
	Error     string          `json:"error,omitempty"`
	Progress  int             `json:"progress"`
	Status    string          `json:"status"`
	StartedAt time.Time       `json:"startedAt"`
	Summary   scanner.Summary `json:"summary"`
	Events    []EventView     `json:"events"`
	Matches   []scanner.Match `json:"matches"`
	NextEvent int             `json:"nextEvent"`
	NextMatch int             `json:"nextMatch"`
}

// StartScan begins a scan unless one is already running.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Folder == "" || req.Image == "" {
		writeJSONError(w, "folder and image are required", http.StatusBadRequest)
		return
	}

	folder, err := filepath.Abs(req.Folder)
	if err != nil {
		writeJSONError(w, "Invalid folder path", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		writeJSONError(w, "Folder not found", http.StatusBadRequest)
		return
	}

	sess, err := h.controller.Start(r.Context(), folder, req.Image)
	if errors.Is(err, scanner.ErrScanInProgress) {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logging.Error("Failed to start scan: %v", err)
		writeJSONError(w, "Failed to start scan", http.StatusInternalServerError)
		return
	}

	writeJSONStatusCode(w, ScanStarted{
		ID:     sess.ID,
		Folder: sess.Scan().Root(),
		Image:  sess.Scan().Reference(),
	}, http.StatusAccepted)
}

// CancelScan asks the running scan to stop.
func (h *Handlers) CancelScan(w http.ResponseWriter, _ *http.Request) {
	if err := h.controller.Cancel(); err != nil {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSONStatus(w, "cancelling")
}

// GetScan reports the current or most recent scan. The "events" and
// "matches" query parameters are offsets into the scan's logs; pass back
// nextEvent and nextMatch from the previous response to receive only new
// entries.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	sess := h.controller.Current()
	if sess == nil {
		writeJSONError(w, "No scan has been started", http.StatusNotFound)
		return
	}

	snap := sess.Since(queryOffset(r, "events"), queryOffset(r, "matches"))

	state := ScanState{
		ID:        snap.SessionID,
		Folder:    snap.Root,
		Image:     snap.Reference,
		State:     snap.Outcome.String(),
		Progress:  snap.Progress,
		Status:    snap.LastStatus,
		StartedAt: sess.Scan().StartedAt(),
		Summary:   snap.Summary,
		Events:    make([]EventView, 0, len(snap.Events)),
		Matches:   snap.Matches,
		NextEvent: snap.NextEvent,
		NextMatch: snap.NextMatch,
	}
	if snap.Err != nil {
		state.Error = snap.Err.Error()
	}
	if state.Matches == nil {
		state.Matches = []scanner.Match{}
	}
	for _, ev := range snap.Events {
		state.Events = append(state.Events, eventView(ev))
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatusCode(w, state, http.StatusOK)
}

func eventView(ev scanner.Event) EventView {
	v := EventView{Kind: ev.Kind.String()}
	switch ev.Kind {
	case scanner.EventStatus:
		v.Text = ev.Text
	case scanner.EventProgress:
		v.Percent = ev.Percent
	case scanner.EventDone:
		v.Outcome = ev.Outcome.String()
		if ev.Err != nil {
			v.Error = ev.Err.Error()
		}
	}
	return v
}
