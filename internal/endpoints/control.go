// Package endpoints provides the HTTP control plane that drives the adapter
// the way a mediation framework would, and reports what it observed.
package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/thenexusengine/tne_adtalos/internal/adapter"
	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// Controller is the adapter surface the control plane drives
type Controller interface {
	Initialize(ctx context.Context, params mediation.InitParams, onComplete mediation.OnCompletion) (mediation.InitializationStatus, error)
	InitializationStatus() (mediation.InitializationStatus, error)
	Load(format mediation.AdFormat, req mediation.Request, target bridge.Target)
	Show(format mediation.AdFormat, req mediation.Request, target bridge.Target)
	LoadNativeAd(req mediation.Request, l mediation.NativeAdListener)
	Destroy() int
	Versions() adapter.Versions
	Snapshot() []adapter.InstanceInfo
}

// StatsFunc reports the state of one supporting component
type StatsFunc func() interface{}

// ControlHandler serves the /v1 control plane
type ControlHandler struct {
	adapter  Controller
	recorder *mediation.Recorder
	stats    map[string]StatsFunc
}

// NewControlHandler creates the control plane. Callbacks the adapter
// delivers are kept in recorder.
func NewControlHandler(a Controller, recorder *mediation.Recorder) *ControlHandler {
	if recorder == nil {
		recorder = mediation.NewRecorder(0)
	}
	return &ControlHandler{
		adapter:  a,
		recorder: recorder,
		stats:    make(map[string]StatsFunc),
	}
}

// AddStats exposes a component under GET /v1/stats. Call before serving.
func (h *ControlHandler) AddStats(name string, fn StatsFunc) {
	h.stats[name] = fn
}

// Register mounts every control-plane route on mux
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/initialize", method(http.MethodPost, h.handleInitialize))
	mux.HandleFunc("/v1/ads/load", method(http.MethodPost, h.handleLoad))
	mux.HandleFunc("/v1/ads/show", method(http.MethodPost, h.handleShow))
	mux.HandleFunc("/v1/destroy", method(http.MethodPost, h.handleDestroy))
	mux.HandleFunc("/v1/version", method(http.MethodGet, h.handleVersion))
	mux.HandleFunc("/v1/ads", method(http.MethodGet, h.handleAds))
	mux.HandleFunc("/v1/callbacks", h.handleCallbacks)
	mux.HandleFunc("/v1/stats", method(http.MethodGet, h.handleStats))
}

func method(m string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			w.Header().Set("Allow", m)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

type initializeResponse struct {
	Status mediation.InitializationStatus `json:"status"`
	Error  string                         `json:"error,omitempty"`
}

func (h *ControlHandler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var params mediation.InitParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.adapter.Initialize(r.Context(), params, nil)
	resp := initializeResponse{Status: status}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

// adRequest is the body of load and show calls
type adRequest struct {
	Format string `json:"format"`
	mediation.Request
}

type adResponse struct {
	Format      string `json:"format"`
	PlacementID string `json:"placement_id"`
	Status      string `json:"status"`
}

func (h *ControlHandler) parseAdRequest(w http.ResponseWriter, r *http.Request) (mediation.AdFormat, mediation.Request, bool) {
	var body adRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, mediation.Request{}, false
	}
	format, err := mediation.ParseAdFormat(body.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, mediation.Request{}, false
	}
	if strings.TrimSpace(body.PlacementID) == "" && !body.Testing {
		writeError(w, http.StatusBadRequest, "placement_id is required")
		return 0, mediation.Request{}, false
	}
	if body.RequestID == "" {
		if id, ok := r.Context().Value(logger.RequestIDKey).(string); ok {
			body.RequestID = id
		}
	}
	return format, body.Request, true
}

func (h *ControlHandler) handleLoad(w http.ResponseWriter, r *http.Request) {
	format, req, ok := h.parseAdRequest(w, r)
	if !ok {
		return
	}

	l := h.recorder.Listener(format, req.PlacementID)
	if format == mediation.FormatNative {
		h.adapter.LoadNativeAd(req, l)
	} else {
		h.adapter.Load(format, req, targetFor(format, l))
	}

	logger.FromContext(r.Context()).Debug().
		Str("format", format.Label()).
		Str("placement_id", req.PlacementID).
		Msg("load dispatched")
	writeJSON(w, http.StatusAccepted, adResponse{Format: format.Label(), PlacementID: req.PlacementID, Status: "dispatched"})
}

func (h *ControlHandler) handleShow(w http.ResponseWriter, r *http.Request) {
	format, req, ok := h.parseAdRequest(w, r)
	if !ok {
		return
	}
	if !format.IsFullscreen() {
		writeError(w, http.StatusBadRequest, "only full-screen formats are shown on request")
		return
	}

	h.adapter.Show(format, req, targetFor(format, h.recorder.Listener(format, req.PlacementID)))
	writeJSON(w, http.StatusAccepted, adResponse{Format: format.Label(), PlacementID: req.PlacementID, Status: "dispatched"})
}

// targetFor wraps the recording listener in the variant for format
func targetFor(format mediation.AdFormat, l *mediation.RecordingListener) bridge.Target {
	switch {
	case format.IsAdView():
		return bridge.ForAdView(format, l)
	case format == mediation.FormatInterstitial:
		return bridge.ForInterstitial(l)
	case format == mediation.FormatRewarded:
		return bridge.ForRewarded(l)
	case format == mediation.FormatAppOpen:
		return bridge.ForAppOpen(l)
	}
	return bridge.Target{}
}

func (h *ControlHandler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	released := h.adapter.Destroy()
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

type versionResponse struct {
	adapter.Versions
	Status mediation.InitializationStatus `json:"initialization_status"`
	Error  string                         `json:"initialization_error,omitempty"`
}

func (h *ControlHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	status, err := h.adapter.InitializationStatus()
	resp := versionResponse{Versions: h.adapter.Versions(), Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ControlHandler) handleAds(w http.ResponseWriter, r *http.Request) {
	ads := h.adapter.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(ads), "ads": ads})
}

// handleCallbacks lists recorded callbacks (GET) or clears them (DELETE).
// ?placement_id= narrows the listing to one placement.
func (h *ControlHandler) handleCallbacks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		h.recorder.Reset()
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if placementID := r.URL.Query().Get("placement_id"); placementID != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"placement_id": placementID,
			"callbacks":    h.recorder.Callbacks(placementID),
		})
		return
	}

	placements := h.recorder.Placements()
	sort.Strings(placements)
	all := make(map[string][]mediation.Callback, len(placements))
	for _, id := range placements {
		all[id] = h.recorder.Callbacks(id)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"placements": all})
}

func (h *ControlHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(h.stats))
	for name, fn := range h.stats {
		out[name] = fn()
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
