package mockdsp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cepro/dspcontrol/device"
)

// maxBodyBytes limits the size of a config request body.
const maxBodyBytes = 1 << 20

// Handler serves the REST API of the device backed by the given engine:
//
//	GET  /devices
//	GET  /devices/0/status
//	POST /devices/0/config
//	GET  /devices/0/inputs/meters
//	GET  /devices/0/outputs/meters
func Handler(e *Engine) http.Handler {
	h := &handler{engine: e, logger: e.logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", h.handleDevices)
	mux.HandleFunc("GET /devices/{id}/status", h.withDevice(h.handleStatus))
	mux.HandleFunc("POST /devices/{id}/config", h.withDevice(h.handleConfig))
	mux.HandleFunc("GET /devices/{id}/inputs/meters", h.withDevice(h.handleInputMeters))
	mux.HandleFunc("GET /devices/{id}/outputs/meters", h.withDevice(h.handleOutputMeters))
	return mux
}

type handler struct {
	engine *Engine
	logger *slog.Logger
}

// withDevice rejects requests for any device other than the single simulated one.
func (h *handler) withDevice(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil || id != 0 {
			h.writeError(w, http.StatusNotFound, fmt.Errorf("unknown device '%s'", r.PathValue("id")))
			return
		}
		next(w, r)
	}
}

func (h *handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Devices(r.Context()))
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status(r.Context()))
}

func (h *handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	var patch device.ConfigPatch
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse body: %w", err))
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.UpdateConfig(r.Context(), patch))
}

func (h *handler) handleInputMeters(w http.ResponseWriter, r *http.Request) {
	levels := h.engine.MeterLevels(r.Context())
	h.writeJSON(w, http.StatusOK, levels[:device.InputCount])
}

func (h *handler) handleOutputMeters(w http.ResponseWriter, r *http.Request) {
	levels := h.engine.MeterLevels(r.Context())
	h.writeJSON(w, http.StatusOK, levels[device.InputCount:])
}

func (h *handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, statusCode int, err error) {
	h.logger.Warn("Rejected request", "status_code", statusCode, "error", err)
	h.writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}
