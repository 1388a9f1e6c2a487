// Package handlers provides HTTP handlers for allocators.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/allocator"
	"github.com/aristath/allocator/internal/bridge"
	"github.com/aristath/allocator/internal/host"
	"github.com/aristath/allocator/internal/modules/allocators"
	"github.com/aristath/allocator/internal/strategy"
)

// MsgpackContentType selects msgpack request and response bodies on the predict endpoint.
const MsgpackContentType = "application/msgpack"

// Handler handles allocator HTTP requests
type Handler struct {
	service *allocators.Service
	log     zerolog.Logger
}

// NewHandler creates a new allocators handler
func NewHandler(service *allocators.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "allocators").Logger(),
	}
}

// HandleListStrategies handles GET /api/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": h.service.Strategies(),
	})
}

// HandleList handles GET /api/allocators
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocators": h.service.List(),
	})
}

// HandleCreate handles POST /api/allocators
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req allocators.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	info, err := h.service.Create(req.Name, req.Strategy, req.Config)
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("strategy", req.Strategy).
			Msg("Failed to create allocator")
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, info)
}

// HandleGet handles GET /api/allocators/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleDelete handles DELETE /api/allocators/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMinObservations handles GET /api/allocators/{id}/min-observations
func (h *Handler) HandleMinObservations(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MinObservations(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"min_observations": n})
}

// HandlePredict handles POST /api/allocators/{id}/predict
// Bodies are JSON unless the request is sent as application/msgpack.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	packed := isMsgpack(r.Header.Get("Content-Type"))

	var req allocators.PredictRequest
	var err error
	if packed {
		err = msgpack.NewDecoder(r.Body).Decode(&req)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.Predict(id, req.Input)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("id", id).Msg("Prediction failed")
		}
		h.writeError(w, status, err.Error())
		return
	}

	if packed || isMsgpack(r.Header.Get("Accept")) {
		h.writeMsgpack(w, http.StatusOK, resp)
		return
	}

	// JSON has no NaN or Inf; msgpack clients still receive such weights.
	body, err := json.Marshal(resp)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Prediction result is not representable as JSON")
		h.writeError(w, http.StatusBadGateway, "Strategy returned weights that cannot be encoded as JSON: "+err.Error())
		return
	}
	h.writeBody(w, http.StatusOK, "application/json", append(body, '\n'))
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		callErr   *host.CallError
		obsErr    *allocator.InsufficientObservationsError
		convErr   *bridge.ConversionError
		shapeErr  *strategy.ShapeError
		configErr *strategy.ConfigError
	)
	switch {
	case errors.Is(err, allocators.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &callErr):
		return http.StatusBadGateway
	case errors.As(err, &obsErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &convErr),
		errors.As(err, &shapeErr),
		errors.As(err, &configErr),
		errors.Is(err, allocators.ErrInvalidRequest),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, host.ErrUnknownClass):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isMsgpack(header string) bool {
	for _, part := range strings.Split(header, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mediaType == MsgpackContentType || mediaType == "application/x-msgpack" {
			return true
		}
	}
	return false
}

// Helper methods

// writeJSON writes a JSON response. Encoding happens before the status is sent, so a
// value that cannot be encoded becomes a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		h.writeBody(w, http.StatusInternalServerError, "application/json",
			[]byte(`{"error":"Failed to encode response"}`+"\n"))
		return
	}
	h.writeBody(w, status, "application/json", buf.Bytes())
}

// writeMsgpack writes a msgpack response
func (h *Handler) writeMsgpack(w http.ResponseWriter, status int, data interface{}) {
	body, err := msgpack.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		h.writeError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	h.writeBody(w, status, MsgpackContentType, body)
}

func (h *Handler) writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write response body")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
