// Package server exposes the plate pipeline over HTTP. Frames arrive as
// JSON base64, multipart uploads or raw bytes; readings come back as JSON.
// The gate endpoint forwards an already-made match decision to the barrier
// controller; the registry lookup itself lives outside this service.
package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/agrovate/plategate/internal/gate"
)

// Server handles the HTTP surface. The gate controller is optional; without
// it the gate endpoint reports the feature as unavailable.
type Server struct {
	pool *Pool
	gate *gate.Controller
	log  *zap.Logger
}

func New(pool *Pool, gateCtrl *gate.Controller, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{pool: pool, gate: gateCtrl, log: log}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/read-plate", s.handleReadPlate).Methods("POST")
	r.HandleFunc("/gate", s.handleGate).Methods("POST")
	r.HandleFunc("/gate/status", s.handleGateStatus).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	return r
}

// ReadResponse is the result of one frame submission. An empty plate with
// zero confidence means nothing readable was found.
type ReadResponse struct {
	RequestID  string           `json:"request_id"`
	Plate      string           `json:"plate"`
	Confidence float64          `json:"confidence"`
	Box        *json.RawMessage `json:"box,omitempty"`
	Class      string           `json:"class,omitempty"`
	ElapsedMs  int64            `json:"elapsed_ms"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleReadPlate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx := r.Context()

	imgBytes, err := readImageBytes(r)
	if err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		s.sendError(w, "invalid_image", "failed to decode image", http.StatusBadRequest)
		return
	}

	pl, err := s.pool.Acquire(ctx)
	if err != nil {
		s.sendError(w, "pipeline_unavailable", err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.pool.Release(pl)

	reading := pl.Process(img)

	response := ReadResponse{
		RequestID:  requestID,
		Plate:      reading.Text,
		Confidence: reading.Confidence,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	if reading.Text != "" {
		boxJSON, _ := json.Marshal(reading.Box)
		raw := json.RawMessage(boxJSON)
		response.Box = &raw
		response.Class = reading.Class.String()
	}

	s.log.Info("frame processed",
		zap.String("request_id", requestID),
		zap.String("plate", reading.Text),
		zap.Float64("confidence", reading.Confidence),
		zap.Int64("elapsed_ms", response.ElapsedMs))

	writeJSON(w, http.StatusOK, response)
}

// GateRequest carries a match decision made by the external registry
// service.
type GateRequest struct {
	Vehicle string `json:"vehicle"`
	Side    string `json:"side"`
	Matched bool   `json:"matched"`
}

type GateResponse struct {
	Opened bool `json:"opened"`
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		s.sendError(w, "gate_disabled", "gate control is not configured", http.StatusServiceUnavailable)
		return
	}

	var req GateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	opened, err := s.gate.Actuate(r.Context(), req.Vehicle, gate.Side(strings.ToLower(req.Side)), req.Matched)
	if err != nil {
		s.sendError(w, "gate_error", err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, GateResponse{Opened: opened})
}

func (s *Server) handleGateStatus(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		s.sendError(w, "gate_disabled", "gate control is not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.gate.Status(r.Context()))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readImageBytes(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(req.Image)
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	default:
		return io.ReadAll(r.Body)
	}
}

func (s *Server) sendError(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
