// File: internal/server/handlers.go
package server

import (
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/instruction"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies; a feature document is never close.
const maxBodyBytes = 1 << 20

// Handlers serves the API endpoints.
type Handlers struct {
	log    *zap.Logger
	runner Runner
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, runner Runner) *Handlers {
	return &Handlers{log: logger.Named("handlers"), runner: runner}
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleRun executes one scenario and answers when it reaches a terminal
// state. A request that cannot be compiled is rejected with 400 before any
// browser is started; an executed run answers 200 whatever its outcome.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req schemas.RunRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.runner.Prepare(req)
	if err != nil {
		h.log.Info("Rejected run request.", zap.String("target", req.TargetURL), zap.Error(err))
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info("Run accepted.", zap.String("run_id", p.ID), zap.String("target", p.TargetURL))
	res := h.runner.Execute(r.Context(), p)
	h.respondWithJSON(w, http.StatusOK, res.Response())
}

// HandleParse turns free text into structured steps without running anything.
func (h *Handlers) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req schemas.ParseRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	parsed := instruction.ParseText(req.Text)
	resp := schemas.ParseResponse{
		Instructions: make([]schemas.ParsedInstruction, 0, len(parsed)),
		Recognized:   len(parsed) > 0 && instruction.Check(parsed) == nil,
	}
	for _, in := range parsed {
		resp.Instructions = append(resp.Instructions, schemas.ParsedInstruction{
			OriginalText:   in.OriginalText,
			Recognized:     in.Recognized,
			StructuredStep: in.StructuredStep,
		})
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithJSON(w, statusCode, schemas.ErrorResponse{Error: message})
}

func (h *Handlers) respondWithJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
