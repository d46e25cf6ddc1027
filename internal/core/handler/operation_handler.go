package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Nzyazin/bankflow/internal/core/logger"
	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/Nzyazin/bankflow/internal/core/usecase"
	"github.com/gorilla/mux"
)

// OperationHandler serves the JSON API over account operations.
type OperationHandler struct {
	usecase usecase.OperationsUsecase
	log     logger.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OperationsResponse struct {
	Operations []models.Operation `json:"operations"`
	Count      int                `json:"count"`
}

type SummaryResponse struct {
	Operations []models.OperationSummary `json:"operations"`
}

func NewOperationHandler(usecase usecase.OperationsUsecase, log logger.Logger) *OperationHandler {
	return &OperationHandler{usecase: usecase, log: log}
}

func (h *OperationHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/operations", h.ListOperations).Methods(http.MethodGet)
	api.HandleFunc("/operations", h.CreateOperation).Methods(http.MethodPost)
	api.HandleFunc("/operations/summary", h.ListOperationSummaries).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
}

func (h *OperationHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.usecase.ListOperations(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		h.handleOperationError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, OperationsResponse{Operations: ops, Count: len(ops)})
}

func (h *OperationHandler) ListOperationSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.usecase.ListOperationSummaryFields(r.Context())
	if err != nil {
		h.handleOperationError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SummaryResponse{Operations: summaries})
}

func (h *OperationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.usecase.Stats(r.Context())
	if err != nil {
		h.handleOperationError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

func (h *OperationHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	form, err := h.decodeRequest(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.usecase.CreateOperation(r.Context(), *form)
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OperationHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.OperationForm, error) {
	var payload struct {
		AccountNumber string          `json:"account_number"`
		OperationType string          `json:"operation_type"`
		Amount        json.RawMessage `json:"amount"`
		Interest      json.RawMessage `json:"interest"`
		Payments      json.RawMessage `json:"payments"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		return nil, fmt.Errorf("invalid request payload")
	}

	form := &models.OperationForm{
		AccountNumber: payload.AccountNumber,
		OperationType: payload.OperationType,
	}
	for _, f := range []struct {
		raw json.RawMessage
		dst *string
	}{
		{payload.Amount, &form.Amount},
		{payload.Interest, &form.Interest},
		{payload.Payments, &form.Payments},
	} {
		s, err := rawNumberString(f.raw)
		if err != nil {
			h.log.Warn("Invalid numeric field", logger.StringField("value", string(f.raw)))
			return nil, err
		}
		*f.dst = s
	}
	return form, nil
}

// rawNumberString accepts a JSON number, a string or null and returns the
// text the form layer expects.
func rawNumberString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid numeric value: %s", raw)
	}
	return n.String(), nil
}

func (h *OperationHandler) handleOperationError(w http.ResponseWriter, err error) {
	var verr *usecase.ValidationError
	var ierr *usecase.InsertError

	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &ierr):
		respondWithError(w, http.StatusBadGateway, ierr.Error())
	case errors.Is(err, usecase.ErrFetch):
		respondWithError(w, http.StatusBadGateway, usecase.ErrFetch.Error())
	default:
		h.log.Error("Failed to process request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`)) // Fallback response
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
