package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Nzyazin/bankflow/internal/core/logger"
	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/Nzyazin/bankflow/internal/core/usecase"
	"github.com/Nzyazin/bankflow/internal/core/view"
	"github.com/gorilla/mux"
)

const (
	msgRecorded     = "Operation recorded successfully!"
	msgInsertFailed = "Failed to record operation: "
)

// PageHandler serves the dashboard pages and the regions they load.
type PageHandler struct {
	usecase  usecase.OperationsUsecase
	renderer *view.Renderer
	log      logger.Logger
}

func NewPageHandler(usecase usecase.OperationsUsecase, renderer *view.Renderer, log logger.Logger) *PageHandler {
	return &PageHandler{usecase: usecase, renderer: renderer, log: log}
}

func (h *PageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/actions", h.Actions).Methods(http.MethodGet)
	router.HandleFunc("/actions", h.SubmitOperation).Methods(http.MethodPost)
	router.HandleFunc("/fragments/stats", h.StatsFragment).Methods(http.MethodGet)
	router.HandleFunc("/fragments/operations", h.OperationsFragment).Methods(http.MethodGet)
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := view.IndexPage{
		Nav:    view.Nav("/"),
		Filter: strings.TrimSpace(r.URL.Query().Get("account")),
	}
	h.logRenderError(r, h.renderer.RenderIndex(w, http.StatusOK, page))
}

func (h *PageHandler) Actions(w http.ResponseWriter, r *http.Request) {
	page := view.ActionsPage{
		Nav:  view.Nav("/actions"),
		Form: models.DefaultOperationForm(),
	}
	h.logRenderError(r, h.renderer.RenderActions(w, http.StatusOK, page))
}

func (h *PageHandler) SubmitOperation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		h.log.Warn("Failed to parse form", logger.ErrorField("error", err))
		page := view.ActionsPage{
			Nav:    view.Nav("/actions"),
			Form:   models.DefaultOperationForm(),
			Notice: &view.Notice{Kind: view.NoticeError, Message: "Invalid form submission"},
		}
		h.logRenderError(r, h.renderer.RenderActions(w, http.StatusBadRequest, page))
		return
	}

	form := models.OperationForm{
		AccountNumber: r.PostForm.Get("account_number"),
		OperationType: r.PostForm.Get("operation_type"),
		Amount:        r.PostForm.Get("amount"),
		Interest:      r.PostForm.Get("interest"),
		Payments:      r.PostForm.Get("payments"),
	}

	page := view.ActionsPage{Nav: view.Nav("/actions"), Form: form}
	status := http.StatusOK

	_, err := h.usecase.CreateOperation(r.Context(), form)

	var verr *usecase.ValidationError
	var ierr *usecase.InsertError
	switch {
	case err == nil:
		page.Form = models.DefaultOperationForm()
		page.Notice = &view.Notice{Kind: view.NoticeSuccess, Message: msgRecorded}
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		page.Notice = &view.Notice{Kind: view.NoticeError, Message: verr.Message}
	case errors.As(err, &ierr):
		status = http.StatusBadGateway
		page.Notice = &view.Notice{Kind: view.NoticeError, Message: msgInsertFailed + ierr.Message}
	default:
		h.log.Error("Failed to record operation", logger.ErrorField("error", err))
		status = http.StatusInternalServerError
		page.Notice = &view.Notice{Kind: view.NoticeError, Message: msgInsertFailed + err.Error()}
	}

	h.logRenderError(r, h.renderer.RenderActions(w, status, page))
}

func (h *PageHandler) StatsFragment(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.usecase.Stats(r.Context())
	h.logRenderError(r, h.renderer.RenderStats(w, http.StatusOK, view.NewStatsView(snapshot, err)))
}

func (h *PageHandler) OperationsFragment(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("account"))
	ops, err := h.usecase.ListOperations(r.Context(), filter)
	v := view.NewOperationsView(ops, filter, err, h.renderer.Location())
	h.logRenderError(r, h.renderer.RenderOperations(w, http.StatusOK, v))
}

func (h *PageHandler) logRenderError(r *http.Request, err error) {
	if err != nil {
		h.log.Error("Failed to render page",
			logger.StringField("path", r.URL.Path),
			logger.ErrorField("error", err))
	}
}
