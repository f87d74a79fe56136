package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solatis/surveylogic/internal/types"
)

// maxBodyBytes bounds REST request bodies. An answer store for a large
// survey with loops stays well under this.
const maxBodyBytes = 4 << 20

// RouterConfig holds the optional collaborators of the REST router.
type RouterConfig struct {
	// Auth wraps the /v1 routes. Nil leaves them unauthenticated.
	Auth func(http.Handler) http.Handler
	// Metrics instruments the /v1 routes and serves GET /metrics when set.
	Metrics *Metrics
	// Ready reports storage health for GET /health. Nil always reports ok.
	Ready func(ctx context.Context) error
}

type restHandler struct {
	svc   *VisibilityService
	ready func(ctx context.Context) error
}

// NewRouter creates the REST router:
//
//	POST /v1/surveys/{surveyID}/pages/{pageID}/visibility
//	POST /v1/surveys/{surveyID}/rules/validate
//	GET  /health
//	GET  /metrics
func NewRouter(svc *VisibilityService, cfg RouterConfig) http.Handler {
	h := &restHandler{svc: svc, ready: cfg.Ready}
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	evaluate, validate := h.evaluatePage, h.validateRules
	if cfg.Metrics != nil {
		evaluate = cfg.Metrics.instrument("EvaluatePage", evaluate)
		validate = cfg.Metrics.instrument("ValidateRules", validate)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	if cfg.Auth != nil {
		v1.Use(mux.MiddlewareFunc(cfg.Auth))
	}
	v1.HandleFunc("/surveys/{surveyID}/pages/{pageID}/visibility", evaluate).Methods(http.MethodPost)
	v1.HandleFunc("/surveys/{surveyID}/rules/validate", validate).Methods(http.MethodPost)

	return r
}

// evaluatePage handles POST /v1/surveys/{surveyID}/pages/{pageID}/visibility.
// Path parameters override any IDs in the body.
func (h *restHandler) evaluatePage(w http.ResponseWriter, r *http.Request) {
	var req EvaluatePageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	req.SurveyID = types.SurveyID(vars["surveyID"])
	req.PageID = types.PageID(vars["pageID"])

	resp, err := h.svc.EvaluatePage(r.Context(), &req)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// validateRules handles POST /v1/surveys/{surveyID}/rules/validate.
// An empty body validates the stored rules.
func (h *restHandler) validateRules(w http.ResponseWriter, r *http.Request) {
	var req ValidateRulesRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	req.SurveyID = types.SurveyID(mux.Vars(r)["surveyID"])

	resp, err := h.svc.ValidateRules(r.Context(), &req)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// health handles GET /health.
func (h *restHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
