package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rowline/rowline/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case store.Is(err, store.KindNotFound):
		status = http.StatusNotFound
	case store.Is(err, store.KindInvalidInput):
		status = http.StatusBadRequest
	case store.Is(err, store.KindConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handle) ListRefs(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	refs, err := store.ListRefs(r.Context(), h.db.DB, datasetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (h *Handle) GetRef(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	ref, err := store.GetRef(r.Context(), h.db.DB, datasetID, chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

type createRefRequest struct {
	Name     string `json:"name"`
	CommitID string `json:"commit_id"`
}

func (h *Handle) CreateRef(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	var req createRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.InvalidInput("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, store.InvalidInput("ref name is required"))
		return
	}

	if err := store.CreateRef(r.Context(), h.db.DB, datasetID, req.Name, req.CommitID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *Handle) DeleteRef(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	if err := store.DeleteRef(r.Context(), h.db.DB, datasetID, chi.URLParam(r, "ref"), h.cfg.Core.DefaultBranch); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) GetCommit(w http.ResponseWriter, r *http.Request) {
	commit, err := store.GetCommit(r.Context(), h.db.DB, chi.URLParam(r, "commitID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (h *Handle) GetCommitHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	history, err := store.ListCommitHistory(r.Context(), h.db.DB, chi.URLParam(r, "commitID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handle) ListTables(w http.ResponseWriter, r *http.Request) {
	keys, err := h.reader.ListTableKeys(r.Context(), chi.URLParam(r, "commitID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handle) GetTableSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.reader.GetTableSchema(r.Context(), chi.URLParam(r, "commitID"), chi.URLParam(r, "tableKey"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (h *Handle) GetTableData(w http.ResponseWriter, r *http.Request) {
	pageSize := 0
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pageSize = n
		}
	}

	page, err := h.reader.GetTableData(r.Context(),
		chi.URLParam(r, "commitID"), chi.URLParam(r, "tableKey"),
		r.URL.Query().Get("cursor"), pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handle) GetOverview(w http.ResponseWriter, r *http.Request) {
	meta, err := h.reader.BatchGetTableMetadata(r.Context(), chi.URLParam(r, "commitID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
