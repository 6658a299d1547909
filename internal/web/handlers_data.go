package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
)

// SeriesRequest selects and transforms dataset series.
type SeriesRequest struct {
	DateColumn string   `json:"date_column" validate:"required"`
	Series     []string `json:"series" validate:"required,min=1,dive,required"`
	Transform  string   `json:"transform" validate:"omitempty,oneof=raw monthly_change quarterly_change"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
}

// EditRequest is a batch of dataset cell edits.
type EditRequest struct {
	Edits []core.CellEdit `json:"edits" validate:"required,min=1,dive"`
}

// handleUploadDataset ingests a CSV or XLSX dataset.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sum, err := s.service.UploadDataset(WithRequestMetadata(r.Context(), r), name, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, sum)
}

// handleGetDataset returns dataset metadata and a preview.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.GetDataset(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, sum)
}

// handleDatasetSeries returns transformed, date-bounded series.
func (s *Server) handleDatasetSeries(w http.ResponseWriter, r *http.Request) {
	var req SeriesRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.QuerySeries(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id"), core.SeriesQuery{
		DateColumn: req.DateColumn,
		Series:     req.Series,
		Transform:  core.TransformMode(req.Transform),
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// handleEditDataset applies a batch of edits, all or nothing.
func (s *Server) handleEditDataset(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.EditDataset(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id"), req.Edits); err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, statusOK)
}

// handleExportDataset downloads a dataset as csv or xlsx.
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.ExportDataset(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sendFile(w, out)
}

// handleDeleteDataset drops a dataset.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDataset(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, statusOK)
}
