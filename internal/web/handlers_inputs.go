package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
)

// inputFileUploadResponse wraps the stored file's description.
type inputFileUploadResponse struct {
	File core.InputFileSummary `json:"file"`
}

// handleListInputFiles lists stored input files and the union of their
// series names.
func (s *Server) handleListInputFiles(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.service.ListInputFiles())
}

// handleUploadInputFile ingests an input file.
func (s *Server) handleUploadInputFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sum, err := s.service.UploadInputFile(WithRequestMetadata(r.Context(), r), name, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, inputFileUploadResponse{File: sum})
}

// handleEditInputFile overwrites one time cell.
func (s *Server) handleEditInputFile(w http.ResponseWriter, r *http.Request) {
	var req core.InputFileEdit
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.EditInputFile(WithRequestMetadata(r.Context(), r), req); err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, statusOK)
}

// handleDeleteInputFile drops an input file.
func (s *Server) handleDeleteInputFile(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInputFile(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, statusOK)
}

// handleExportInputFile downloads an input file as csv or xlsx.
func (s *Server) handleExportInputFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.ExportInputFile(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sendFile(w, out)
}

// handleInputFileSeries returns one series of one file. The sheet query
// parameter defaults to Quarterly.
func (s *Server) handleInputFileSeries(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetSeries(
		chi.URLParam(r, "id"),
		r.URL.Query().Get("sheet"),
		chi.URLParam(r, "name"),
	)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// handlePlotSeries overlays one series across input files.
func (s *Server) handlePlotSeries(w http.ResponseWriter, r *http.Request) {
	var req core.PlotRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Plot(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// handleGetNameList returns the active name list.
func (s *Server) handleGetNameList(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.service.NameList())
}

// handleUploadNameList replaces the name list.
func (s *Server) handleUploadNameList(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	snap, err := s.service.UploadNameList(WithRequestMetadata(r.Context(), r), name, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}
