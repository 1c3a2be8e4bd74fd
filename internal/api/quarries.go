package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

const (
	geoJSONContentType = "application/geo+json"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type successResponse struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
}

func counted(n int) successResponse {
	return successResponse{Success: true, Count: &n}
}

type bulkCreateRequest struct {
	Quarries []model.QuarryInput `json:"quarries"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleListQuarries(w http.ResponseWriter, r *http.Request) {
	list, err := s.Quarries.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetQuarry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.Quarries.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleSearchQuarries(w http.ResponseWriter, r *http.Request) {
	list, err := s.Quarries.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDistances(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.Quarries.DistancesByProvince(r.Context(), r.URL.Query().Get("province"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Server) handleListProvinces(w http.ResponseWriter, r *http.Request) {
	list, err := s.Quarries.Provinces(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	body, err := s.Quarries.GeoJSON(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", geoJSONContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Quarries.WriteXLSX(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="ocaklar.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) handleCreateQuarry(w http.ResponseWriter, r *http.Request) {
	var in model.QuarryInput
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.Quarries.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.Quarries.CreateMany(r.Context(), req.Quarries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, counted(n))
}

// handleImport accepts one multipart field "file" holding a .kml or .kmz.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes
	if r.ContentLength > limit {
		writeError(w, r, eris.Wrapf(errPayloadTooLarge, "api: upload exceeds %d bytes", limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = eris.Wrapf(errBadRequest, "api: multipart field \"file\": %s", err.Error())
		}
		writeError(w, r, err)
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, eris.Wrap(err, "api: read upload"))
		return
	}

	res, err := s.Quarries.Import(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateQuarry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch model.QuarryPatch
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.Quarries.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuarry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Quarries.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleDeleteBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.Quarries.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counted(n))
}
