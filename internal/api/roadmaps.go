package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/overdrive/internal/db"
	"github.com/banshee-data/overdrive/internal/render"
	"github.com/banshee-data/overdrive/internal/track"
)

// PieceJSON is one placed section as served by the API. Pose fields are the
// world entry point of the section.
type PieceJSON struct {
	Index      int        `json:"index"`
	Kind       track.Kind `json:"kind"`
	PieceID    int        `json:"piece_id"`
	LocationID int        `json:"location_id"`
	Reverse    bool       `json:"reverse"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Heading    float64    `json:"heading"`
}

// RoadmapJSON is a roadmap as served by the API.
type RoadmapJSON struct {
	Record     *db.RoadmapRecord `json:"record,omitempty"`
	Complete   bool              `json:"complete"`
	Normalized bool              `json:"normalized"`
	Pieces     []PieceJSON       `json:"pieces"`
	Steps      []track.Step      `json:"steps"`
}

func roadmapJSON(rm *track.Roadmap) RoadmapJSON {
	out := RoadmapJSON{
		Complete:   rm.IsComplete(),
		Normalized: rm.Normalized(),
		Pieces:     []PieceJSON{},
		Steps:      rm.Steps(),
	}
	for p := range rm.Pieces() {
		e := p.WorldEntry()
		out.Pieces = append(out.Pieces, PieceJSON{
			Index:      len(out.Pieces),
			Kind:       p.Kind(),
			PieceID:    p.PieceID,
			LocationID: p.LocationID,
			Reverse:    p.Reverse,
			X:          e.X(),
			Y:          e.Y(),
			Heading:    e.Heading(),
		})
	}
	return out
}

func wantNormalized(r *http.Request) bool {
	switch r.URL.Query().Get("normalized") {
	case "1", "true", "yes":
		return true
	}
	return false
}

// currentRoadmap is a copy of the scanner's roadmap, normalized when the
// request asks for it.
func (s *Server) currentRoadmap(r *http.Request) *track.Roadmap {
	rm := s.scanner.Roadmap()
	if wantNormalized(r) {
		rm.Normalize()
	}
	return rm
}

func (s *Server) showRoadmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, roadmapJSON(s.currentRoadmap(r)))
}

func (s *Server) roadmapPNG(w http.ResponseWriter, r *http.Request) {
	s.renderRoadmap(w, r, "image/png", render.PlotPNG)
}

func (s *Server) roadmapHTML(w http.ResponseWriter, r *http.Request) {
	s.renderRoadmap(w, r, "text/html; charset=utf-8", render.ChartHTML)
}

type renderFunc func(w io.Writer, rm *track.Roadmap, title string) error

func (s *Server) renderRoadmap(w http.ResponseWriter, r *http.Request, contentType string, fn renderFunc) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rm := s.currentRoadmap(r)
	title := "Scanned roadmap"
	if id := r.URL.Query().Get("id"); id != "" {
		if s.db == nil {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No database configured")
			return
		}
		rec, stored, err := s.db.LoadRoadmap(r.Context(), id)
		if err != nil {
			s.writeDBError(w, err)
			return
		}
		if wantNormalized(r) {
			stored.Normalize()
		}
		rm, title = stored, rec.Name
	}

	var buf bytes.Buffer
	if err := fn(&buf, rm, title); err != nil {
		if errors.Is(err, render.ErrEmptyRoadmap) {
			s.writeJSONError(w, http.StatusNotFound, "Roadmap has no pieces")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render roadmap: %v", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(buf.Bytes())
}

func (s *Server) writeDBError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrInvalidID):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

type saveRoadmapRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRoadmaps(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No database configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		records, err := s.db.ListRoadmaps(r.Context())
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list roadmaps: %v", err))
			return
		}
		s.writeJSON(w, http.StatusOK, records)

	case http.MethodPost:
		var req saveRoadmapRequest
		if r.ContentLength != 0 && !s.readJSON(w, r, &req) {
			return
		}
		rm := s.scanner.Roadmap()
		if rm.Len() == 0 {
			s.writeJSONError(w, http.StatusConflict, "Nothing scanned yet")
			return
		}
		vehicle := ""
		if s.vehicle != nil {
			vehicle = s.vehicle.Address()
		}
		rec, err := s.db.SaveRoadmap(r.Context(), req.Name, vehicle, rm)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save roadmap: %v", err))
			return
		}
		s.writeJSON(w, http.StatusCreated, rec)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No database configured")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/roadmaps/")
	if id, ok := strings.CutSuffix(id, "/export"); ok {
		s.exportRoadmap(w, r, id)
		return
	}
	switch r.Method {
	case http.MethodGet:
		rec, rm, err := s.db.LoadRoadmap(r.Context(), id)
		if err != nil {
			s.writeDBError(w, err)
			return
		}
		if wantNormalized(r) {
			rm.Normalize()
		}
		out := roadmapJSON(rm)
		out.Record = &rec
		s.writeJSON(w, http.StatusOK, out)

	case http.MethodDelete:
		if err := s.db.DeleteRoadmap(r.Context(), id); err != nil {
			s.writeDBError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) exportRoadmap(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.opts.PlotDir == "" {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Plot export is not configured")
		return
	}
	rec, rm, err := s.db.LoadRoadmap(r.Context(), id)
	if err != nil {
		s.writeDBError(w, err)
		return
	}
	paths, err := render.Export(s.opts.FS, s.opts.PlotDir, rec.Name, rm)
	if errors.Is(err, render.ErrEmptyRoadmap) {
		s.writeJSONError(w, http.StatusConflict, "Roadmap has no pieces")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export roadmap: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"files": paths})
}
