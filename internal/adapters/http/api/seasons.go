package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/duelkit/internal/adapters/chart"
	"github.com/okian/duelkit/internal/domain/standings"
)

// standingsResponse is the season plus its current leader.
type standingsResponse struct {
	Category string            `json:"category"`
	Leader   *standings.Record `json:"leader,omitempty"`
	Season   standings.Season  `json:"season"`
}

func (s *Server) season(r *http.Request, op string) (standings.Season, string, error) {
	guildID, err := guildParam(r)
	if err != nil {
		return standings.Season{}, "", WrapKind(op, ErrBadRequest, err)
	}
	category := chi.URLParam(r, "category")
	if strings.TrimSpace(category) == "" {
		return standings.Season{}, "", WrapKind(op, ErrBadRequest, errors.New("missing category"))
	}
	var categoryID uint64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		categoryID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return standings.Season{}, "", WrapKind(op, ErrBadRequest, errors.New("invalid category_id"))
		}
	}
	season, err := s.deps.Standings(r.Context(), guildID, category, categoryID)
	if err != nil {
		return standings.Season{}, "", Wrap(op, err)
	}
	return season, category, nil
}

// handleStandings handles GET .../seasons/{category}/standings.
func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	season, category, err := s.season(r, "api.standings")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := standingsResponse{Category: category, Season: season}
	if leader, ok := season.Leader(); ok {
		resp.Leader = &leader
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChart handles GET .../seasons/{category}/standings/{kind}.png.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.standings_chart"
	kind := chi.URLParam(r, "kind")
	if kind != chart.KindLine && kind != chart.KindBar {
		s.fail(w, r, WrapKind(op, chart.ErrUnknownKind, errors.New(strconv.Quote(kind))))
		return
	}
	season, _, err := s.season(r, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	png, err := chart.Render(kind, season, chart.DefaultPalette)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", chart.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
