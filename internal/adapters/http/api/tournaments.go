package api

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/duelkit/internal/adapters/export"
	service "github.com/okian/duelkit/internal/app"
	"github.com/okian/duelkit/internal/domain/bracket"
)

type createRequest struct {
	Category   string `json:"category"`
	Channel    string `json:"channel"`
	Players    string `json:"players"`
	CategoryID uint64 `json:"category_id"`
	ChannelID  uint64 `json:"channel_id"`
}

type messageRequest struct {
	CategoryID uint64 `json:"category_id"`
	ChannelID  uint64 `json:"channel_id"`
	MessageID  uint64 `json:"message_id"`
}

type reportRequest struct {
	Text string `json:"text"`
}

type resultRequest struct {
	Label  string `json:"label"`
	Winner string `json:"winner"`
}

type cancelRequest struct {
	Label string `json:"label"`
}

// tournamentResponse adds derived progress to the stored tournament.
type tournamentResponse struct {
	*bracket.Tournament
	Pending  int  `json:"pending"`
	Complete bool `json:"complete"`
}

func newTournamentResponse(t *bracket.Tournament) tournamentResponse {
	return tournamentResponse{Tournament: t, Pending: t.Pending(), Complete: t.IsComplete()}
}

type cancelResponse struct {
	Match   bracket.MatchRef `json:"match"`
	Message string           `json:"message"`
}

// target reads the guild and tournament name from the path.
func target(r *http.Request) (uint64, string, error) {
	guildID, err := guildParam(r)
	if err != nil {
		return 0, "", err
	}
	name := chi.URLParam(r, "name")
	if strings.TrimSpace(name) == "" {
		return 0, "", errors.New("missing tournament name")
	}
	return guildID, name, nil
}

// handleCreate handles POST /v1/guilds/{guildID}/tournaments.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_tournament"
	guildID, err := guildParam(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req createRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := s.deps.CreateTournament(r.Context(), service.CreateRequest{
		GuildID:    guildID,
		CategoryID: req.CategoryID,
		ChannelID:  req.ChannelID,
		Category:   req.Category,
		Channel:    req.Channel,
		Players:    req.Players,
	})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+t.Name)
	writeJSON(w, http.StatusCreated, newTournamentResponse(t))
}

// handleGet handles GET .../tournaments/{name}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tournament"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := s.deps.Get(r.Context(), guildID, name)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newTournamentResponse(t))
}

// handleAttachMessage handles PUT .../tournaments/{name}/message.
func (s *Server) handleAttachMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.attach_message"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req messageRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := s.deps.AttachMessage(r.Context(), guildID, name, bracket.MessageRef{
		GuildID:    guildID,
		CategoryID: req.CategoryID,
		ChannelID:  req.ChannelID,
		MessageID:  req.MessageID,
	})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, t.Message)
}

// handleSuggest handles GET .../tournaments/{name}/matches?q=&limit=.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	const op = "api.suggest_matches"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit := bracket.SuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > bracket.SuggestLimit {
			s.fail(w, r, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	refs, err := s.deps.Suggest(r.Context(), guildID, name, r.URL.Query().Get("q"), limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if refs == nil {
		refs = []bracket.MatchRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// handleReport handles POST .../tournaments/{name}/report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report_match"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req reportRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	rep, err := s.deps.Report(r.Context(), guildID, name, req.Text)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleResolve handles POST .../tournaments/{name}/results.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_match"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req resultRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Label) == "" || strings.TrimSpace(req.Winner) == "" {
		s.fail(w, r, WrapKind(op, ErrBadRequest, errors.New("label and winner are required")))
		return
	}
	res, err := s.deps.Resolve(r.Context(), guildID, name, req.Label, req.Winner)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCancel handles POST .../tournaments/{name}/cancel.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel_report"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	ref, err := s.deps.Cancel(r.Context(), guildID, name, req.Label)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Match: ref, Message: "\U0001F44D"})
}

// handleExport handles GET .../tournaments/{name}/export.xlsx.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_tournament"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	data, err := s.deps.ExportXLSX(r.Context(), guildID, name)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".xlsx"}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = bytes.NewReader(data).WriteTo(w)
}

// handleRequestExport handles POST .../tournaments/{name}/export.
func (s *Server) handleRequestExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.request_export"
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.RequestExport(r.Context(), guildID, name); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleLive handles GET .../tournaments/{name}/live.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.live_bracket"
	if s.live == nil {
		writeError(w, http.StatusNotFound, "not_found", errors.New("live updates are disabled"))
		return
	}
	guildID, name, err := target(r)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	room, initial, err := s.deps.Live(r.Context(), guildID, name)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	s.live.Serve(w, r, room, initial)
}
