// Package service ties the bracket domain to storage, export workers and the
// live hub. It implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/duelkit/internal/adapters/export"
	"github.com/okian/duelkit/internal/adapters/http/live"
	"github.com/okian/duelkit/internal/adapters/mq/queue"
	"github.com/okian/duelkit/internal/adapters/mq/worker"
	"github.com/okian/duelkit/internal/adapters/repository"
	"github.com/okian/duelkit/internal/adapters/storage"
	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/dedupe"
	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/internal/domain/standings"
	"github.com/okian/duelkit/pkg/logger"
	"github.com/okian/duelkit/pkg/metrics"
)

// CompletionMessage is posted once every match of a tournament has a winner.
const CompletionMessage = "Tournament Finished! Use **/standings** to see the season scores!\n\n" +
	"Also, here is an excel file of this weeks results for your own record keeping."

// Publisher receives bracket updates for live subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg live.Message)
}

// CreateRequest describes a new tournament.
type CreateRequest struct {
	GuildID    uint64
	CategoryID uint64
	ChannelID  uint64
	Category   string
	Channel    string
	// Players is the raw, whitespace separated player list.
	Players string
}

// Report is the answer to a free-text match lookup: the match and the two
// names a winner can be picked from.
type Report struct {
	Match      bracket.MatchRef `json:"match"`
	Candidates [2]string        `json:"candidates"`
}

// Resolution is the result of recording a winner.
type Resolution struct {
	bracket.Outcome
	Tournament   *bracket.Tournament `json:"tournament"`
	Announcement string              `json:"announcement,omitempty"`
	Completion   string              `json:"completion,omitempty"`
}

// Service implements the API dependencies for the tournament bot.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	locks       *repository.KeyLocker
	exportQueue *queue.InMemoryQueue
	pending     dedupe.Deduper
	pool        *worker.Pool
	uploader    storage.Uploader
	publisher   Publisher

	// Configuration
	dataDir         string
	exportWorkers   int
	exportQueueSize int
	conflictRetries int
	allowOverwrite  bool
	shuffle         func([]string)
	now             func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		locks:           repository.NewKeyLocker(),
		dataDir:         "data",
		exportWorkers:   max(2, runtime.NumCPU()/2),
		exportQueueSize: 256,
		conflictRetries: 3,
		allowOverwrite:  true,
		shuffle:         shufflePlayers,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the store and starts the export workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting tournament service...")

	if s.store == nil {
		s.store = repository.NewFileStore(s.dataDir, repository.WithLogger(s.logger.Named("repository")))
		s.logger.Info(ctx, "using file store", logger.String("dir", s.dataDir))
	}
	s.exportQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.exportQueueSize))
	s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.exportQueueSize))
	s.pool = worker.NewPool(s.exportWorkers, s.exportQueue, worker.HandlerFunc(s.handleExport),
		worker.WithLogger(s.logger.Named("export")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "tournament service started",
		logger.Int("exportWorkers", s.exportWorkers),
		logger.Int("exportQueueSize", s.exportQueueSize),
		logger.Int("conflictRetries", s.conflictRetries),
		logger.Bool("allowResultOverwrite", s.allowOverwrite),
	)

	return nil
}

// Stop drains queued exports and shuts the workers down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping tournament service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	if err != nil {
		s.logger.Warn(ctx, "export workers did not drain", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "tournament service stopped")
	return nil
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) policy() bracket.Policy {
	if s.allowOverwrite {
		return bracket.AllowCorrections
	}
	return bracket.RejectCorrections
}

func lockKey(guildID uint64, name string) string {
	return strconv.FormatUint(guildID, 10) + "/" + name
}

// CreateTournament parses and shuffles the players, builds the bracket and
// stores it, replacing any tournament with the same name.
func (s *Service) CreateTournament(ctx context.Context, req CreateRequest) (*bracket.Tournament, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	name, err := names.TournamentName(req.Category, req.Channel)
	if err != nil {
		return nil, err
	}
	players := names.ParsePlayers(req.Players)
	s.shuffle(players)

	t, err := bracket.Build(name, players)
	if err != nil {
		return nil, err
	}
	t.Date = s.now().UTC()
	t.Category = strings.TrimSpace(req.Category)
	t.Message = bracket.MessageRef{GuildID: req.GuildID, CategoryID: req.CategoryID, ChannelID: req.ChannelID}

	unlock, err := s.lock(ctx, req.GuildID, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Put(ctx, req.GuildID, t); err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}

	metrics.RecordTournamentCreated(len(players))
	s.logger.Info(ctx, "tournament created",
		logger.Uint64("guild", req.GuildID),
		logger.String("name", name),
		logger.Int("players", len(players)),
		logger.Int("rounds", len(t.Rounds)),
	)
	s.publish(ctx, req.GuildID, t, live.TypeBracket)
	return t, nil
}

// Get returns the stored tournament.
func (s *Service) Get(ctx context.Context, guildID uint64, name string) (*bracket.Tournament, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Load(ctx, guildID, name)
}

// AttachMessage records where the bracket message was posted.
func (s *Service) AttachMessage(ctx context.Context, guildID uint64, name string, ref bracket.MessageRef) (*bracket.Tournament, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ref.GuildID == 0 {
		ref.GuildID = guildID
	}
	return s.mutate(ctx, guildID, name, func(t *bracket.Tournament) (bool, error) {
		if ref.CategoryID == 0 {
			ref.CategoryID = t.Message.CategoryID
		}
		if t.Message == ref {
			return false, nil
		}
		return true, t.AttachMessage(ref)
	})
}

// Suggest returns up to limit matches whose label contains text.
func (s *Service) Suggest(ctx context.Context, guildID uint64, name, text string, limit int) ([]bracket.MatchRef, error) {
	t, err := s.Get(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > bracket.SuggestLimit {
		limit = bracket.SuggestLimit
	}
	return t.Suggest(text, limit), nil
}

// Report finds the first match containing text and returns its candidates.
func (s *Service) Report(ctx context.Context, guildID uint64, name, text string) (Report, error) {
	t, err := s.Get(ctx, guildID, name)
	if err != nil {
		return Report{}, err
	}
	ref, err := t.FindMatch(text)
	if err != nil {
		metrics.RecordMatchNotFound()
		return Report{}, err
	}
	candidates, err := t.Candidates(ref.Label)
	if err != nil {
		return Report{}, err
	}
	return Report{Match: ref, Candidates: candidates}, nil
}

// Resolve records winner for the match labeled label and persists the
// tournament. When the tournament becomes complete an export is queued and
// the completion message is returned.
func (s *Service) Resolve(ctx context.Context, guildID uint64, name, label, winner string) (Resolution, error) {
	if err := s.ready(); err != nil {
		return Resolution{}, err
	}

	var out bracket.Outcome
	t, err := s.mutate(ctx, guildID, name, func(t *bracket.Tournament) (bool, error) {
		var err error
		out, err = t.Resolve(label, winner, s.policy())
		return out.Changed, err
	})
	if err != nil {
		if errors.Is(err, bracket.ErrAlreadyResolved) {
			metrics.RecordResultReported("rejected")
		}
		return Resolution{}, err
	}

	res := Resolution{Outcome: out, Tournament: t}
	switch {
	case !out.Changed:
		metrics.RecordResultReported("unchanged")
		return res, nil
	case out.Corrected():
		metrics.RecordResultReported("corrected")
	default:
		metrics.RecordResultReported("recorded")
	}

	res.Announcement = announce(out.Ref)
	s.logger.Info(ctx, "result recorded",
		logger.Uint64("guild", guildID),
		logger.String("name", name),
		logger.String("match", out.Ref.Label),
		logger.String("winner", out.Ref.Result),
		logger.String("previous", out.Previous),
		logger.Bool("complete", out.Complete),
	)
	s.publish(ctx, guildID, t, live.TypeBracket)

	if out.Complete {
		res.Completion = CompletionMessage
		metrics.RecordTournamentCompleted()
		s.publish(ctx, guildID, t, live.TypeCompleted)
		s.enqueueExport(ctx, guildID, name, queue.ReasonCompleted)
	}
	return res, nil
}

// Cancel abandons a pending report. Nothing is written.
func (s *Service) Cancel(ctx context.Context, guildID uint64, name, label string) (bracket.MatchRef, error) {
	t, err := s.Get(ctx, guildID, name)
	if err != nil {
		return bracket.MatchRef{}, err
	}
	return t.Cancel(label)
}

// ExportXLSX renders the tournament as a spreadsheet.
func (s *Service) ExportXLSX(ctx context.Context, guildID uint64, name string) ([]byte, error) {
	t, err := s.Get(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := export.Bytes(t)
	if err != nil {
		metrics.RecordExport("failed")
		return nil, err
	}
	metrics.RecordExport("ok")
	metrics.RecordExportLatency(float64(time.Since(start).Microseconds()) / 1000)
	return data, nil
}

// RequestExport queues a background export of the tournament.
func (s *Service) RequestExport(ctx context.Context, guildID uint64, name string) error {
	if _, err := s.Get(ctx, guildID, name); err != nil {
		return err
	}
	return s.enqueue(ctx, queue.NewJob(guildID, name, queue.ReasonRequested))
}

// Standings aggregates every tournament of the category into a season. A
// non-zero categoryID also drops tournaments posted under another category.
func (s *Service) Standings(ctx context.Context, guildID uint64, category string, categoryID uint64) (standings.Season, error) {
	if err := s.ready(); err != nil {
		return standings.Season{}, err
	}
	prefix, err := names.SeasonPrefix(category)
	if err != nil {
		return standings.Season{}, err
	}
	start := time.Now()
	ts, err := s.store.List(ctx, guildID, prefix)
	if err != nil {
		return standings.Season{}, fmt.Errorf("load season %s: %w", strings.TrimSuffix(prefix, "_"), err)
	}
	season := standings.Aggregate(standings.Members(ts, prefix, categoryID))
	metrics.RecordStandingsLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "standings aggregated",
		logger.Uint64("guild", guildID),
		logger.String("category", category),
		logger.Int("weeks", len(season.Weeks)),
		logger.Int("players", len(season.Records)),
	)
	return season, nil
}

// Live returns the room and current snapshot for a websocket subscriber.
func (s *Service) Live(ctx context.Context, guildID uint64, name string) (string, *live.Message, error) {
	t, err := s.Get(ctx, guildID, name)
	if err != nil {
		return "", nil, err
	}
	msg := snapshot(guildID, t, live.TypeBracket)
	return msg.Room, &msg, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":              s.started,
		"exportWorkers":        s.exportWorkers,
		"exportQueueSize":      s.exportQueueSize,
		"conflictRetries":      s.conflictRetries,
		"allowResultOverwrite": s.allowOverwrite,
		"uploadEnabled":        s.uploader != nil,
		"lockedTournaments":    s.locks.Len(),
	}

	if s.started {
		queueLen := s.exportQueue.Len(ctx)
		stored := s.store.Count(ctx)

		stats["exportQueueLength"] = queueLen
		stats["activeExports"] = s.pool.Active()
		stats["pendingExports"] = s.pending.Size()
		stats["tournaments"] = stored

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTournamentsStored(stored)
		s.pool.UpdateMetrics()
	}

	return stats
}

// lock serializes every writer of one tournament.
func (s *Service) lock(ctx context.Context, guildID uint64, name string) (func(), error) {
	return s.locks.Lock(ctx, lockKey(guildID, name))
}

// mutate runs load, fn and a conditional write under the tournament lock.
// fn reports whether anything changed; unchanged tournaments are not written.
// A write that lost a race with another process is retried from a fresh load.
func (s *Service) mutate(ctx context.Context, guildID uint64, name string, fn func(*bracket.Tournament) (bool, error)) (*bracket.Tournament, error) {
	unlock, err := s.lock(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		t, err := s.store.Load(ctx, guildID, name)
		if err != nil {
			return nil, err
		}
		changed, err := fn(t)
		if err != nil {
			return nil, err
		}
		if !changed {
			return t, nil
		}
		err = s.store.Update(ctx, guildID, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt >= s.conflictRetries {
			return nil, err
		}
		s.logger.Warn(ctx, "tournament changed underneath; retrying",
			logger.Uint64("guild", guildID),
			logger.String("name", name),
			logger.Int("attempt", attempt+1),
		)
	}
}

func (s *Service) enqueueExport(ctx context.Context, guildID uint64, name, reason string) {
	if err := s.enqueue(ctx, queue.NewJob(guildID, name, reason)); err != nil {
		// The file is rebuilt from the stored tournament on the next export.
		metrics.RecordExport("dropped")
		s.logger.Warn(ctx, "export not queued",
			logger.Uint64("guild", guildID),
			logger.String("name", name),
			logger.Error(err),
		)
	}
}

func (s *Service) enqueue(ctx context.Context, j queue.Job) error {
	if err := s.ready(); err != nil {
		return err
	}
	// A tournament already waiting for export is written from its latest
	// state when the worker picks it up.
	key := lockKey(j.GuildID, j.Name)
	if s.pending.SeenAndRecord(ctx, key) {
		metrics.RecordExport("coalesced")
		return nil
	}
	if err := s.exportQueue.Enqueue(ctx, j); err != nil {
		s.pending.Unrecord(ctx, key)
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, guildID uint64, t *bracket.Tournament, kind string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, snapshot(guildID, t, kind))
}

func snapshot(guildID uint64, t *bracket.Tournament, kind string) live.Message {
	return live.Message{Type: kind, Room: live.Room(guildID, t.Name), Payload: t.Clone()}
}

// announce renders the chat line for a recorded win.
func announce(ref bracket.MatchRef) string {
	a, b, ok := names.SplitLabel(ref.Label)
	if !ok {
		return ""
	}
	loser := a
	if names.Equal(ref.Result, a) {
		loser = b
	}
	return "**" + ref.Result + "** has defeated " + loser + "!"
}
