package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/pkg/logger"
	"github.com/okian/duelkit/pkg/metrics"
)

// Default file store configuration constants.
const (
	defaultListConcurrency = 8
	documentExt            = ".json"
	dirPerm                = 0o755
	filePerm               = 0o644
	jsonIndent             = "    "
)

// FileStore implements Store on the local filesystem using the layout
// <root>/guilds/<guild>/json/tournaments/<name>.json.
type FileStore struct {
	root            string
	listConcurrency int
	writes          *KeyLocker
	logger          logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at root. The directory is created lazily.
func NewFileStore(root string, opts ...Option) *FileStore {
	s := &FileStore{
		root:            root,
		listConcurrency: defaultListConcurrency,
		writes:          NewKeyLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

// Root returns the data directory.
func (s *FileStore) Root() string { return s.root }

// Dir returns the directory holding the documents of guildID.
func (s *FileStore) Dir(guildID uint64) string {
	return filepath.Join(s.root, "guilds", strconv.FormatUint(guildID, 10), "json", "tournaments")
}

func (s *FileStore) path(guildID uint64, name string) (string, error) {
	if err := names.ValidateKey(name); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return filepath.Join(s.Dir(guildID), name+documentExt), nil
}

// Load returns the tournament stored under name.
func (s *FileStore) Load(ctx context.Context, guildID uint64, name string) (*bracket.Tournament, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	p, err := s.path(guildID, name)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, p, name)
}

func (s *FileStore) read(ctx context.Context, p, name string) (*bracket.Tournament, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		metrics.RecordErrorByComponent("repository", "malformed_document")
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}
	t, dateErr := fromDocument(name, doc)
	if dateErr != nil {
		s.logger.Warn(ctx, "tournament has an unreadable date; ordering it last",
			logger.String("tournament", name),
			logger.Error(dateErr),
		)
	}
	return t, nil
}

// Put writes t unconditionally.
func (s *FileStore) Put(ctx context.Context, guildID uint64, t *bracket.Tournament) error {
	return s.write(ctx, guildID, t, false)
}

// Update writes t if nobody else has written since it was loaded.
func (s *FileStore) Update(ctx context.Context, guildID uint64, t *bracket.Tournament) error {
	return s.write(ctx, guildID, t, true)
}

func (s *FileStore) write(ctx context.Context, guildID uint64, t *bracket.Tournament, conditional bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	p, err := s.path(guildID, t.Name)
	if err != nil {
		return err
	}
	unlock, err := s.writes.Lock(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	current, exists, err := s.revision(p)
	if err != nil {
		return err
	}
	if conditional {
		switch {
		case !exists && t.Revision != 0:
			return fmt.Errorf("%w: %s", ErrNotFound, t.Name)
		case current != t.Revision:
			metrics.RecordConflict()
			return fmt.Errorf("%w: %s at revision %d, have %d", ErrConflict, t.Name, current, t.Revision)
		}
	}

	prev := t.Revision
	t.Revision = current + 1
	if err := writeAtomic(p, toDocument(t)); err != nil {
		t.Revision = prev
		metrics.RecordErrorByComponent("repository", "write_failed")
		return fmt.Errorf("write %s: %w", t.Name, err)
	}
	return nil
}

// revision reads only the revision of the stored document.
func (s *FileStore) revision(p string) (int64, bool, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, true, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return head.Revision, true, nil
}

// writeAtomic replaces p with doc so readers never observe a partial file.
func writeAtomic(p string, doc document) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	data, err := marshal(doc, jsonIndent)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		cleanup()
		return err
	}
	return nil
}

// List loads every tournament of guildID whose name starts with prefix.
// Documents are read concurrently; unreadable documents are logged and skipped.
func (s *FileStore) List(ctx context.Context, guildID uint64, prefix string) ([]*bracket.Tournament, error) {
	dir := s.Dir(guildID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var keys []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, documentExt) {
			continue
		}
		key := strings.TrimSuffix(n, documentExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]*bracket.Tournament, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			t, err := s.read(gctx, filepath.Join(dir, key+documentExt), key)
			switch {
			case err == nil:
				out[i] = t
			case errors.Is(err, ErrMalformed):
				s.logger.Error(gctx, "skipping malformed tournament", logger.String("tournament", key), logger.Error(err))
			case errors.Is(err, ErrNotFound):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	loaded := out[:0]
	for _, t := range out {
		if t != nil {
			loaded = append(loaded, t)
		}
	}
	return loaded, nil
}

// Count returns the number of stored tournaments across all guilds.
func (s *FileStore) Count(_ context.Context) int {
	matches, err := filepath.Glob(filepath.Join(s.root, "guilds", "*", "json", "tournaments", "*"+documentExt))
	if err != nil {
		return 0
	}
	return len(matches)
}
