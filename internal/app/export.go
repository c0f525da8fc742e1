package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/okian/duelkit/internal/adapters/export"
	"github.com/okian/duelkit/internal/adapters/mq/queue"
	"github.com/okian/duelkit/pkg/logger"
	"github.com/okian/duelkit/pkg/metrics"
)

// handleExport writes the spreadsheet of one tournament and uploads it when an
// uploader is configured. It reads the store directly: Stop holds the service
// lock while the workers drain.
func (s *Service) handleExport(ctx context.Context, j queue.Job) error { //nolint:gocritic // Job is passed by value for channel semantics
	start := time.Now()
	s.pending.Unrecord(ctx, lockKey(j.GuildID, j.Name))
	t, err := s.store.Load(ctx, j.GuildID, j.Name)
	if err != nil {
		metrics.RecordExport("failed")
		return fmt.Errorf("export %s: %w", j.Name, err)
	}

	path, data, err := export.SaveFile(s.dataDir, j.GuildID, t)
	if err != nil {
		metrics.RecordExport("failed")
		return fmt.Errorf("export %s: %w", j.Name, err)
	}

	fields := []logger.Field{
		logger.String("job", j.ID),
		logger.Uint64("guild", j.GuildID),
		logger.String("name", j.Name),
		logger.String("reason", j.Reason),
		logger.String("path", path),
		logger.Int("rows", len(t.ExportRows())),
	}

	if s.uploader != nil {
		res, err := s.uploader.Upload(ctx, export.Key(j.GuildID, j.Name), export.ContentType, bytes.NewReader(data))
		if err != nil {
			metrics.RecordExport("failed")
			return fmt.Errorf("upload %s: %w", j.Name, err)
		}
		fields = append(fields, logger.String("url", res.Location))
	}

	metrics.RecordExport("ok")
	metrics.RecordExportLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Info(ctx, "tournament exported", fields...)
	return nil
}
