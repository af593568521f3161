package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backup writes a consistent copy of the live database to dest.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup %s already exists", dest)
	}
	// Unlike a file copy, VACUUM INTO includes pages still in the WAL.
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

// BackupService runs periodic backups and prunes old ones.
type BackupService struct {
	db            *DB
	dir           string
	interval      time.Duration
	retentionDays int
	logger        *zerolog.Logger
}

func NewBackupService(db *DB, dir string, interval time.Duration, retentionDays int, logger *zerolog.Logger) *BackupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BackupService{db: db, dir: dir, interval: interval, retentionDays: retentionDays, logger: logger}
}

// Start blocks, backing up immediately and then on every interval until ctx ends.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Str("dir", s.dir).Msg("Backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			if removed, err := s.CleanupOldBackups(time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("Backup cleanup failed")
			} else if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("Old backups removed")
			}
		}
	}
}

// PerformBackup writes a timestamped backup and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	name := fmt.Sprintf("giftwrap_%s.db", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	s.logger.Info().Str("path", path).Msg("Performing database backup")
	if err := s.db.Backup(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// CleanupOldBackups removes backups older than the retention period.
func (s *BackupService) CleanupOldBackups(now time.Time) (int, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read backup dir: %w", err)
	}

	cutoff := now.AddDate(0, 0, -s.retentionDays)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "giftwrap_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, file.Name())); err != nil {
				s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old backup")
				continue
			}
			removed++
		}
	}
	return removed, nil
}
