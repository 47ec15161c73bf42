package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Backup periodically snapshots the local database files into a backup
// directory and prunes snapshots past retention. Copying the files directly
// is safe here: writes are tiny key-value upserts and sqlite keeps the file
// consistent between transactions.
type Backup struct {
	sources   []string
	dir       string
	interval  time.Duration
	retention time.Duration
	logger    *zerolog.Logger
}

// NewBackup snapshots the given database files every interval, keeping
// retentionDays worth of copies.
func NewBackup(sources []string, dir string, interval time.Duration, retentionDays int, logger *zerolog.Logger) *Backup {
	return &Backup{
		sources:   sources,
		dir:       dir,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
	}
}

// Run takes a snapshot immediately, then on every tick until ctx ends.
func (b *Backup) Run(ctx context.Context) {
	if err := b.Snapshot(); err != nil {
		b.logger.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Snapshot(); err != nil {
				b.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			b.prune()
		}
	}
}

// Snapshot copies every source file into the backup directory, stamped with
// the current time. Missing sources are skipped; the sqlite fallback may not
// have been created yet.
func (b *Backup) Snapshot() error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	for _, src := range b.sources {
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(b.dir, fmt.Sprintf("%s.%s.bak", filepath.Base(src), stamp))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("backup %s: %w", src, err)
		}
		b.logger.Debug().Str("source", src).Str("backup", dst).Msg("database snapshot written")
	}
	return nil
}

func (b *Backup) prune() {
	if b.retention <= 0 {
		return
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.logger.Warn().Err(err).Msg("reading backup dir for pruning failed")
		return
	}

	cutoff := time.Now().Add(-b.retention)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".bak" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			b.logger.Info().Str("file", entry.Name()).Msg("pruning expired backup")
			os.Remove(filepath.Join(b.dir, entry.Name()))
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
