package localmedia

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// DefaultSweepMinAge covers a 5 minute extraction deadline plus slack.
const DefaultSweepMinAge = 10 * time.Minute

type SweepConfig struct {
	Root     string
	Interval time.Duration
	// MaxAge removes entries whose newest file is older than this. 0 disables.
	MaxAge time.Duration
	// QuotaBytes evicts oldest entries until the root fits. 0 disables.
	QuotaBytes int64
	// MinAge protects entries touched more recently than this from quota
	// eviction; it must outlast the longest extraction deadline.
	MinAge time.Duration
}

func SweepConfigFromEnv(root string) SweepConfig {
	return SweepConfig{
		Root:       root,
		Interval:   envutil.Duration("TEMP_SWEEP_INTERVAL", 10*time.Minute),
		MaxAge:     envutil.Duration("TEMP_MAX_AGE", time.Hour),
		QuotaBytes: envutil.Bytes("TEMP_QUOTA_BYTES", 0),
		MinAge:     envutil.Duration("TEMP_MIN_AGE", DefaultSweepMinAge),
	}
}

type SweepReport struct {
	Scanned      int
	RemovedAged  int
	RemovedQuota int
	BytesFreed   int64
	Failures     int
}

// Sweeper removes stale artifacts left in the work root, e.g. after a crash
// between artifact creation and cleanup.
type Sweeper struct {
	log      *logger.Logger
	cfg      SweepConfig
	now      func() time.Time
	onReport func(SweepReport)
}

func NewSweeper(log *logger.Logger, cfg SweepConfig) *Sweeper {
	return &Sweeper{log: log.With("service", "TempSweeper"), cfg: cfg, now: time.Now}
}

// OnReport registers fn to receive the report of every scheduled sweep.
func (s *Sweeper) OnReport(fn func(SweepReport)) *Sweeper {
	s.onReport = fn
	return s
}

type sweepEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	dirents, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return rep, nil
		}
		return rep, err
	}

	entries := make([]sweepEntry, 0, len(dirents))
	var total int64
	for _, de := range dirents {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		p := filepath.Join(s.cfg.Root, de.Name())
		size, mod := du(p)
		entries = append(entries, sweepEntry{path: p, size: size, modTime: mod})
		total += size
	}
	rep.Scanned = len(entries)

	now := s.now()
	kept := entries[:0]
	for _, e := range entries {
		if s.cfg.MaxAge > 0 && now.Sub(e.modTime) > s.cfg.MaxAge {
			if err := os.RemoveAll(e.path); err != nil {
				rep.Failures++
				s.log.Warn("sweep remove failed", "path", e.path, "error", err)
				kept = append(kept, e)
				continue
			}
			rep.RemovedAged++
			rep.BytesFreed += e.size
			total -= e.size
			continue
		}
		kept = append(kept, e)
	}

	if s.cfg.QuotaBytes > 0 && total > s.cfg.QuotaBytes {
		sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
		for _, e := range kept {
			if total <= s.cfg.QuotaBytes {
				break
			}
			if now.Sub(e.modTime) < s.cfg.MinAge {
				// may belong to an extraction still in flight
				continue
			}
			if err := os.RemoveAll(e.path); err != nil {
				rep.Failures++
				s.log.Warn("sweep quota remove failed", "path", e.path, "error", err)
				continue
			}
			rep.RemovedQuota++
			rep.BytesFreed += e.size
			total -= e.size
		}
	}

	if rep.RemovedAged+rep.RemovedQuota > 0 {
		s.log.Info("temp sweep", "root", s.cfg.Root, "removed_aged", rep.RemovedAged, "removed_quota", rep.RemovedQuota, "bytes_freed", rep.BytesFreed)
	}
	return rep, nil
}

// Run sweeps on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("temp sweep failed", "error", err)
				}
				continue
			}
			if s.onReport != nil {
				s.onReport(rep)
			}
		}
	}
}

// du returns total size and newest modification time under p.
func du(p string) (int64, time.Time) {
	var size int64
	var newest time.Time
	_ = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			size += info.Size()
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return size, newest
}
