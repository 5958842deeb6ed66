package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/pagelog/internal/archiver"
	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/blockio/filestore"
	"github.com/rzbill/pagelog/internal/blockio/kvstore"
	cfgpkg "github.com/rzbill/pagelog/internal/config"
	"github.com/rzbill/pagelog/internal/digest"
	"github.com/rzbill/pagelog/internal/logcache"
	"github.com/rzbill/pagelog/internal/pagelog"
	"github.com/rzbill/pagelog/internal/replication"
	pebblestore "github.com/rzbill/pagelog/internal/storage/pebble"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// ReadOnly opens a follower without taking the writer lock.
	ReadOnly bool
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
}

// Runtime wires a block medium, a page cache, a log and its listeners for a
// single-node instance.
type Runtime struct {
	config cfgpkg.Config
	logger logpkg.Logger

	db       *pebblestore.DB // nil for a read-only file backend with no digests
	medium   blockio.Medium
	reader   blockio.Reader
	cache    *logcache.SeparateCache
	log      *pagelog.Log
	digests  *digest.Tracker
	archiver *archiver.Archiver
}

// Open initializes storage and returns a Runtime.
func Open(opts Options) (_ *Runtime, err error) {
	cfg := opts.Config
	layout := cfg.Layout()
	cfg.DataDir = layout.Root
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger, err = logpkg.ApplyConfig(logConfig(cfg.Log))
		if err != nil {
			return nil, err
		}
	}
	rt := &Runtime{config: cfg, logger: logger.WithComponent("runtime")}
	var writer blockio.Writer
	defer func() {
		if err != nil {
			if rt.log == nil && writer != nil {
				_ = writer.Release()
			}
			_ = rt.Close()
		}
	}()

	fsync := pebblestore.ParseFsyncMode(cfg.Fsync)
	switch cfg.Backend {
	case cfgpkg.BackendPebble:
		rt.db, err = pebblestore.Open(pebblestore.Options{DataDir: layout.DB, Fsync: fsync})
		if err != nil {
			return nil, err
		}
		rt.medium = kvstore.New(rt.db)
	default:
		fs, ferr := filestore.Open(filestore.Options{Dir: layout.Blocks, UseMmap: cfg.Mmap})
		if ferr != nil {
			return nil, ferr
		}
		rt.medium = fs
	}
	rt.reader = rt.medium.Reader()
	if !opts.ReadOnly {
		if writer, err = rt.medium.Writer(); err != nil {
			return nil, err
		}
		if rt.db == nil && cfg.Digests {
			rt.db, err = pebblestore.Open(pebblestore.Options{DataDir: layout.DB, Fsync: fsync})
			if err != nil {
				return nil, err
			}
		}
	}

	rt.cache, err = logcache.New(cacheOptions(cfg))
	if err != nil {
		return nil, err
	}

	listeners := []pagelog.BlockListener{pagelog.NewLoggingListener(logger)}
	if cfg.Digests && rt.db != nil {
		rt.digests = digest.NewTracker(rt.db, logger)
		listeners = append(listeners, rt.digests)
	}
	if layout.Archive != "" && !opts.ReadOnly {
		if rt.archiver, err = archiver.New(layout.Archive, logger); err != nil {
			return nil, err
		}
		listeners = append(listeners, rt.archiver)
	}

	rt.log, err = pagelog.Open(pagelog.Options{
		PageSize:  cfg.PageSize,
		FileSize:  cfg.FileSize,
		Reader:    rt.reader,
		Writer:    writer,
		Cache:     rt.cache,
		Logger:    logger,
		Listeners: listeners,
	})
	if err != nil {
		return nil, err
	}
	rt.logger.Info("runtime opened",
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("backend", cfg.Backend),
		logpkg.Bool("read_only", opts.ReadOnly),
		logpkg.Int("cache_pages", cacheOptions(cfg).Capacity()))
	return rt, nil
}

func logConfig(c cfgpkg.LogConfig) *logpkg.Config {
	out := &logpkg.Config{Level: c.Level, Format: c.Format}
	if c.Output != "" {
		out.Outputs = []string{c.Output}
	}
	return out
}

func cacheOptions(cfg cfgpkg.Config) logcache.Options {
	budget := logcache.Bytes(cfg.Cache.BudgetBytes)
	if cfg.Cache.BudgetBytes == 0 && cfg.Cache.BudgetPercent > 0 {
		budget = logcache.Percent(uint8(cfg.Cache.BudgetPercent))
	}
	return logcache.Options{
		PageSize:        cfg.PageSize,
		Budget:          budget,
		NonBlocking:     cfg.Cache.NonBlocking,
		Soft:            cfg.Cache.Soft,
		GenerationCount: cfg.Cache.Generations,
	}
}

// Close closes the log, then the medium and database.
func (r *Runtime) Close() error {
	var errs []error
	if r.log != nil {
		errs = append(errs, r.log.Close())
		r.log = nil
	}
	if r.medium != nil {
		errs = append(errs, r.medium.Close())
		r.medium = nil
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

// CheckHealth lists the medium and, when present, pings the database.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.log == nil {
		return errors.New("runtime closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.reader.ListBlocks(); err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}
	if r.db != nil {
		it, err := r.db.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	}
	return nil
}

// Log returns the opened log.
func (r *Runtime) Log() *pagelog.Log { return r.log }

// Reader returns the block medium reader.
func (r *Runtime) Reader() blockio.Reader { return r.reader }

// Cache returns the page cache.
func (r *Runtime) Cache() *logcache.SeparateCache { return r.cache }

// Digests returns the digest tracker, or nil when digests are disabled.
func (r *Runtime) Digests() *digest.Tracker { return r.digests }

// Archiver returns the archiver, or nil when archiving is disabled.
func (r *Runtime) Archiver() *archiver.Archiver { return r.archiver }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime's logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Prune deletes the oldest sealed blocks until the log holds at most
// maxBytes. A zero maxBytes uses Config.Retention.MaxBytes; if that is zero
// too nothing is deleted.
func (r *Runtime) Prune(ctx context.Context, maxBytes uint64) (int, error) {
	if maxBytes == 0 {
		maxBytes = r.config.Retention.MaxBytes
	}
	if maxBytes == 0 {
		return 0, nil
	}
	throttle := time.Duration(r.config.Retention.ThrottleMs) * time.Millisecond
	return r.log.TrimToMaxBytes(ctx, maxBytes, throttle)
}

// Verify re-hashes every block with a recorded digest.
func (r *Runtime) Verify(ctx context.Context) (digest.Report, error) {
	if r.digests == nil {
		return digest.Report{}, errors.New("digests are disabled")
	}
	return r.digests.Verify(ctx, r.reader)
}

// Follower returns a catch-up driver for a read-only runtime.
func (r *Runtime) Follower(onUpdate func(*pagelog.Tip)) *replication.Follower {
	return &replication.Follower{
		Log:      r.log,
		Interval: time.Duration(r.config.FollowIntervalMs) * time.Millisecond,
		Logger:   r.logger,
		OnUpdate: onUpdate,
	}
}
