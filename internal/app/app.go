package app

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/ibeckermayer/visitbatch/internal/batch"
	"github.com/ibeckermayer/visitbatch/internal/browser"
	"github.com/ibeckermayer/visitbatch/internal/config"
	"github.com/ibeckermayer/visitbatch/internal/profile"
	"github.com/ibeckermayer/visitbatch/internal/store"
	"github.com/ibeckermayer/visitbatch/internal/visitor"
)

// App holds the application state.
type App struct {
	mu    sync.RWMutex
	ips   *profile.IPRotator // immutable after creation, shared by every batch
	store *store.Store       // may be nil

	// Batches run on baseCtx so shutdown can stop them.
	baseCtx context.Context
	wg      sync.WaitGroup

	// Mutable fields - use getSnapshot() for concurrent access.
	config *config.Config
	runner *batch.Runner
}

// snapshot holds fields that may be replaced by ReloadConfig.
type snapshot struct {
	config *config.Config
	runner *batch.Runner
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config: a.config,
		runner: a.runner,
	}
}

// New creates a new App that launches Chrome for every visit.
func New(ctx context.Context, cfg *config.Config, st *store.Store) *App {
	a := &App{
		ips:     profile.NewIPRotator(),
		store:   st,
		baseCtx: ctx,
		config:  cfg,
	}
	a.runner = a.newRunner(cfg, chromeLauncher(cfg))
	log.Printf("Rotating X-Forwarded-For over %d addresses", a.ips.Len())
	return a
}

// NewWithLauncher creates an App using the given launcher instead of Chrome.
func NewWithLauncher(ctx context.Context, cfg *config.Config, st *store.Store, l visitor.Launcher) *App {
	a := &App{
		ips:     profile.NewIPRotator(),
		store:   st,
		baseCtx: ctx,
		config:  cfg,
	}
	a.runner = a.newRunner(cfg, l)
	return a
}

func chromeLauncher(cfg *config.Config) visitor.Launcher {
	return visitor.ChromeLauncher(browser.NewLauncher(browser.Config{
		Headless: cfg.Browser.Headless,
		ExecPath: cfg.Browser.ChromePath,
	}))
}

func (a *App) newRunner(cfg *config.Config, l visitor.Launcher) *batch.Runner {
	v := visitor.New(l, a.ips)
	var rec batch.Recorder
	if a.store != nil {
		rec = a.store
	}
	return batch.NewRunner(v, rec, cfg.Batch.Size, cfg.Pause())
}

// TriggerBatch starts a batch in the background and returns its ID and the
// number of visits it will make, without waiting for it. Batches started by
// separate calls run independently.
func (a *App) TriggerBatch() (string, int, error) {
	s := a.getSnapshot()
	if err := s.config.Validate(); err != nil {
		return "", 0, err
	}

	p := visitor.Params{
		URL:      s.config.Target.URL,
		Dwell:    s.config.Dwell(),
		Referral: s.config.Target.Referral,
		Device:   s.config.Target.Device,
	}
	if _, _, err := visitor.Resolve(p); err != nil {
		return "", 0, err
	}

	id := batch.NewID()
	log.Printf("Batch %s triggered: %d visits to %s", id, s.runner.Size(), p.URL)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := s.runner.Run(a.baseCtx, id, p); err != nil {
			log.Printf("Batch %s stopped: %v", id, err)
			return
		}
		log.Printf("Batch %s completed", id)
	}()

	return id, s.runner.Size(), nil
}

// Wait blocks until every running batch has returned.
func (a *App) Wait() {
	a.wg.Wait()
}

// RecentBatches returns batch history, newest first.
func (a *App) RecentBatches(ctx context.Context, limit int) ([]store.Batch, error) {
	if a.store == nil {
		return nil, store.ErrNoHistory
	}
	return a.store.RecentBatches(ctx, limit)
}

// ReloadConfig reloads the configuration from disk. Running batches keep the
// settings they started with.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}

	runner := a.newRunner(cfg, chromeLauncher(cfg))

	a.mu.Lock()
	a.config = cfg
	a.runner = runner
	a.mu.Unlock()

	log.Println("Configuration reloaded")
	return nil
}
