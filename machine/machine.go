package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"ambimix/assets"
	"ambimix/config"
	"ambimix/mixer"
	"ambimix/playback"
	"ambimix/store"
	"ambimix/youtube"
)

// Machine represents the main application state
type Machine struct {
	config     *config.Config
	store      *store.DB
	controller *mixer.Controller
	engine     *playback.Engine
	primary    *playback.Primary
	loader     *HandleLoader
	monitor    *CatalogMonitor
	notifier   *Notifier
	discord    *DiscordManager
	webhook    *WebhookManager
	metadata   *youtube.Client
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	errorChan  chan error

	// OnProgress receives the primary track position while it plays.
	OnProgress func(pos, dur time.Duration)
}

// New creates a new Machine instance
func New(cfg *config.Config) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Machine{
		config:    cfg,
		metadata:  youtube.NewClient(youtube.DefaultOEmbedURL),
		logger:    slog.With("component", "machine"),
		ctx:       ctx,
		cancel:    cancel,
		errorChan: make(chan error, 10),
	}
}

// Initialize opens the catalog, seeds it and sets up playback and Discord
func (m *Machine) Initialize() error {
	m.logger.Info("Initializing machine...")

	db, err := store.Open(m.config.Catalog.Database, m.config.Catalog.Owner)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	m.store = db

	if err := m.seed(); err != nil {
		return err
	}

	m.controller = mixer.New(db, youtube.ResolveID,
		mixer.WithLogger(slog.With("component", "mixer")),
		mixer.WithResumeOnBind(m.config.Mixer.ResumeOnBind),
		mixer.WithDefaultVolume(m.config.Mixer.DefaultVolume),
	)

	if err := m.initPlayback(); err != nil {
		return err
	}

	m.monitor = NewCatalogMonitor(m.config.Catalog.ResyncInterval, m.controller, &m.wg)

	var senders []Sender
	if m.webhook = NewWebhookManager(m.config); m.webhook != nil {
		senders = append(senders, m.webhook)
	}
	if m.config.Discord.Token != "" {
		m.discord = NewDiscordManager(m.config, m.controller)
		if err := m.discord.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize Discord: %w", err)
		}
		if m.config.Discord.ChannelID != "" {
			senders = append(senders, m.discord)
		}
	}
	m.notifier = NewNotifier(senders...)

	m.logger.Info("Machine initialized successfully",
		slog.String("database", db.Path()),
		slog.String("owner", db.Owner()))
	return nil
}

// seed inserts the built-in tracks that are not in the catalog yet.
func (m *Machine) seed() error {
	seeds, err := assets.LoadSeeds(m.config.Catalog.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seeds: %w", err)
	}

	added, err := m.store.Seed(m.ctx, store.ResolveSeeds(seeds, youtube.ResolveID))
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	if added > 0 {
		m.logger.Info("Seeded catalog", slog.Int("tracks", added))
	}
	return nil
}

// initPlayback starts the audio engine, falling back to a silent engine
// when no output device can be opened.
func (m *Machine) initPlayback() error {
	library := playback.NewLibrary(m.config.Media.Dir)
	rate := beep.SampleRate(m.config.Media.SampleRate)

	var opts []playback.EngineOption
	if !m.config.Media.Output {
		opts = append(opts, playback.WithoutOutput())
	}

	engine, err := playback.NewEngine(rate, library, opts...)
	if err != nil && m.config.Media.Output {
		m.logger.Warn("Audio output unavailable, running without speaker", slog.Any("error", err))
		engine, err = playback.NewEngine(rate, library, playback.WithoutOutput())
	}
	if err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	m.engine = engine
	m.logger.Info("Playback ready",
		slog.String("media", library.Dir()),
		slog.Int("sample_rate", int(rate)),
		slog.Bool("output", m.config.Media.Output))

	m.loader = NewHandleLoader(engine, m.controller)
	m.primary = playback.NewPrimary(engine, m.config.Primary.ProgressInterval, m.reportProgress)
	return nil
}

func (m *Machine) reportProgress(pos, dur time.Duration) {
	if m.OnProgress != nil {
		m.OnProgress(pos, dur)
		return
	}
	m.logger.Debug("Primary progress",
		slog.String("position", playback.FormatTime(pos)),
		slog.String("duration", playback.FormatTime(dur)))
}

// Start begins all machine operations
func (m *Machine) Start() error {
	m.logger.Info("Starting machine operations...")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.controller.Run(m.ctx); err != nil {
			m.reportError(err)
		}
	}()

	tracks, err := m.controller.Sync(m.ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	m.logger.Info("Catalog loaded", slog.Int("tracks", len(tracks)))

	m.watch()
	m.monitor.Start(m.ctx)

	if m.config.Primary.File != "" {
		if err := m.primary.Load(m.config.Primary.File); err != nil {
			m.logger.Warn("Failed to load primary track",
				slog.String("file", m.config.Primary.File),
				slog.Any("error", err))
		}
	}

	// Start Discord gateway
	if m.discord != nil {
		if err := m.discord.Start(m.ctx); err != nil {
			return fmt.Errorf("failed to connect to Discord gateway: %w", err)
		}
	}

	m.logger.Info("Machine started successfully")
	return nil
}

// watch follows mixer snapshots to keep players loaded and to send
// notifications. The first snapshot is the baseline and is not reported.
func (m *Machine) watch() {
	snaps, cancelLoader := m.controller.Subscribe()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancelLoader()
		for {
			select {
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				m.loader.Reconcile(snap)
			case <-m.ctx.Done():
				return
			}
		}
	}()

	if !m.notifier.Enabled() {
		return
	}

	notes, cancelNotes := m.controller.Subscribe()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancelNotes()

		var prev mixer.Snapshot
		select {
		case prev = <-notes:
		case <-m.ctx.Done():
			return
		}
		for {
			select {
			case snap, ok := <-notes:
				if !ok {
					return
				}
				m.notifier.Handle(prev, snap)
				prev = snap
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the machine
func (m *Machine) Stop() error {
	m.logger.Info("Stopping machine...")

	// Cancel context to stop all operations
	m.cancel()

	if m.monitor != nil {
		m.monitor.Stop()
	}

	// Close Discord connection
	if m.discord != nil {
		m.discord.Stop()
	}

	// Wait for all goroutines to finish
	m.wg.Wait()

	var errs []error
	if m.primary != nil {
		m.primary.Close()
	}
	if m.engine != nil {
		errs = append(errs, m.engine.Close())
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}

	m.logger.Info("Machine stopped")
	return errors.Join(errs...)
}

func (m *Machine) reportError(err error) {
	select {
	case m.errorChan <- err:
	default:
	}
}

// Error returns the error channel for monitoring errors
func (m *Machine) Error() <-chan error {
	return m.errorChan
}

// Controller returns the mixer controller.
func (m *Machine) Controller() *mixer.Controller {
	return m.controller
}

// Primary returns the primary track player.
func (m *Machine) Primary() *playback.Primary {
	return m.primary
}

// Metadata returns the video metadata client.
func (m *Machine) Metadata() *youtube.Client {
	return m.metadata
}

// Store returns the catalog store.
func (m *Machine) Store() *store.DB {
	return m.store
}

// Context is cancelled when the machine stops.
func (m *Machine) Context() context.Context {
	return m.ctx
}
