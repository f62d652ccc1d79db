package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ambimix/mixer"
)

// DefaultProgressInterval is how often the primary position is reported.
const DefaultProgressInterval = 500 * time.Millisecond

// Progress polls a position source on a ticker and hands every reading to
// report. It only runs between Start and Stop.
type Progress struct {
	interval time.Duration
	position func() (pos, dur time.Duration)
	report   func(pos, dur time.Duration)

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewProgress creates a stopped poller.
func NewProgress(interval time.Duration, position func() (time.Duration, time.Duration), report func(time.Duration, time.Duration)) *Progress {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Progress{
		interval: interval,
		position: position,
		report:   report,
	}
}

// Start begins polling. Starting a running poller does nothing.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopChan != nil {
		return
	}
	p.stopChan = make(chan struct{})
	p.wg.Add(1)
	go p.run(p.stopChan)
}

// Stop ends polling and waits for the poll goroutine to exit.
func (p *Progress) Stop() {
	p.mu.Lock()
	stop := p.stopChan
	p.stopChan = nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	p.wg.Wait()
}

// Running reports whether the poller is active.
func (p *Progress) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopChan != nil
}

func (p *Progress) run(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.report(p.position())
		case <-stop:
			return
		}
	}
}

// FormatTime renders d as m:ss, or h:mm:ss from one hour on.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PrimaryID is the engine slot used by the primary player.
const PrimaryID = "primary"

// DefaultPrimaryVolume is the volume percent of a newly loaded primary track.
const DefaultPrimaryVolume = 80

// Primary is the main track played underneath the ambient layers. Its
// position is polled only while it is playing.
type Primary struct {
	engine   *Engine
	progress *Progress
	logger   *slog.Logger

	mu     sync.Mutex
	player *Player
	path   string
	state  mixer.StateCode
	report func(pos, dur time.Duration)
}

// NewPrimary creates an empty primary player on engine. report receives the
// position and duration every interval while playing.
func NewPrimary(engine *Engine, interval time.Duration, report func(pos, dur time.Duration)) *Primary {
	p := &Primary{
		engine: engine,
		logger: slog.With("component", "primary"),
		state:  mixer.StateUnstarted,
		report: report,
	}
	p.progress = NewProgress(interval, p.times, p.emitProgress)
	return p
}

func (p *Primary) times() (time.Duration, time.Duration) {
	return p.Position(), p.Duration()
}

func (p *Primary) emitProgress(pos, dur time.Duration) {
	if p.report != nil {
		p.report(pos, dur)
	}
}

// Load replaces the primary track with the media file at path.
func (p *Primary) Load(path string) error {
	p.progress.Stop()

	player, err := p.engine.LoadFile(PrimaryID, path, p.stateChanged)
	if err != nil {
		return err
	}
	if err := player.SetVolume(DefaultPrimaryVolume); err != nil {
		return err
	}

	p.mu.Lock()
	p.player = player
	p.path = path
	p.mu.Unlock()

	p.logger.Info("Primary track loaded",
		slog.String("path", path),
		slog.String("duration", FormatTime(player.Duration())))
	return nil
}

func (p *Primary) current() (*Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil, fmt.Errorf("primary: %w", ErrNoMedia)
	}
	return p.player, nil
}

// Play starts the primary track.
func (p *Primary) Play() error {
	player, err := p.current()
	if err != nil {
		return err
	}
	return player.Play()
}

// Pause pauses the primary track.
func (p *Primary) Pause() error {
	player, err := p.current()
	if err != nil {
		return err
	}
	return player.Pause()
}

// Seek moves the primary track to d.
func (p *Primary) Seek(d time.Duration) error {
	player, err := p.current()
	if err != nil {
		return err
	}
	return player.Seek(d)
}

// Position returns the current position, zero without a track.
func (p *Primary) Position() time.Duration {
	player, err := p.current()
	if err != nil {
		return 0
	}
	return player.Position()
}

// Duration returns the loaded track length, zero without a track.
func (p *Primary) Duration() time.Duration {
	player, err := p.current()
	if err != nil {
		return 0
	}
	return player.Duration()
}

// State returns the last engine state of the primary track.
func (p *Primary) State() mixer.StateCode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Path returns the loaded file.
func (p *Primary) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// Polling reports whether progress is being polled.
func (p *Primary) Polling() bool {
	return p.progress.Running()
}

func (p *Primary) stateChanged(code mixer.StateCode) {
	p.mu.Lock()
	p.state = code
	p.mu.Unlock()

	switch code {
	case mixer.StatePlaying:
		p.progress.Start()
	case mixer.StatePaused, mixer.StateEnded:
		p.progress.Stop()
	}
}

// Close stops polling and removes the primary track from the mix.
func (p *Primary) Close() {
	p.progress.Stop()
	p.engine.Unload(PrimaryID)

	p.mu.Lock()
	p.player = nil
	p.mu.Unlock()
}
