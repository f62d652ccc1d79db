package playback

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"ambimix/mixer"
)

var _ mixer.Handle = (*Player)(nil)

// Player is one slot of the engine mixer. It never drains: while paused or
// after reaching the end of its buffer it streams silence, so the mixer
// keeps it until Close.
type Player struct {
	id     string
	buffer *beep.Buffer
	rate   beep.SampleRate

	seeker  beep.StreamSeeker
	volume  *effects.Volume
	playing bool
	percent int
	closed  bool

	emit    func(p *Player, code mixer.StateCode)
	onState StateFunc
}

func newPlayer(id string, buffer *beep.Buffer, rate beep.SampleRate, emit func(*Player, mixer.StateCode)) *Player {
	p := &Player{
		id:      id,
		buffer:  buffer,
		rate:    rate,
		volume:  &effects.Volume{Base: 2},
		percent: 100,
		emit:    emit,
	}
	p.rewind()
	return p
}

// rewind rebuilds the stream chain at the start of the buffer.
func (p *Player) rewind() {
	p.seeker = p.buffer.Streamer(0, p.buffer.Len())
	var s beep.Streamer = p.seeker
	if from := p.buffer.Format().SampleRate; from != p.rate {
		s = beep.Resample(4, from, p.rate, s)
	}
	p.volume.Streamer = s
}

// ID returns the id the player was loaded for.
func (p *Player) ID() string {
	return p.id
}

// Stream implements beep.Streamer.
func (p *Player) Stream(samples [][2]float64) (int, bool) {
	if p.closed {
		return 0, false
	}
	if !p.playing || p.seeker == nil {
		clear(samples)
		return len(samples), true
	}

	n, ok := p.volume.Stream(samples)
	if !ok || n < len(samples) {
		clear(samples[n:])
		p.seeker = nil
		p.playing = false
		p.emit(p, mixer.StateEnded)
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (p *Player) Err() error {
	return nil
}

// Play starts or resumes playback. A player that reached the end starts
// again from the beginning.
func (p *Player) Play() error {
	speaker.Lock()
	if p.closed {
		speaker.Unlock()
		return fmt.Errorf("play %s: %w", p.id, ErrAlreadyClosed)
	}
	if p.seeker == nil {
		p.rewind()
	}
	p.playing = true
	speaker.Unlock()

	p.emit(p, mixer.StatePlaying)
	return nil
}

// Pause holds the current position.
func (p *Player) Pause() error {
	speaker.Lock()
	if p.closed {
		speaker.Unlock()
		return fmt.Errorf("pause %s: %w", p.id, ErrAlreadyClosed)
	}
	p.playing = false
	speaker.Unlock()

	p.emit(p, mixer.StatePaused)
	return nil
}

// SetVolume sets the gain from a 0-100 percent value.
func (p *Player) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrBadVolume, percent)
	}

	speaker.Lock()
	defer speaker.Unlock()

	p.percent = percent
	p.volume.Silent = percent == 0
	if percent > 0 {
		p.volume.Volume = math.Log2(float64(percent) / 100)
	}
	return nil
}

// VolumePercent returns the last volume set.
func (p *Player) VolumePercent() int {
	speaker.Lock()
	defer speaker.Unlock()
	return p.percent
}

// Playing reports whether the player is producing sound.
func (p *Player) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return p.playing
}

// Position returns the playback position. It is zero after the end.
func (p *Player) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if p.seeker == nil {
		return 0
	}
	return p.buffer.Format().SampleRate.D(p.seeker.Position())
}

// Duration returns the length of the loaded media.
func (p *Player) Duration() time.Duration {
	return p.buffer.Format().SampleRate.D(p.buffer.Len())
}

// Seek moves the playback position, clamped to the media length.
func (p *Player) Seek(d time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()

	if p.closed {
		return fmt.Errorf("seek %s: %w", p.id, ErrAlreadyClosed)
	}
	n := p.buffer.Format().SampleRate.N(d)
	n = max(0, min(n, p.buffer.Len()))
	if p.seeker == nil {
		p.rewind()
	}
	if err := p.seeker.Seek(n); err != nil {
		return fmt.Errorf("seek %s: %w", p.id, err)
	}
	return nil
}

// Close removes the player from the mix on the next audio callback.
func (p *Player) Close() {
	speaker.Lock()
	p.closed = true
	speaker.Unlock()
}
