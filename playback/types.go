package playback

import (
	"errors"
	"sync"

	"github.com/gopxl/beep/v2"

	"ambimix/mixer"
)

var (
	ErrAlreadyClosed = errors.New("already closed")
	ErrNoMedia       = errors.New("no media for source")
	ErrBadVolume     = errors.New("volume percent out of range")
)

// DefaultSampleRate is the output rate of the speaker.
var DefaultSampleRate = beep.SampleRate(48000)

// StateFunc receives engine state changes for one player.
type StateFunc func(code mixer.StateCode)

// Engine mixes every loaded player into a single speaker output
type Engine struct {
	mixer      *beep.Mixer
	sampleRate beep.SampleRate
	library    *Library
	output     bool

	mu      sync.RWMutex
	players map[string]*Player
	closed  bool

	events chan stateEvent
	quit   chan struct{}
	wg     sync.WaitGroup
}

type stateEvent struct {
	player *Player
	code   mixer.StateCode
}
