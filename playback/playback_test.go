package playback

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"ambimix/mixer"
)

var testFormat = beep.Format{SampleRate: 48000, NumChannels: 2, Precision: 2}

func constant(n int, v float64) beep.Streamer {
	left := n
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		k := min(len(samples), left)
		for i := range samples[:k] {
			samples[i] = [2]float64{v, v}
		}
		left -= k
		return k, true
	})
}

func testBuffer(n int, v float64) *beep.Buffer {
	buf := beep.NewBuffer(testFormat)
	buf.Append(constant(n, v))
	return buf
}

func writeWav(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name+".wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := wav.Encode(f, constant(n, 0.5), testFormat); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

type recorder struct {
	mu    sync.Mutex
	codes []mixer.StateCode
}

func (r *recorder) emit(_ *Player, code mixer.StateCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *recorder) Codes() []mixer.StateCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mixer.StateCode(nil), r.codes...)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func waitFor(t *testing.T, ch <-chan mixer.StateCode, want mixer.StateCode) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayerSilentUntilPlay(t *testing.T) {
	rec := &recorder{}
	p := newPlayer("rain", testBuffer(150, 0.5), testFormat.SampleRate, rec.emit)

	samples := make([][2]float64, 64)
	n, ok := p.Stream(samples)
	if n != len(samples) || !ok {
		t.Fatalf("Stream() = %d, %v; want %d, true", n, ok, len(samples))
	}
	for i, s := range samples {
		if s != [2]float64{} {
			t.Fatalf("sample %d = %v; want silence", i, s)
		}
	}
	if got := rec.Codes(); len(got) != 0 {
		t.Errorf("states = %v; want none", got)
	}
}

func TestPlayerEndsAndRestarts(t *testing.T) {
	rec := &recorder{}
	p := newPlayer("rain", testBuffer(150, 0.5), testFormat.SampleRate, rec.emit)

	if err := p.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	samples := make([][2]float64, 100)
	p.Stream(samples)
	if !near(samples[99][0], 0.5) {
		t.Fatalf("sample 99 = %v; want 0.5", samples[99][0])
	}

	n, ok := p.Stream(samples)
	if n != len(samples) || !ok {
		t.Fatalf("Stream() at end = %d, %v; want %d, true", n, ok, len(samples))
	}
	if !near(samples[49][0], 0.5) || samples[50] != [2]float64{} {
		t.Errorf("tail samples = %v, %v; want 0.5 then silence", samples[49], samples[50])
	}
	if p.Playing() {
		t.Error("Playing() = true after end")
	}

	if err := p.Play(); err != nil {
		t.Fatalf("Play() after end error = %v", err)
	}
	p.Stream(samples)
	if !near(samples[0][0], 0.5) {
		t.Errorf("sample after restart = %v; want 0.5", samples[0][0])
	}

	want := []mixer.StateCode{mixer.StatePlaying, mixer.StateEnded, mixer.StatePlaying}
	got := rec.Codes()
	if len(got) != len(want) {
		t.Fatalf("states = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v; want %v", got, want)
		}
	}
}

func TestPlayerPauseHoldsPosition(t *testing.T) {
	p := newPlayer("rain", testBuffer(4800, 0.5), testFormat.SampleRate, (&recorder{}).emit)
	p.Play()

	p.Stream(make([][2]float64, 480))
	p.Pause()
	p.Stream(make([][2]float64, 480))

	if got, want := p.Position(), 10*time.Millisecond; got != want {
		t.Errorf("Position() = %v; want %v", got, want)
	}
	if got, want := p.Duration(), 100*time.Millisecond; got != want {
		t.Errorf("Duration() = %v; want %v", got, want)
	}
}

func TestPlayerVolume(t *testing.T) {
	tests := []struct {
		percent int
		want    float64
		wantErr bool
	}{
		{percent: 100, want: 0.5},
		{percent: 50, want: 0.25},
		{percent: 0, want: 0},
		{percent: -1, wantErr: true},
		{percent: 101, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.percent), func(t *testing.T) {
			p := newPlayer("rain", testBuffer(100, 0.5), testFormat.SampleRate, (&recorder{}).emit)
			err := p.SetVolume(tt.percent)
			if tt.wantErr {
				if !errors.Is(err, ErrBadVolume) {
					t.Fatalf("SetVolume(%d) error = %v; want ErrBadVolume", tt.percent, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetVolume(%d) error = %v", tt.percent, err)
			}

			p.Play()
			samples := make([][2]float64, 10)
			p.Stream(samples)
			if !near(samples[0][0], tt.want) {
				t.Errorf("sample at %d%% = %v; want %v", tt.percent, samples[0][0], tt.want)
			}
		})
	}
}

func TestPlayerClose(t *testing.T) {
	p := newPlayer("rain", testBuffer(100, 0.5), testFormat.SampleRate, (&recorder{}).emit)
	p.Close()

	if n, ok := p.Stream(make([][2]float64, 10)); n != 0 || ok {
		t.Errorf("Stream() after Close = %d, %v; want 0, false", n, ok)
	}
	if err := p.Play(); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Play() after Close error = %v; want ErrAlreadyClosed", err)
	}
}

func TestLibraryPath(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, dir, "rain", 10)
	if err := os.WriteFile(filepath.Join(dir, "both.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeWav(t, dir, "both", 10)

	lib := NewLibrary(dir)
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "rain", want: "rain.wav"},
		{ref: "both", want: "both.mp3"},
		{ref: "missing", wantErr: true},
		{ref: "", wantErr: true},
		{ref: "../rain", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := lib.Path(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrNoMedia) {
					t.Fatalf("Path(%q) error = %v; want ErrNoMedia", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Path(%q) error = %v", tt.ref, err)
			}
			if filepath.Base(got) != tt.want {
				t.Errorf("Path(%q) = %s; want %s", tt.ref, got, tt.want)
			}
		})
	}
}

func TestLibraryCachesDecodes(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, dir, "rain", 480)
	lib := NewLibrary(dir)

	first, err := lib.Decode("rain")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if first.Len() != 480 {
		t.Errorf("Len() = %d; want 480", first.Len())
	}
	second, err := lib.Decode("rain")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if first != second {
		t.Error("second Decode() returned a new buffer")
	}
}

func TestEngineLoad(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, dir, "rain", 480)

	engine, err := NewEngine(testFormat.SampleRate, NewLibrary(dir), WithoutOutput())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	states := make(chan mixer.StateCode, 16)
	p, err := engine.Load("rain-id", "rain", func(code mixer.StateCode) { states <- code })
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	waitFor(t, states, mixer.StateCued)

	if got, ok := engine.Player("rain-id"); !ok || got != p {
		t.Error("Player() does not return the loaded player")
	}

	p.Play()
	waitFor(t, states, mixer.StatePlaying)

	if _, err := engine.Load("fire-id", "fire", nil); !errors.Is(err, ErrNoMedia) {
		t.Errorf("Load() missing media error = %v; want ErrNoMedia", err)
	}

	engine.Unload("rain-id")
	if _, ok := engine.Player("rain-id"); ok {
		t.Error("player still present after Unload")
	}
}

func TestEngineDropsReplacedPlayerEvents(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, dir, "song", 480)

	engine, err := NewEngine(testFormat.SampleRate, NewLibrary(dir), WithoutOutput())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	type event struct {
		from string
		code mixer.StateCode
	}
	events := make(chan event, 16)
	listen := func(from string) StateFunc {
		return func(code mixer.StateCode) { events <- event{from, code} }
	}

	old, err := engine.Load(PrimaryID, "song", listen("old"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cur, err := engine.Load(PrimaryID, "song", listen("new"))
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	// A late end from the replaced player, then a marker from the current one.
	engine.emit(old, mixer.StateEnded)
	engine.emit(cur, mixer.StatePaused)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.from == "old" && ev.code == mixer.StateEnded {
				t.Fatal("state change from replaced player was delivered")
			}
			if ev.from == "new" && ev.code == mixer.StatePaused {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for current player state")
		}
	}
}

func TestEngineLoadAsync(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, dir, "rain", 480)

	engine, err := NewEngine(testFormat.SampleRate, NewLibrary(dir), WithoutOutput())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	done := make(chan error, 1)
	engine.LoadAsync("rain-id", "rain", nil, func(p *Player, err error) {
		if err == nil && p.ID() != "rain-id" {
			err = errors.New("wrong player id")
		}
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("LoadAsync() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LoadAsync() never reported")
	}
}

func TestPrimaryPollsWhilePlaying(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, "song", 48000)

	engine, err := NewEngine(testFormat.SampleRate, NewLibrary(dir), WithoutOutput())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer engine.Close()

	var (
		mu      sync.Mutex
		reports int
		lastDur time.Duration
	)
	primary := NewPrimary(engine, 10*time.Millisecond, func(_, dur time.Duration) {
		mu.Lock()
		reports++
		lastDur = dur
		mu.Unlock()
	})
	defer primary.Close()

	if err := primary.Play(); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("Play() without track error = %v; want ErrNoMedia", err)
	}
	if err := primary.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if primary.Polling() {
		t.Fatal("polling before Play")
	}

	primary.Play()
	eventually(t, primary.Polling)
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reports > 0
	})

	mu.Lock()
	if lastDur != time.Second {
		t.Errorf("reported duration = %v; want 1s", lastDur)
	}
	mu.Unlock()

	primary.Pause()
	eventually(t, func() bool { return !primary.Polling() })
	eventually(t, func() bool { return primary.State() == mixer.StatePaused })

	if err := primary.Seek(500 * time.Millisecond); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if got := primary.Position(); got != 500*time.Millisecond {
		t.Errorf("Position() after Seek = %v; want 500ms", got)
	}
}

func TestProgressStartStop(t *testing.T) {
	calls := make(chan struct{}, 100)
	p := NewProgress(5*time.Millisecond,
		func() (time.Duration, time.Duration) { return 0, 0 },
		func(time.Duration, time.Duration) {
			select {
			case calls <- struct{}{}:
			default:
			}
		})

	p.Start()
	p.Start()
	<-calls
	p.Stop()
	p.Stop()

	if p.Running() {
		t.Error("Running() = true after Stop")
	}
	for len(calls) > 0 {
		<-calls
	}
	time.Sleep(20 * time.Millisecond)
	if len(calls) != 0 {
		t.Error("progress reported after Stop")
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{59*time.Minute + 59*time.Second + 900*time.Millisecond, "59:59"},
		{time.Hour + 2*time.Minute + 5*time.Second, "1:02:05"},
		{-time.Second, "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.in); got != tt.want {
				t.Errorf("FormatTime(%v) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}
