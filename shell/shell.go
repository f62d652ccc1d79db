// Package shell is the interactive terminal front end of the mixer.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chzyer/readline"

	"ambimix/mixer"
	"ambimix/youtube"
)

// Mixer is the controller surface used by the shell.
type Mixer interface {
	Snapshot() mixer.Snapshot
	Init() error
	Sync(ctx context.Context) ([]mixer.Track, error)
	Toggle(id string) error
	Resume(id string) error
	SetVolume(id string, v float64) error
	StopAll() error
	AddTrack(ctx context.Context, name, raw string) (mixer.Track, error)
	RemoveTrack(ctx context.Context, id string) error
}

// Primary is the primary track player.
type Primary interface {
	Load(path string) error
	Play() error
	Pause() error
	Seek(d time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	State() mixer.StateCode
	Path() string
}

// Metadata looks up video titles.
type Metadata interface {
	Info(ctx context.Context, id string) youtube.Info
}

// Shell reads commands from a terminal and runs them against the mixer.
type Shell struct {
	mixer    Mixer
	primary  Primary
	metadata Metadata
	out      io.Writer
	rl       *readline.Instance
}

// New creates a shell writing to out. primary and metadata may be nil.
func New(m Mixer, primary Primary, metadata Metadata, out io.Writer) *Shell {
	return &Shell{
		mixer:    m,
		primary:  primary,
		metadata: metadata,
		out:      out,
	}
}

// Open attaches the shell to the terminal. Log output should go to the
// returned writer so it does not break the prompt line.
func (s *Shell) Open() (io.Writer, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     filepath.Join(os.TempDir(), "ambimix.history"),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()
	return rl.Stderr(), nil
}

// Close releases the terminal.
func (s *Shell) Close() error {
	if s.rl == nil {
		return nil
	}
	return s.rl.Close()
}

// Run reads and executes commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	if s.rl == nil {
		return errors.New("shell is not open")
	}

	fmt.Fprintln(s.out, "ambimix ready, type help for commands")
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := s.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", describe(err))
		}
		if quit {
			return nil
		}
		s.rl.SetPrompt(s.prompt())
	}
}

func (s *Shell) prompt() string {
	n := len(s.mixer.Snapshot().Active)
	if n == 0 {
		return "ambimix> "
	}
	return fmt.Sprintf("ambimix [%d playing]> ", n)
}

func (s *Shell) completer() *readline.PrefixCompleter {
	tracks := readline.PcItemDynamic(func(string) []string {
		snap := s.mixer.Snapshot()
		names := make([]string, 0, len(snap.Tracks))
		for _, t := range snap.Tracks {
			names = append(names, t.Name)
		}
		return names
	})

	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("toggle", tracks),
		readline.PcItem("resume", tracks),
		readline.PcItem("vol", tracks),
		readline.PcItem("add"),
		readline.PcItem("rm", tracks),
		readline.PcItem("info", tracks),
		readline.PcItem("stop"),
		readline.PcItem("sync"),
		readline.PcItem("init"),
		readline.PcItem("status"),
		readline.PcItem("primary",
			readline.PcItem("load"),
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("seek"),
		),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// describe shortens mixer errors for the terminal.
func describe(err error) string {
	switch {
	case errors.Is(err, mixer.ErrNotFound):
		return "no such track"
	case errors.Is(err, mixer.ErrForbidden):
		return "built-in and foreign tracks cannot be removed"
	case errors.Is(err, mixer.ErrOutOfRange):
		return "volume must be between 0 and 100"
	case errors.Is(err, mixer.ErrStopped):
		return "mixer is stopped"
	default:
		return err.Error()
	}
}
