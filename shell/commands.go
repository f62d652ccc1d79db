package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"ambimix/mixer"
	"ambimix/playback"
	"ambimix/youtube"
)

var errUsage = errors.New("usage")

const helpText = `commands:
  list                      show tracks
  toggle <track>            start or stop a track
  resume <track>            re-issue play to an active track
  vol <track> <0-100>       set track volume
  add <name> <url>          add a YouTube track
  rm <track>                remove one of your tracks
  info <track>              show video details
  stop                      stop every track
  sync                      reload the catalog
  init                      mark playback as started
  status                    show mixer and primary state
  primary load <file>       load the primary track
  primary play|pause        control the primary track
  primary seek <seconds>    jump in the primary track
  help                      show this help
  quit                      leave
<track> is a list number, a name or an id.`

// Exec runs one command line. It reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
	case "list", "ls":
		s.list()
	case "toggle", "t":
		err = s.withTrack(args, 1, func(t mixer.Track) error {
			if err := s.mixer.Toggle(t.ID); err != nil {
				return err
			}
			if s.mixer.Snapshot().IsActive(t.ID) {
				fmt.Fprintf(s.out, "▶ %s\n", t.Name)
			} else {
				fmt.Fprintf(s.out, "⏸ %s\n", t.Name)
			}
			return nil
		})
	case "resume":
		err = s.withTrack(args, 1, func(t mixer.Track) error {
			return s.mixer.Resume(t.ID)
		})
	case "vol", "volume":
		err = s.volume(args)
	case "add":
		err = s.add(ctx, args)
	case "rm", "remove":
		err = s.withTrack(args, 1, func(t mixer.Track) error {
			if err := s.mixer.RemoveTrack(ctx, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "removed %s\n", t.Name)
			return nil
		})
	case "info":
		err = s.withTrack(args, 1, func(t mixer.Track) error {
			return s.info(ctx, t)
		})
	case "stop":
		err = s.mixer.StopAll()
	case "sync":
		var tracks []mixer.Track
		if tracks, err = s.mixer.Sync(ctx); err == nil {
			fmt.Fprintf(s.out, "%d tracks\n", len(tracks))
		}
	case "init":
		err = s.mixer.Init()
	case "status":
		s.status()
	case "primary", "p":
		err = s.primaryCmd(args)
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(s.out, err)
		return false, nil
	}
	return false, err
}

// withTrack resolves the first argument to a track and calls fn.
func (s *Shell) withTrack(args []string, want int, fn func(mixer.Track) error) error {
	if len(args) < want {
		return fmt.Errorf("%w: track name, number or id required", errUsage)
	}
	ref := strings.Join(args[:len(args)-(want-1)], " ")
	t, ok := s.mixer.Snapshot().Find(ref)
	if !ok {
		return fmt.Errorf("track %q: %w", ref, mixer.ErrNotFound)
	}
	return fn(t)
}

func (s *Shell) volume(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: vol <track> <0-100>", errUsage)
	}
	level, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return fmt.Errorf("%w: volume must be a whole number", errUsage)
	}
	return s.withTrack(args, 2, func(t mixer.Track) error {
		if err := s.mixer.SetVolume(t.ID, float64(level)/100); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %d%%\n", t.Name, level)
		return nil
	})
}

func (s *Shell) add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <name> <url>", errUsage)
	}
	name := strings.Join(args[:len(args)-1], " ")
	t, err := s.mixer.AddTrack(ctx, name, args[len(args)-1])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "added %s (%s)\n", t.Name, t.SourceRef)
	return nil
}

func (s *Shell) info(ctx context.Context, t mixer.Track) error {
	fmt.Fprintf(s.out, "%s\n", t.Name)
	fmt.Fprintf(s.out, "  id:        %s\n", t.ID)
	fmt.Fprintf(s.out, "  source:    %s\n", youtube.WatchURL(t.SourceRef))
	if s.metadata != nil {
		info := s.metadata.Info(ctx, t.SourceRef)
		fmt.Fprintf(s.out, "  title:     %s\n", info.Title)
		if info.Author != "" {
			fmt.Fprintf(s.out, "  author:    %s\n", info.Author)
		}
		fmt.Fprintf(s.out, "  thumbnail: %s\n", info.Thumbnail)
	}
	if !t.BuiltIn {
		fmt.Fprintf(s.out, "  added:     %s\n", t.CreatedAt.Format(time.DateTime))
	}
	return nil
}

func (s *Shell) list() {
	snap := s.mixer.Snapshot()
	if len(snap.Tracks) == 0 {
		fmt.Fprintln(s.out, "no tracks")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for i, t := range snap.Tracks {
		play := "⏸"
		if snap.IsActive(t.ID) {
			play = "▶"
		}
		kind := "user"
		if t.BuiltIn {
			kind = "built-in"
		}
		handle := "no media"
		if snap.Bound[t.ID] {
			handle = snap.States[t.ID].String()
		}
		fmt.Fprintf(w, "%d.\t%s\t%s\t%d%%\t%s\t%s\n",
			i+1, play, t.Name, int(snap.Volume(t.ID)*100+0.5), kind, handle)
	}
	w.Flush()
}

func (s *Shell) status() {
	snap := s.mixer.Snapshot()
	fmt.Fprintf(s.out, "tracks: %d, playing: %d, initialized: %t\n",
		len(snap.Tracks), len(snap.Active), snap.Initialized)

	if s.primary == nil || s.primary.Path() == "" {
		fmt.Fprintln(s.out, "primary: none")
		return
	}
	fmt.Fprintf(s.out, "primary: %s [%s] %s / %s\n",
		s.primary.Path(),
		s.primary.State(),
		playback.FormatTime(s.primary.Position()),
		playback.FormatTime(s.primary.Duration()))
}

func (s *Shell) primaryCmd(args []string) error {
	if s.primary == nil {
		return errors.New("primary player is not available")
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: primary <load|play|pause|seek>", errUsage)
	}

	switch strings.ToLower(args[0]) {
	case "load":
		if len(args) < 2 {
			return fmt.Errorf("%w: primary load <file>", errUsage)
		}
		path := strings.Join(args[1:], " ")
		if err := s.primary.Load(path); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "loaded %s (%s)\n", path, playback.FormatTime(s.primary.Duration()))
		return nil
	case "play":
		return s.primary.Play()
	case "pause":
		return s.primary.Pause()
	case "seek":
		if len(args) < 2 {
			return fmt.Errorf("%w: primary seek <seconds>", errUsage)
		}
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("%w: seek takes a number of seconds", errUsage)
		}
		if err := s.primary.Seek(time.Duration(secs * float64(time.Second))); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s / %s\n",
			playback.FormatTime(s.primary.Position()),
			playback.FormatTime(s.primary.Duration()))
		return nil
	default:
		return fmt.Errorf("%w: primary <load|play|pause|seek>", errUsage)
	}
}
