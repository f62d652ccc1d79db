package machine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disgoorg/disgo/discord"

	"ambimix/config"
	"ambimix/logger"
	"ambimix/mixer"
	"ambimix/store"
	"ambimix/youtube"
)

func newTestMixer(t *testing.T) *mixer.Controller {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), "tester")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := db.Seed(ctx, []store.Seed{
		{Name: "Rain", Source: "mPZkdNFkNps"},
		{Name: "Forest", Source: "xNN7iTA57jM"},
	}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	c := mixer.New(db, youtube.ResolveID, mixer.WithLogger(logger.Discard()))
	runCtx, cancel := context.WithCancel(ctx)
	go c.Run(runCtx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	if _, err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	return c
}

func TestRunCommand(t *testing.T) {
	c := newTestMixer(t)
	d := NewDiscordManager(&config.Config{}, c)
	ctx := context.Background()

	steps := []struct {
		command   string
		args      commandArgs
		wantReply string
		wantErr   error
	}{
		{command: "tracks", wantReply: "1. ⏸️ **Rain** 50% (built-in)"},
		{command: "toggle", args: commandArgs{Track: "rain"}, wantReply: "**Rain** is playing"},
		{command: "volume", args: commandArgs{Track: "1", Level: 80}, wantReply: "set to 80%"},
		{command: "volume", args: commandArgs{Track: "1", Level: 150}, wantErr: mixer.ErrOutOfRange},
		{command: "tracks", wantReply: "1. ▶️ **Rain** 80%"},
		{command: "toggle", args: commandArgs{Track: "Fire"}, wantErr: mixer.ErrNotFound},
		{command: "addtrack", args: commandArgs{Name: "Cafe", URL: "https://youtu.be/WHPEKLQID4U"}, wantReply: "Added **Cafe**"},
		{command: "addtrack", args: commandArgs{Name: "Bad", URL: "https://vimeo.com/1"}, wantErr: mixer.ErrInvalidInput},
		{command: "removetrack", args: commandArgs{Track: "Forest"}, wantErr: mixer.ErrForbidden},
		{command: "removetrack", args: commandArgs{Track: "cafe"}, wantReply: "Removed **Cafe**"},
		{command: "stopall", wantReply: "stopped"},
		{command: "tracks", wantReply: "1. ⏸️ **Rain** 80%"},
	}

	for _, st := range steps {
		reply, err := d.runCommand(ctx, st.command, st.args)
		if st.wantErr != nil {
			if !errors.Is(err, st.wantErr) {
				t.Fatalf("%s %+v: error = %v, want %v", st.command, st.args, err, st.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s %+v: error = %v", st.command, st.args, err)
		}
		if !strings.Contains(reply, st.wantReply) {
			t.Fatalf("%s %+v: reply = %q, want it to contain %q", st.command, st.args, reply, st.wantReply)
		}
	}

	if _, err := d.runCommand(ctx, "reboot", commandArgs{}); err == nil {
		t.Error("unknown command returned nil error")
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: mixer.ErrForbidden, want: "cannot be removed"},
		{err: mixer.ErrOutOfRange, want: "between 0 and 100"},
		{err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := describeError(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("describeError(%v) = %q, want it to contain %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetCommands(t *testing.T) {
	d := NewDiscordManager(&config.Config{}, nil)
	names := make(map[string]bool)
	for _, c := range d.getCommands() {
		if slash, ok := c.(discord.SlashCommandCreate); ok {
			names[slash.Name] = true
		}
	}
	for _, want := range []string{"tracks", "toggle", "volume", "stopall", "addtrack", "removetrack"} {
		if !names[want] {
			t.Errorf("command %q not registered", want)
		}
	}
}
