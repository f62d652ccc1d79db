package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"

	"ambimix/config"
	"ambimix/mixer"
)

// Mixer is the part of the mixer controller driven by remote commands.
type Mixer interface {
	Snapshot() mixer.Snapshot
	Toggle(id string) error
	SetVolume(id string, v float64) error
	StopAll() error
	AddTrack(ctx context.Context, name, raw string) (mixer.Track, error)
	RemoveTrack(ctx context.Context, id string) error
}

// DiscordManager exposes the mixer as Discord slash commands and posts
// notifications to a channel
type DiscordManager struct {
	config *config.Config
	client bot.Client
	logger *slog.Logger
	mixer  Mixer
}

// NewDiscordManager creates a new DiscordManager instance
func NewDiscordManager(cfg *config.Config, m Mixer) *DiscordManager {
	return &DiscordManager{
		config: cfg,
		logger: slog.With("component", "discord"),
		mixer:  m,
	}
}

// Initialize sets up the Discord bot client
func (d *DiscordManager) Initialize() error {
	d.logger.Info("Initializing Discord client")

	client, err := disgo.New(d.config.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds),
		),
		bot.WithEventListenerFunc(d.commandListener),
	)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}

	d.client = client

	// Register commands on the guild when one is configured, globally otherwise
	if d.config.Discord.GuildID != "" {
		guildID, err := snowflake.Parse(d.config.Discord.GuildID)
		if err != nil {
			return fmt.Errorf("invalid guild ID: %w", err)
		}
		if _, err = client.Rest().SetGuildCommands(client.ApplicationID(), guildID, d.getCommands()); err != nil {
			return fmt.Errorf("failed to register Discord commands: %w", err)
		}
	} else if _, err = client.Rest().SetGlobalCommands(client.ApplicationID(), d.getCommands()); err != nil {
		return fmt.Errorf("failed to register Discord commands: %w", err)
	}

	d.logger.Info("Discord client initialized successfully")
	return nil
}

// Start opens the Discord gateway connection
func (d *DiscordManager) Start(ctx context.Context) error {
	if err := d.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to connect to Discord gateway: %w", err)
	}
	return nil
}

// Stop closes the Discord connection
func (d *DiscordManager) Stop() {
	if d.client != nil {
		d.client.Close(context.Background())
	}
}

// getCommands returns the Discord slash commands
func (d *DiscordManager) getCommands() []discord.ApplicationCommandCreate {
	trackOption := discord.ApplicationCommandOptionString{
		Name:        "track",
		Description: "Track name, number or ID",
		Required:    true,
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        "tracks",
			Description: "lists the ambient tracks",
		},
		discord.SlashCommandCreate{
			Name:        "toggle",
			Description: "starts or stops an ambient track",
			Options:     []discord.ApplicationCommandOption{trackOption},
		},
		discord.SlashCommandCreate{
			Name:        "volume",
			Description: "sets the volume of an ambient track",
			Options: []discord.ApplicationCommandOption{
				trackOption,
				discord.ApplicationCommandOptionInt{
					Name:        "level",
					Description: "Volume from 0 to 100",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        "stopall",
			Description: "stops every ambient track",
		},
		discord.SlashCommandCreate{
			Name:        "addtrack",
			Description: "adds a YouTube video as an ambient track",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Display name",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "url",
					Description: "YouTube URL or video ID",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        "removetrack",
			Description: "removes one of your ambient tracks",
			Options:     []discord.ApplicationCommandOption{trackOption},
		},
	}
}

// commandArgs holds the options of a slash command.
type commandArgs struct {
	Track string
	Level int
	Name  string
	URL   string
}

// commandListener handles Discord slash commands
func (d *DiscordManager) commandListener(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	args := commandArgs{
		Track: data.String("track"),
		Level: data.Int("level"),
		Name:  data.String("name"),
		URL:   data.String("url"),
	}

	d.logger.Info("Received mixer command from Discord",
		slog.String("command", data.CommandName()),
		slog.String("user", event.User().Username))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reply, err := d.runCommand(ctx, data.CommandName(), args)
	if err != nil {
		d.logger.Error("Mixer command from Discord failed",
			slog.String("command", data.CommandName()),
			slog.Any("error", err))
		reply = "Command **failed**: " + describeError(err)
	}

	err = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(reply).
		SetEphemeral(true).
		Build())
	if err != nil {
		d.logger.Error("Failed to send Discord response", slog.Any("error", err))
	}
}

// runCommand executes one slash command against the mixer and returns
// the reply text.
func (d *DiscordManager) runCommand(ctx context.Context, name string, args commandArgs) (string, error) {
	snap := d.mixer.Snapshot()

	find := func() (mixer.Track, error) {
		t, ok := snap.Find(args.Track)
		if !ok {
			return mixer.Track{}, fmt.Errorf("track %q: %w", args.Track, mixer.ErrNotFound)
		}
		return t, nil
	}

	switch name {
	case "tracks":
		return formatTrackList(snap), nil

	case "toggle":
		t, err := find()
		if err != nil {
			return "", err
		}
		if err := d.mixer.Toggle(t.ID); err != nil {
			return "", err
		}
		if d.mixer.Snapshot().IsActive(t.ID) {
			return fmt.Sprintf("▶️ **%s** is playing", t.Name), nil
		}
		return fmt.Sprintf("⏸️ **%s** is paused", t.Name), nil

	case "volume":
		t, err := find()
		if err != nil {
			return "", err
		}
		if err := d.mixer.SetVolume(t.ID, float64(args.Level)/100); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔊 **%s** volume set to %d%%", t.Name, args.Level), nil

	case "stopall":
		if err := d.mixer.StopAll(); err != nil {
			return "", err
		}
		return "⏹️ All ambient tracks stopped", nil

	case "addtrack":
		t, err := d.mixer.AddTrack(ctx, args.Name, args.URL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("➕ Added **%s**", t.Name), nil

	case "removetrack":
		t, err := find()
		if err != nil {
			return "", err
		}
		if err := d.mixer.RemoveTrack(ctx, t.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("🗑️ Removed **%s**", t.Name), nil

	default:
		return "", fmt.Errorf("unknown command %q", name)
	}
}

// formatTrackList renders the catalog with play state and volume.
func formatTrackList(snap mixer.Snapshot) string {
	if len(snap.Tracks) == 0 {
		return "No ambient tracks."
	}

	var b strings.Builder
	for i, t := range snap.Tracks {
		icon := "⏸️"
		if snap.IsActive(t.ID) {
			icon = "▶️"
		}
		fmt.Fprintf(&b, "%d. %s **%s** %d%%", i+1, icon, t.Name, percentOf(snap.Volume(t.ID)))
		if t.BuiltIn {
			b.WriteString(" (built-in)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// describeError turns mixer errors into short user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, mixer.ErrNotFound):
		return "no such track"
	case errors.Is(err, mixer.ErrForbidden):
		return "that track cannot be removed"
	case errors.Is(err, mixer.ErrInvalidInput):
		return "a name and a valid YouTube URL are required"
	case errors.Is(err, mixer.ErrOutOfRange):
		return "volume must be between 0 and 100"
	case errors.Is(err, mixer.ErrCatalogUnavailable):
		return "the track catalog is unavailable, try again later"
	case errors.Is(err, mixer.ErrStopped):
		return "the mixer is shutting down"
	default:
		return err.Error()
	}
}

// Notify implements Sender by posting an embed to the configured channel.
func (d *DiscordManager) Notify(n Notification) error {
	return d.SendEmbed(notificationEmbed(n))
}

// SendEmbed sends an embed message to the configured Discord channel
func (d *DiscordManager) SendEmbed(embed discord.Embed) error {
	channelID, err := snowflake.Parse(d.config.Discord.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid channel ID: %w", err)
	}

	_, err = d.client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build())

	if err != nil {
		d.logger.Error("Failed to send embed to Discord",
			slog.String("title", embed.Title),
			slog.String("channel", d.config.Discord.ChannelID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send Discord message: %w", err)
	}

	d.logger.Debug("Sent embed to Discord",
		slog.String("title", embed.Title),
		slog.String("channel", d.config.Discord.ChannelID))

	return nil
}
