// Package commands implements Discord slash command handlers for Scannerbot.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"hz.tools/rf"

	"github.com/brvfd/scannerbot/internal/config"
	"github.com/brvfd/scannerbot/internal/discord"
	"github.com/brvfd/scannerbot/internal/radio"
)

// tuneTimeout bounds a single tune request, comfortably above the sum of
// all settle intervals plus the retry loop.
const tuneTimeout = 15 * time.Second

// RadioCommands holds the dependencies for the receiver slash commands.
type RadioCommands struct {
	bot *discord.Bot
	rx  *radio.Supervisor
	cfg func() *config.Config // current config; may change under hot reload
}

// NewRadioCommands creates a RadioCommands and registers its handlers
// with the bot's router. cfg must return the live configuration so
// preset edits show up without a restart.
func NewRadioCommands(bot *discord.Bot, rx *radio.Supervisor, cfg func() *config.Config) *RadioCommands {
	rc := &RadioCommands{bot: bot, rx: rx, cfg: cfg}
	rc.Register(bot.Router())
	return rc
}

// Register registers all receiver commands with the router.
func (rc *RadioCommands) Register(router *discord.CommandRouter) {
	minFreq, maxFreq := 0.1, 2200.0
	minVol, maxVol := 0.0, 2.0

	router.RegisterCommand("join", &discordgo.ApplicationCommand{
		Name:        "join",
		Description: "Join your voice channel and start streaming the receiver",
	}, rc.handleJoin)

	router.RegisterCommand("stop", &discordgo.ApplicationCommand{
		Name:        "stop",
		Description: "Stop streaming and leave the voice channel",
	}, rc.handleStop)

	router.RegisterCommand("fm", &discordgo.ApplicationCommand{
		Name:        "fm",
		Description: "Tune the receiver to a frequency",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "mhz",
				Description: "Frequency in MHz (e.g. 101.1)",
				Required:    true,
				MinValue:    &minFreq,
				MaxValue:    maxFreq,
			},
		},
	}, rc.handleFM)

	router.RegisterCommand("preset", &discordgo.ApplicationCommand{
		Name:        "preset",
		Description: "Tune to a named preset",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "name",
				Description:  "Preset name",
				Required:     true,
				Autocomplete: true,
			},
		},
	}, rc.handlePreset)
	router.RegisterAutocomplete("preset", rc.autocompletePreset)

	router.RegisterCommand("mode", &discordgo.ApplicationCommand{
		Name:        "mode",
		Description: "Switch the demodulation mode",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "Demodulation mode",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Broadcast FM (wide)", Value: string(radio.ModeWFM)},
					{Name: "Narrow FM (voice)", Value: string(radio.ModeNFM)},
					{Name: "NOAA weather", Value: string(radio.ModeWX)},
				},
			},
		},
	}, rc.handleMode)

	router.RegisterCommand("squelch", &discordgo.ApplicationCommand{
		Name:        "squelch",
		Description: "Set the squelch threshold (0 disables)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "threshold",
				Description: "RMS threshold, e.g. 0.05",
				Required:    true,
				MinValue:    &minVol,
			},
		},
	}, rc.handleSquelch)

	router.RegisterCommand("gain", &discordgo.ApplicationCommand{
		Name:        "gain",
		Description: "Set the tuner gain in dB (negative = hardware AGC)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "db",
				Description: "Gain in dB, e.g. 28.0",
				Required:    true,
			},
		},
	}, rc.handleGain)

	router.RegisterCommand("bw", &discordgo.ApplicationCommand{
		Name:        "bw",
		Description: "Set the tuner filter bandwidth in kHz (0 = automatic)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "khz",
				Description: "Bandwidth in kHz",
				Required:    true,
				MinValue:    &minVol,
			},
		},
	}, rc.handleBandwidth)

	router.RegisterCommand("vol", &discordgo.ApplicationCommand{
		Name:        "vol",
		Description: "Set the playback volume",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "level",
				Description: "Volume, 0 to 2 (1 = unity)",
				Required:    true,
				MinValue:    &minVol,
				MaxValue:    maxVol,
			},
		},
	}, rc.handleVolume)

	router.RegisterCommand("rfinfo", &discordgo.ApplicationCommand{
		Name:        "rfinfo",
		Description: "Show the current receiver state",
	}, rc.handleRFInfo)

	router.RegisterCommand("help", &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "Show what the receiver commands do",
	}, rc.handleHelp)
}

// handleJoin handles /join.
func (rc *RadioCommands) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID := rc.bot.GuildID()
	if guildID == "" {
		guildID = i.GuildID
	}
	userID := interactionUserID(i)

	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		discord.RespondEphemeral(s, i, "You must be in a voice channel first.")
		return
	}

	discord.DeferReply(s, i)

	if err := rc.bot.Playback().Join(s, guildID, vs.ChannelID); err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Failed to join: %v", err))
		return
	}
	if err := rc.rx.Start(context.Background()); err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Receiver failed to start: %v", err))
		return
	}

	discord.FollowUp(s, i, fmt.Sprintf("Streaming the receiver into <#%s>.", vs.ChannelID))
}

// handleStop handles /stop.
func (rc *RadioCommands) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !rc.bot.Playback().Connected() {
		discord.RespondEphemeral(s, i, "Not in a voice channel.")
		return
	}
	rc.bot.Playback().Leave()
	rc.rx.Stop()
	discord.RespondEphemeral(s, i, "Left the voice channel.")
}

// handleFM handles /fm.
func (rc *RadioCommands) handleFM(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	mhz := opts["mhz"].FloatValue()

	// Tuning sleeps through its settle intervals, so defer the reply.
	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), tuneTimeout)
	defer cancel()

	if err := rc.rx.TuneTo(ctx, rf.Hz(mhz*1e6)); err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Failed to tune: %v", err))
		return
	}
	discord.FollowUp(s, i, fmt.Sprintf("Tuned to **%.4f MHz** (%s).", mhz, rc.rx.Mode()))
}

// handlePreset handles /preset.
func (rc *RadioCommands) handlePreset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	name := opts["name"].StringValue()

	p, ok := rc.cfg().PresetByName(name)
	if !ok {
		discord.RespondEphemeral(s, i, fmt.Sprintf("No preset named `%s`.", name))
		return
	}

	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), tuneTimeout)
	defer cancel()

	if p.Mode != "" {
		mode, err := radio.ParseMode(p.Mode)
		if err != nil {
			discord.FollowUp(s, i, fmt.Sprintf("Preset `%s` is broken: %v", name, err))
			return
		}
		if err := rc.rx.SetMode(ctx, mode); err != nil {
			discord.FollowUp(s, i, fmt.Sprintf("Failed to switch mode: %v", err))
			return
		}
	}
	if p.Squelch != nil {
		rc.rx.SetSquelch(*p.Squelch)
	}
	if p.Gain != nil {
		rc.rx.SetGain(ctx, *p.Gain)
	}
	if err := rc.rx.TuneTo(ctx, rf.Hz(p.MHz*1e6)); err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Failed to tune: %v", err))
		return
	}

	discord.FollowUp(s, i, fmt.Sprintf("Preset **%s**: %.4f MHz (%s).", p.Name, p.MHz, rc.rx.Mode()))
}

// autocompletePreset serves preset name completion for /preset.
func (rc *RadioCommands) autocompletePreset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	partial := ""
	if o, ok := opts["name"]; ok {
		partial = strings.ToLower(o.StringValue())
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, p := range rc.cfg().Presets {
		if partial != "" && !strings.Contains(strings.ToLower(p.Name), partial) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%.4f MHz)", p.Name, p.MHz),
			Value: p.Name,
		})
		// Discord caps autocomplete at 25 choices.
		if len(choices) == 25 {
			break
		}
	}

	discord.RespondChoices(s, i, choices)
}

// handleMode handles /mode.
func (rc *RadioCommands) handleMode(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	mode, err := radio.ParseMode(opts["mode"].StringValue())
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}

	if err := rc.rx.SetMode(context.Background(), mode); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Mode switched to **%s**.", mode))
}

// handleSquelch handles /squelch.
func (rc *RadioCommands) handleSquelch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	threshold := opts["threshold"].FloatValue()
	rc.rx.SetSquelch(threshold)
	if threshold == 0 {
		discord.RespondEphemeral(s, i, "Squelch disabled.")
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Squelch threshold set to %.3f.", threshold))
}

// handleGain handles /gain.
func (rc *RadioCommands) handleGain(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	db := opts["db"].FloatValue()
	rc.rx.SetGain(context.Background(), db)
	if db < 0 {
		discord.RespondEphemeral(s, i, "Tuner gain set to hardware AGC.")
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Tuner gain set to %.1f dB.", db))
}

// handleBandwidth handles /bw.
func (rc *RadioCommands) handleBandwidth(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	khz := opts["khz"].FloatValue()
	rc.rx.SetBandwidth(context.Background(), rf.Hz(khz*1e3))
	if khz == 0 {
		discord.RespondEphemeral(s, i, "Tuner bandwidth set to automatic.")
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Tuner bandwidth set to %.0f kHz.", khz))
}

// handleVolume handles /vol.
func (rc *RadioCommands) handleVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	level := opts["level"].FloatValue()
	rc.bot.Playback().SetVolume(level)
	discord.RespondEphemeral(s, i, fmt.Sprintf("Volume set to %.2f.", rc.bot.Playback().Volume()))
}

// handleRFInfo handles /rfinfo.
func (rc *RadioCommands) handleRFInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	freq := "not tuned"
	if f := rc.rx.Frequency(); f > 0 {
		freq = fmt.Sprintf("%.4f MHz", float64(f)/1e6)
	}
	hwCenter := "unknown"
	if f := rc.rx.CenterFrequency(); f >= 0 {
		hwCenter = fmt.Sprintf("%.4f MHz", float64(f)/1e6)
	}
	state := "stopped"
	if rc.rx.Running() {
		state = "running"
	}

	embed := &discordgo.MessageEmbed{
		Title: "Receiver state",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Frequency", Value: freq, Inline: true},
			{Name: "Hardware center", Value: hwCenter, Inline: true},
			{Name: "Mode", Value: string(rc.rx.Mode()), Inline: true},
			{Name: "Engine", Value: state, Inline: true},
			{Name: "Squelch", Value: fmt.Sprintf("%.3f", rc.rx.Squelch()), Inline: true},
			{Name: "Signal RMS", Value: fmt.Sprintf("%.4f", rc.rx.RMS()), Inline: true},
			{Name: "Gain", Value: fmt.Sprintf("%.1f dB", rc.rx.Gain()), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%.2f", rc.bot.Playback().Volume()), Inline: true},
		},
	}
	discord.RespondEmbed(s, i, embed)
}

// handleHelp handles /help.
func (rc *RadioCommands) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title: "Receiver commands",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "/join", Value: "Join your voice channel and start streaming"},
			{Name: "/stop", Value: "Stop streaming and leave"},
			{Name: "/fm <mhz>", Value: "Tune to a frequency, e.g. `/fm 101.1`"},
			{Name: "/preset <name>", Value: "Tune to a named preset from the config"},
			{Name: "/mode <wfm|nfm|wx>", Value: "Switch the demodulation mode"},
			{Name: "/squelch <threshold>", Value: "Mute below an RMS level; 0 disables"},
			{Name: "/gain <db>", Value: "Tuner gain in dB; negative selects hardware AGC"},
			{Name: "/bw <khz>", Value: "Tuner filter bandwidth; 0 is automatic"},
			{Name: "/vol <level>", Value: "Playback volume, 0 to 2"},
			{Name: "/rfinfo", Value: "Show frequency, mode, squelch, and signal level"},
		},
	}
	discord.RespondEmbed(s, i, embed)
}

// optionMap indexes an interaction's options by name.
func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, o := range data.Options {
		m[o.Name] = o
	}
	return m
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
