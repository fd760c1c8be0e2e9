package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reel-cli/reel/color"
	"github.com/reel-cli/reel/history"
	"github.com/reel-cli/reel/icon"
	"github.com/reel-cli/reel/internal/outbox"
	"github.com/reel-cli/reel/key"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/playback"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/stream"
	"github.com/reel-cli/reel/style"
	"github.com/reel-cli/reel/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Duration("start", 0, "Start at this position, e.g. 1h2m3s")
	playCmd.Flags().BoolP("continue", "c", false, "Start where the local history left off")
	playCmd.Flags().BoolP("resume", "r", false, "Start at the position saved on the server")
	playCmd.MarkFlagsMutuallyExclusive("start", "continue", "resume")

	playCmd.Flags().Int("audio", media.NoIndex, "Audio stream index")
	playCmd.Flags().Int("subtitle", media.NoIndex, "Subtitle stream index")
	playCmd.Flags().String("audio-lang", "", "Pick the audio track matching a language or title")
	playCmd.Flags().String("subtitle-lang", "", "Pick the subtitle track matching a language or title")
	playCmd.MarkFlagsMutuallyExclusive("audio", "audio-lang")
	playCmd.MarkFlagsMutuallyExclusive("subtitle", "subtitle-lang")

	playCmd.Flags().Int64("bitrate", 0, "Maximum streaming bitrate in bits per second")
	playCmd.Flags().String("source", "", "Media source id to play")
	playCmd.Flags().Bool("no-controls", false, "Disable interactive controls")
}

var playCmd = &cobra.Command{
	Use:   "play <item id>",
	Short: "Play an item",
	Long: `Play an item through mpv.

While playing, type a command and press enter:
  a          pick an audio track
  s          pick a subtitle track
  q <kbps>   limit quality, q 0 removes the limit
  p          toggle pause
  f <sec>    seek forward
  b <sec>    seek backward
  i          show status
  x          quit`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		CheckDependencies()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newClient()
		handleErr(err)

		replayOutbox(ctx, client)

		item, err := client.Item(ctx, args[0])
		handleErr(err)

		params := media.NewParams(item.ID)
		params.StartPosition = startPosition(cmd, item)
		params.MediaSourceID = lo.Must(cmd.Flags().GetString("source"))
		if bitrate := lo.Must(cmd.Flags().GetInt64("bitrate")); bitrate > 0 {
			params.MaxBitrate = lo.ToPtr(bitrate)
		}
		selectTracks(cmd, item, params)

		engine, err := player.New(viper.GetString(key.Player), viper.GetString(key.PlayerBinary))
		handleErr(err)
		defer util.Ignore(engine.Close)

		opts := playback.Options{
			PollInterval:     time.Duration(viper.GetInt(key.PlaybackPollInterval)) * time.Millisecond,
			ProgressInterval: time.Duration(viper.GetInt(key.PlaybackProgressInterval)) * time.Second,
			Outbox:           outbox.Default(),
		}
		if viper.GetBool(key.HistorySave) {
			opts.History = history.Store{}
		}

		session := playback.New(engine, newNegotiator(client), client, opts)

		erase := util.PrintErasable(fmt.Sprintf("%s Negotiating %s...", icon.Get(icon.Progress), style.Bold(item.Name)))
		res, err := session.Start(ctx, item, params)
		erase()
		handleErr(err)

		fmt.Printf("%s %s %s\n", icon.Get(icon.Play), style.Bold(item.Name), style.MethodTag(string(res.Playback.Method)))
		if params.StartPosition > 0 {
			fmt.Printf("%s Resuming at %s\n", icon.Get(icon.Resume), style.Fg(color.Yellow)(formatPosition(params.StartPosition)))
		}

		runCtx, quit := context.WithCancel(ctx)
		defer quit()

		if !lo.Must(cmd.Flags().GetBool("no-controls")) && term.IsTerminal(int(os.Stdin.Fd())) {
			go runControls(runCtx, session, quit)
		}

		handleErr(session.Run(runCtx))

		status := session.Status()
		if status.ResumeErr != nil {
			fmt.Printf("%s %s\n", icon.Get(icon.Fail), style.Faint("could not resume exactly, played from "+formatPosition(status.Resume.Target)))
		}
	},
}

func replayOutbox(ctx context.Context, client server.Reporter) {
	box := outbox.Default()
	if box.Size() == 0 {
		return
	}

	erase := util.PrintErasable(fmt.Sprintf("%s Sending %s...", icon.Get(icon.Progress), util.Quantify(box.Size(), "queued report", "queued reports")))
	defer erase()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, _ = box.Replay(ctx, client)
}

// startPosition resolves the resume target from the flags.
func startPosition(cmd *cobra.Command, item *media.Item) time.Duration {
	switch {
	case cmd.Flags().Changed("start"):
		return max(lo.Must(cmd.Flags().GetDuration("start")), 0)
	case lo.Must(cmd.Flags().GetBool("continue")):
		if record, ok := history.Find(item.ID).Get(); ok {
			return record.Position
		}
		return 0
	case lo.Must(cmd.Flags().GetBool("resume")):
		return item.SavedPosition()
	default:
		return 0
	}
}

// selectTracks applies the track flags, resolving language queries against the preferred source.
func selectTracks(cmd *cobra.Command, item *media.Item, params *media.Params) {
	params.AudioStreamIndex = lo.Must(cmd.Flags().GetInt("audio"))
	params.SubtitleStreamIndex = lo.Must(cmd.Flags().GetInt("subtitle"))

	src, ok := lo.Find(item.MediaSources, func(s media.Source) bool { return s.ID == params.MediaSourceID })
	if !ok {
		src, ok = stream.SelectBest(item.MediaSources).Get()
	}
	if !ok {
		return
	}

	lookup := func(flag string, t media.StreamType, index *int) {
		query := lo.Must(cmd.Flags().GetString(flag))
		if query == "" {
			return
		}
		if found, ok := media.FindStream(src.Streams, t, query).Get(); ok {
			*index = found.Index
			return
		}
		fmt.Printf("%s no %s track matches %q, using the default\n", icon.Get(icon.Fail), t, query)
	}

	lookup("audio-lang", media.StreamAudio, &params.AudioStreamIndex)
	lookup("subtitle-lang", media.StreamSubtitle, &params.SubtitleStreamIndex)
}

func formatPosition(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
