package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/reel-cli/reel/color"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/negotiate"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(negotiateCmd)

	negotiateCmd.Flags().BoolP("json", "j", false, "Print the report as JSON")
	negotiateCmd.Flags().Duration("start", 0, "Resume position to negotiate")
	negotiateCmd.Flags().Int("audio", media.NoIndex, "Audio stream index")
	negotiateCmd.Flags().Int("subtitle", media.NoIndex, "Subtitle stream index")
	negotiateCmd.Flags().Int64("bitrate", 0, "Maximum streaming bitrate in bits per second")
	negotiateCmd.Flags().String("source", "", "Media source id")

	negotiateCmd.AddCommand(negotiateSchemaCmd)
}

var negotiateCmd = &cobra.Command{
	Use:   "negotiate <item id>",
	Short: "Show how an item would be played",
	Long:  "Run playback negotiation for an item and print the chosen source, method and stream URL without playing it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		handleErr(err)

		ctx := cmd.Context()
		item, err := client.Item(ctx, args[0])
		handleErr(err)

		params := media.NewParams(item.ID)
		params.StartPosition = max(lo.Must(cmd.Flags().GetDuration("start")), 0)
		params.AudioStreamIndex = lo.Must(cmd.Flags().GetInt("audio"))
		params.SubtitleStreamIndex = lo.Must(cmd.Flags().GetInt("subtitle"))
		params.MediaSourceID = lo.Must(cmd.Flags().GetString("source"))
		if bitrate := lo.Must(cmd.Flags().GetInt64("bitrate")); bitrate > 0 {
			params.MaxBitrate = lo.ToPtr(bitrate)
		}

		res, err := newNegotiator(client).Negotiate(ctx, item, params)
		handleErr(err)

		// negotiation may have started a transcode, close it
		_ = client.ReportStopped(ctx, res.Report(params, params.StartPosition, false))

		redacted := *res
		playback := *res.Playback
		playback.URL = server.Redact(playback.URL)
		redacted.Playback = &playback

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(&redacted))
			return
		}

		printNegotiation(item, &redacted)
	},
}

func printNegotiation(item *media.Item, res *negotiate.Result) {
	line := func(name, value string) {
		fmt.Printf("  %s %s\n", style.Faint(fmt.Sprintf("%-14s", name)), value)
	}

	fmt.Println(style.Bold(item.Name) + " " + style.MethodTag(string(res.Playback.Method)))
	line("Source", fmt.Sprintf("%s (%s)", res.Source.ID, res.Source.Container))
	line("Play session", res.PlaySessionID)
	line("URL", style.Fg(color.Cyan)(res.Playback.URL))
	line("Adaptive", fmt.Sprint(res.Playback.Adaptive))
	if res.ResumeTarget > 0 {
		line("Resume", formatPosition(res.ResumeTarget))
	}
	if res.ClientFallback {
		line("Fallback", style.Fg(color.Yellow)("server may ignore the start position, resuming client side"))
	}

	for _, t := range []media.StreamType{media.StreamVideo, media.StreamAudio, media.StreamSubtitle} {
		streams := res.Source.StreamsOf(t)
		if len(streams) == 0 {
			continue
		}
		line(string(t), strings.Join(lo.Map(streams, func(s media.Stream, _ int) string {
			return fmt.Sprintf("#%d %s", s.Index, s)
		}), ", "))
	}
}

var negotiateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the negotiate --json output",
	Run: func(cmd *cobra.Command, args []string) {
		reflector := new(jsonschema.Reflector)
		reflector.Anonymous = true
		reflector.Namer = func(t reflect.Type) string {
			switch strings.ToLower(t.Name()) {
			case "source", "result", "stream":
				return t.PkgPath()[strings.LastIndex(t.PkgPath(), "/")+1:] + "." + t.Name()
			}
			return t.Name()
		}

		handleErr(json.NewEncoder(os.Stdout).Encode(reflector.Reflect(&negotiate.Result{})))
	},
}
