package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/reel-cli/reel/color"
	"github.com/reel-cli/reel/icon"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/playback"
	"github.com/reel-cli/reel/style"
	"github.com/samber/lo"
)

type controlKind int

const (
	controlAudio controlKind = iota + 1
	controlSubtitle
	controlQuality
	controlPause
	controlForward
	controlBackward
	controlInfo
	controlQuit
)

const defaultSeekStep = 10 * time.Second

type control struct {
	kind controlKind
	// seek step, or bitrate in bits per second
	amount int64
}

var errUnknownControl = errors.New("unknown command, see reel play --help")

func parseControl(line string) (control, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return control{}, errUnknownControl
	}

	arg := func() (int64, bool, error) {
		if len(fields) < 2 {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || n < 0 {
			return 0, false, fmt.Errorf("invalid number: %s", fields[1])
		}
		return n, true, nil
	}

	switch fields[0] {
	case "a":
		return control{kind: controlAudio}, nil
	case "s":
		return control{kind: controlSubtitle}, nil
	case "p":
		return control{kind: controlPause}, nil
	case "i":
		return control{kind: controlInfo}, nil
	case "x":
		return control{kind: controlQuit}, nil
	case "q":
		kbps, ok, err := arg()
		if err != nil {
			return control{}, err
		}
		if !ok {
			return control{}, errors.New("quality needs a value in kbps, q 0 removes the limit")
		}
		return control{kind: controlQuality, amount: kbps * 1000}, nil
	case "f", "b":
		step := int64(defaultSeekStep)
		sec, ok, err := arg()
		if err != nil {
			return control{}, err
		}
		if ok {
			step = int64(time.Duration(sec) * time.Second)
		}
		kind := controlForward
		if fields[0] == "b" {
			kind = controlBackward
		}
		return control{kind: kind, amount: step}, nil
	default:
		return control{}, errUnknownControl
	}
}

// runControls reads commands from stdin until ctx is done or the user quits.
func runControls(ctx context.Context, session *playback.Session, quit context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		c, err := parseControl(scanner.Text())
		if err != nil {
			printControlErr(err)
			continue
		}

		if c.kind == controlQuit {
			quit()
			return
		}

		printControlErr(applyControl(ctx, session, c))
	}
}

func applyControl(ctx context.Context, session *playback.Session, c control) error {
	switch c.kind {
	case controlAudio:
		index, ok, err := pickTrack(session, media.StreamAudio)
		if err != nil || !ok {
			return err
		}
		_, err = session.SwitchAudio(ctx, index)
		return err
	case controlSubtitle:
		index, ok, err := pickTrack(session, media.StreamSubtitle)
		if err != nil || !ok {
			return err
		}
		_, err = session.SwitchSubtitle(ctx, index)
		return err
	case controlQuality:
		_, err := session.SetMaxBitrate(ctx, c.amount)
		return err
	case controlPause:
		return session.TogglePause()
	case controlForward:
		return session.SeekBy(time.Duration(c.amount))
	case controlBackward:
		return session.SeekBy(-time.Duration(c.amount))
	case controlInfo:
		printStatus(session.Status())
	}
	return nil
}

// pickTrack asks for a track of type t. Subtitles offer a "none" entry mapped to NoIndex.
func pickTrack(session *playback.Session, t media.StreamType) (int, bool, error) {
	streams := session.Streams(t)
	if len(streams) == 0 && t != media.StreamSubtitle {
		return 0, false, fmt.Errorf("the source has no %s tracks", strings.ToLower(string(t)))
	}

	options := lo.Map(streams, func(s media.Stream, _ int) string {
		return fmt.Sprintf("#%d %s", s.Index, s)
	})
	if t == media.StreamSubtitle {
		options = append([]string{"None"}, options...)
	}

	var choice int
	err := survey.AskOne(&survey.Select{
		Message: "Pick " + strings.ToLower(string(t)) + " track",
		Options: options,
	}, &choice)
	if err != nil {
		return 0, false, err
	}

	if t == media.StreamSubtitle {
		if choice == 0 {
			return media.NoIndex, true, nil
		}
		choice--
	}
	return streams[choice].Index, true, nil
}

func printStatus(s playback.Status) {
	line := func(name, value string) {
		fmt.Printf("  %s %s\n", style.Faint(fmt.Sprintf("%-12s", name)), value)
	}

	fmt.Println(style.Bold(s.Title))
	line("State", s.State.String())
	line("Position", formatPosition(s.Position)+" / "+formatPosition(s.Duration))
	line("Method", style.MethodTag(string(s.Method)))
	line("Session", s.PlaySessionID)
	line("Source", s.SourceID)
	if s.MaxBitrate > 0 {
		line("Bitrate", fmt.Sprintf("%d kbps", s.MaxBitrate/1000))
	}
	if s.Resume.InProgress {
		line("Resume", fmt.Sprintf("%s to %s, attempt %d", s.Resume.State, formatPosition(s.Resume.Target), s.Resume.Attempts))
	}
	if s.Resume.Offset > 0 {
		line("Offset", formatPosition(s.Resume.Offset))
	}
	if s.ResumeErr != nil {
		line("Resume", style.Fg(color.Red)(s.ResumeErr.Error()))
	}
}

func printControlErr(err error) {
	if err != nil {
		fmt.Printf("%s %s\n", icon.Get(icon.Fail), err)
	}
}
