package version

import (
	"fmt"
	"io"
	"os"

	"github.com/reel-cli/reel/color"
	"github.com/reel-cli/reel/constant"
	"github.com/reel-cli/reel/icon"
	"github.com/reel-cli/reel/key"
	"github.com/reel-cli/reel/style"
	"github.com/reel-cli/reel/util"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// Notify prints an upgrade hint to stderr when a newer stable release exists,
// so that machine-readable output on stdout stays clean.
func Notify() {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	erase := util.PrintErasable(fmt.Sprintf("%s Checking for a newer reel release...", icon.Get(icon.Progress)))
	latest, err := Latest()
	erase()
	if err != nil {
		return
	}

	Notice(latest, constant.Version).ForEach(func(text string) {
		_, _ = io.WriteString(os.Stderr, text)
	})
}

// Notice renders the upgrade hint for latest, if it is a stable release newer than current.
// Unparseable tags yield nothing.
func Notice(latest, current string) mo.Option[string] {
	l, err := Parse(latest)
	if err != nil || l.Prerelease() {
		return mo.None[string]()
	}

	c, err := Parse(current)
	if err != nil || l.compare(c) <= 0 {
		return mo.None[string]()
	}

	return mo.Some(fmt.Sprintf(`
%s reel %s is out %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(l.String()),
		style.Faint(fmt.Sprintf("(running %s)", current)),
		style.Faint("https://github.com/"+constant.Repository+"/releases/tag/v"+l.String()),
	))
}
