package main

import (
	"github.com/reel-cli/reel/cmd"
	"github.com/reel-cli/reel/config"
	"github.com/reel-cli/reel/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
