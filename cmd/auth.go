package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/reel-cli/reel/auth"
	"github.com/reel-cli/reel/color"
	"github.com/reel-cli/reel/icon"
	"github.com/reel-cli/reel/style"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetTokenCmd, authClearCmd, authStatusCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the media server access token",
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store an access token in the system keyring",
	Long:  "Store an access token in the system keyring. Without an argument the token is read from a hidden prompt.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			handleErr(survey.AskOne(&survey.Password{Message: "Access token"}, &token))
		}

		token = strings.TrimSpace(token)
		if token == "" {
			handleErr(errors.New("token is empty"))
		}

		handleErr(auth.SetToken(token))
		fmt.Printf("%s token saved\n", style.Fg(color.Green)(icon.Get(icon.Success)))
	},
}

var authClearCmd = &cobra.Command{
	Use:     "clear",
	Aliases: []string{"logout"},
	Short:   "Remove the stored access token",
	Run: func(cmd *cobra.Command, args []string) {
		if !auth.HasToken() {
			fmt.Println(style.Faint("no token stored"))
			return
		}

		handleErr(auth.DeleteToken())
		fmt.Printf("%s token removed\n", style.Fg(color.Green)(icon.Get(icon.Success)))
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored and the device id",
	Run: func(cmd *cobra.Command, args []string) {
		if auth.HasToken() {
			fmt.Printf("%s token stored\n", style.Fg(color.Green)(icon.Get(icon.Success)))
		} else {
			fmt.Printf("%s no token stored\n", style.Fg(color.Red)(icon.Get(icon.Fail)))
		}

		id, err := auth.DeviceID()
		handleErr(err)
		fmt.Printf("%s %s\n", style.Faint("device"), id)
	},
}
