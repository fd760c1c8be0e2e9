package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/reel-cli/reel/history"
	"github.com/reel-cli/reel/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolP("json", "j", false, "Print as JSON")
	historyCmd.Flags().String("remove", "", "Forget the position of an item")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved playback positions",
	Run: func(cmd *cobra.Command, args []string) {
		if id := lo.Must(cmd.Flags().GetString("remove")); id != "" {
			handleErr(history.Remove(id))
			success("forgot %s", id)
			return
		}

		saved, err := history.Get()
		handleErr(err)

		records := lo.Values(saved)
		sort.Slice(records, func(i, j int) bool {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		})

		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(os.Stdout).Encode(records))
			return
		}

		if len(records) == 0 {
			fmt.Println(style.Faint("nothing saved yet"))
			return
		}

		for _, r := range records {
			fmt.Printf("%s %s %s\n",
				style.Bold(r.Name),
				style.Faint(r.ItemID),
				fmt.Sprintf("%s / %s (%.0f%%)", formatPosition(r.Position), formatPosition(r.Duration), r.Progress()*100),
			)
		}
	},
}
