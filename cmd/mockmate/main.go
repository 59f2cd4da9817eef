package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "mockmate",
		Short: "Real-time interview rehearsal with an AI coach",
		Long: "mockmate runs live mock interviews: it streams your microphone and camera\n" +
			"to a remote coach, plays the coach's voice back, shows feedback cues, and\n" +
			"grades the session afterwards.",
		SilenceUsage: true,
	}
	root.AddCommand(newPracticeCmd())
	root.AddCommand(newStatsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
