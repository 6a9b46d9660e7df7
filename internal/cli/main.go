// Package cli implements convmerge, the offline companion of the server: it
// aligns stage outputs on disk without a running service.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the convmerge command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "convmerge",
		Short:         "Align diarization and transcription outputs into speaker turns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	align := &cobra.Command{
		Use:   "align",
		Short: "Merge an RTTM file and a transcript JSON into speaker turns",
		Args:  cobra.NoArgs,
		RunE:  runAlign,
	}
	align.Flags().String("rttm", "", "Diarization RTTM file")
	align.Flags().String("transcript", "", "Transcript JSON (whisper output or raw transcript)")
	align.Flags().String("speakers", "", "Comma-separated names, in order of first appearance")
	align.Flags().String("out", "", "Write the merged transcript here instead of stdout")
	_ = align.MarkFlagRequired("rttm")
	_ = align.MarkFlagRequired("transcript")

	speakers := &cobra.Command{
		Use:   "speakers",
		Short: "List the speakers of an RTTM file with their speaking time",
		Args:  cobra.NoArgs,
		RunE:  runSpeakers,
	}
	speakers.Flags().String("rttm", "", "Diarization RTTM file")
	_ = speakers.MarkFlagRequired("rttm")

	stats := &cobra.Command{
		Use:   "stats <merged_transcript.txt>",
		Short: "Print speaking statistics of a merged transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	driveAuth := &cobra.Command{
		Use:   "drive-auth",
		Short: "Authorize Google Drive export and cache the OAuth token",
		Args:  cobra.NoArgs,
		RunE:  runDriveAuth,
	}
	driveAuth.Flags().String("credentials", "config/credentials.json", "OAuth client credentials file")
	driveAuth.Flags().String("token", "config/token.json", "Where to cache the token")

	root.AddCommand(align, speakers, stats, driveAuth)
	return root
}
