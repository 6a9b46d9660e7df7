package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
)

func runAlign(cmd *cobra.Command, _ []string) error {
	rttmPath, _ := cmd.Flags().GetString("rttm")
	transcriptPath, _ := cmd.Flags().GetString("transcript")
	names, _ := cmd.Flags().GetString("speakers")
	out, _ := cmd.Flags().GetString("out")

	f, err := os.Open(rttmPath)
	if err != nil {
		return err
	}
	defer f.Close()
	intervals, err := alignment.ParseRTTM(f)
	if err != nil {
		return fmt.Errorf("rttm: %w", err)
	}

	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return err
	}
	transcript, err := transcription.ParseWhisperOutput(data)
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	if len(transcript.Segments) == 0 {
		return fmt.Errorf("transcript: no timestamped segments in %s", transcriptPath)
	}

	merged := alignment.Align(transcript.Segments, intervals, alignment.SplitNames(names))
	if out == "" {
		return alignment.WriteMerged(cmd.OutOrStdout(), merged)
	}
	if err := storage.NewLocalStorage("").WriteFile(out, []byte(alignment.FormatMerged(merged))); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d speaker turns to %s\n", len(merged), out)
	return nil
}

func runSpeakers(cmd *cobra.Command, _ []string) error {
	rttmPath, _ := cmd.Flags().GetString("rttm")

	f, err := os.Open(rttmPath)
	if err != nil {
		return err
	}
	defer f.Close()
	groups, err := alignment.GroupBySpeaker(f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPEAKER\tINTERVALS\tSPEAKING TIME")
	for _, g := range groups {
		var total float64
		for _, iv := range g.Intervals {
			total += iv.End - iv.Start
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2fs\n", g.Speaker, len(g.Intervals), total)
	}
	return tw.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	segments, err := alignment.ReadMerged(f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(alignment.ComputeStats(segments))
}

func runDriveAuth(cmd *cobra.Command, _ []string) error {
	credentials, _ := cmd.Flags().GetString("credentials")
	token, _ := cmd.Flags().GetString("token")
	return storage.AuthorizeDrive(cmd.Context(), credentials, token, cmd.InOrStdin(), cmd.OutOrStdout())
}
