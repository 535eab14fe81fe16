package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recent builds, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of builds to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	builds, err := s.manager.Builds(cmd.Context(), opts.Limit)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(builds)
	}
	if len(builds) == 0 {
		fmt.Fprintln(s.formatter.Writer, "No builds recorded")
		return nil
	}
	writeBuilds(s.formatter, builds)
	return nil
}

func writeBuilds(formatter *OutputFormatter, builds []store.Build) {
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tTARGET\tSTATUS\tERROR")
	for _, b := range builds {
		msg := b.Error
		if i := strings.IndexByte(msg, '\n'); i >= 0 && !formatter.Verbose {
			msg = msg[:i]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.Seq, b.ID, b.Target, b.Status, msg)
	}
	tw.Flush()
}
