package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// PackageFreshness reports the cache state of one package.
type PackageFreshness struct {
	Name  string `json:"name"`
	Fresh bool   `json:"fresh"`
}

// FreshResult is the cache fresh payload.
type FreshResult struct {
	Fresh    bool               `json:"fresh"`
	Packages []PackageFreshness `json:"packages"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the build cache",
	}

	cmd.AddCommand(newCacheClearCommand(rootOpts))
	cmd.AddCommand(newCacheDumpCommand(rootOpts))
	cmd.AddCommand(newCacheFreshCommand(rootOpts))
	cmd.AddCommand(newCacheImportCommand(rootOpts))

	return cmd
}

func newCacheClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Forget every recorded hash so the next build runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.ClearCache(cmd.Context()); err != nil {
				return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
			}
			if s.formatter.Format == "json" {
				return s.formatter.Success(map[string]bool{"cleared": true})
			}
			fmt.Fprintln(s.formatter.Writer, "✓ Cache cleared")
			return nil
		},
	}
}

func newCacheDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dump",
		Short:         "Print the cache record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			if s.formatter.Format == "json" {
				rec, err := s.manager.Store().Read(ctx)
				if err != nil {
					return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
				}
				return s.formatter.Success(rec)
			}
			if err := s.manager.Store().Export(ctx, s.formatter.Writer); err != nil {
				return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
			}
			return nil
		},
	}
}

func newCacheFreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fresh",
		Short: "Report whether each package matches its recorded hash",
		Long: `Report whether each package's sources match the hashes recorded at the last
successful compilation. Exits non-zero when the library cache is stale.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			pkgs, err := s.manager.Packages(ctx)
			if err != nil {
				return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
			}

			result := FreshResult{Fresh: true, Packages: []PackageFreshness{}}
			for _, p := range pkgs {
				fresh := s.manager.Store().IsFresh(ctx, p)
				result.Fresh = result.Fresh && fresh
				result.Packages = append(result.Packages, PackageFreshness{Name: p.Name, Fresh: fresh})
			}

			if s.formatter.Format == "json" {
				if err := s.formatter.Success(result); err != nil {
					return err
				}
			} else {
				for _, p := range result.Packages {
					fmt.Fprintf(s.formatter.Writer, "%s: %s\n", p.Name, freshness(p.Fresh))
				}
				fmt.Fprintln(s.formatter.Writer, "Library cache: "+freshness(result.Fresh))
			}
			if !result.Fresh {
				return NewExitError(ExitFailure, "library cache is stale")
			}
			return nil
		},
	}
}

func newCacheImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the cache record with a dumped one",
		Long: `Replace the cache record with one written by "glia cache dump". The
current record is kept if the file cannot be decoded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return outputCodeError(s.formatter, ErrCodeInvalidArgs, ExitCommandError, err)
			}
			defer f.Close()

			if err := s.manager.Store().Import(cmd.Context(), f); err != nil {
				return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
			}
			if s.formatter.Format == "json" {
				return s.formatter.Success(map[string]string{"imported": args[0]})
			}
			fmt.Fprintln(s.formatter.Writer, "✓ Cache imported from "+args[0])
			return nil
		},
	}
}

func freshness(fresh bool) string {
	if fresh {
		return "fresh"
	}
	return "stale"
}
