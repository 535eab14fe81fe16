package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/config"
	"github.com/roach88/glia/internal/coord"
	"github.com/roach88/glia/internal/glia"
	"github.com/roach88/glia/internal/manifest"
	"github.com/roach88/glia/internal/toolchain"
)

// session is the state one command invocation works with.
type session struct {
	cfg       *config.Config
	manager   *glia.Manager
	formatter *OutputFormatter
	logger    *slog.Logger

	closers []func() error
}

// newFormatter creates the formatter for cmd. Diagnostics go to stderr
// so JSON output stays parseable.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

// openSession loads the configuration and opens the Manager. Errors are
// already reported through the formatter.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()
	formatter := newFormatter(cmd, opts)

	cfg, err := config.Load(ctx, config.LoadOptions{
		ConfigFile: opts.ConfigFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, outputCodeError(formatter, ErrCodeConfig, ExitCommandError, err)
	}
	formatter.Verbose = cfg.Verbose

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	s := &session{cfg: cfg, formatter: formatter, logger: logger}

	tc := toolchain.FromConfig(cfg.Toolchain, logger)
	if cfg.Verbose {
		tc.Output = cmd.ErrOrStderr()
	}
	managerOpts := []glia.Option{
		glia.WithLogger(logger),
		glia.WithDiscoverer(&manifest.DirDiscoverer{Dirs: cfg.PackageDirs, Logger: logger}),
		glia.WithCompiler(tc),
		glia.WithToolchain(tc),
	}

	if cfg.Fleet.Size > 1 {
		comm, err := coord.Connect(ctx, coord.Settings{
			Rank: cfg.Fleet.Rank,
			Size: cfg.Fleet.Size,
			Addr: cfg.Fleet.Addr,
		})
		if err != nil {
			return nil, outputCodeError(formatter, ErrCodeGeneric, ExitCommandError, err)
		}
		s.closers = append(s.closers, comm.Close)
		managerOpts = append(managerOpts, glia.WithComm(comm))
		formatter.VerboseLog("joined fleet as rank %d of %d", cfg.Fleet.Rank, cfg.Fleet.Size)
	}

	managerOpts = append(managerOpts, opts.ManagerOptions...)
	m, err := glia.New(cfg, managerOpts...)
	if err != nil {
		s.Close()
		return nil, outputCodeError(formatter, ErrCodeStore, ExitCommandError, err)
	}
	s.manager = m
	s.closers = append(s.closers, m.Close)
	return s, nil
}

// Close releases the Manager and the fleet connection, newest first.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// isMain reports whether this process prints results. In a fleet only
// rank 0 does.
func (s *session) isMain() bool {
	return s.manager.IsMain()
}
