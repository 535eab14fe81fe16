package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/glia"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Force bool
}

// CompileResult is the compile command payload.
type CompileResult struct {
	UpToDate  bool     `json:"up_to_date"`
	Mods      []string `json:"mods"`
	Libraries []string `json:"libraries"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the NEURON mechanism library",
		Long: `Compile the mods of every installed package into one NEURON library.

The build is skipped while no package changed since the last successful
compilation, unless --force is given. With GLIA_NOCOMPILE set the compiler
is not run but the package hashes are still recorded.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "compile even when the cache is fresh")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	pkgs, err := s.manager.Packages(ctx)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
	}

	result := CompileResult{Mods: []string{}, Libraries: s.manager.Libraries()}
	if result.Libraries == nil {
		result.Libraries = []string{}
	}
	for _, p := range pkgs {
		if p.Builtin {
			continue
		}
		for _, m := range p.EffectiveMods(asset.DialectNeuron) {
			result.Mods = append(result.Mods, m.FullyQualifiedName())
		}
	}
	result.UpToDate = !opts.Force && s.manager.IsCacheFresh(ctx)

	if !result.UpToDate && s.isMain() && s.formatter.Format != "json" {
		fmt.Fprintln(s.formatter.Writer, "glia is compiling...")
	}
	if err := s.manager.Compile(ctx, !opts.Force); err != nil {
		return outputBuildError(s, err)
	}
	if !s.isMain() {
		return nil
	}

	if s.formatter.Format == "json" {
		return s.formatter.BuildSuccess(s.manager.LastBuildID(), result)
	}
	w := s.formatter.Writer
	if result.UpToDate {
		fmt.Fprintln(w, "✓ Library is up to date")
	} else {
		fmt.Fprintln(w, "✓ Compilation complete")
	}
	if len(result.Mods) > 0 {
		fmt.Fprintln(w, "Compiled assets: "+strings.Join(result.Mods, ", "))
	}
	return nil
}

// BuildCommandOptions holds flags for the build command.
type BuildCommandOptions struct {
	*RootOptions
	Debug bool
	GPU   string
	Force bool
}

// BuildResult is the build command payload.
type BuildResult struct {
	Package string `json:"package"`
	Path    string `json:"path"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildCommandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <package>",
		Short: "Build the arbor catalogue of a package",
		Long: `Build the arbor mechanism catalogue of a package.

A catalogue built from the same sources with the same toolchain is reused
unless --force is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Debug, "debug", "d", false, "keep the build directory (implies --verbose)")
	cmd.Flags().StringVar(&opts.GPU, "gpu", "", "GPU backend to build for (e.g. cuda)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "rebuild even when the catalogue is fresh")

	return cmd
}

func runBuild(opts *BuildCommandOptions, cmd *cobra.Command, name string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	path, err := s.manager.BuildCatalogue(cmd.Context(), name, glia.BuildOptions{
		Verbose: s.cfg.Verbose,
		Debug:   opts.Debug,
		GPU:     opts.GPU,
		Force:   opts.Force,
	})
	if err != nil {
		return outputBuildError(s, err)
	}
	if !s.isMain() {
		return nil
	}

	result := BuildResult{Package: asset.NormalizeName(name), Path: path}
	if s.formatter.Format == "json" {
		return s.formatter.BuildSuccess(s.manager.LastBuildID(), result)
	}
	fmt.Fprintln(s.formatter.Writer, "✓ Catalogue built: "+result.Path)
	return nil
}

// outputBuildError reports a build failure on the main participant only;
// followers exit with the same code and error.
func outputBuildError(s *session, err error) error {
	if s.isMain() {
		return outputError(s.formatter, err)
	}
	code, exit := classify(err)
	return WrapExitError(exit, code, err)
}
