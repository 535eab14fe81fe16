package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/manifest"
)

// PkgResult is the payload of the pkg commands.
type PkgResult struct {
	Package  string   `json:"package"`
	Root     string   `json:"root"`
	Manifest string   `json:"manifest,omitempty"`
	Mods     []string `json:"mods"`
}

// NewPkgCommand creates the pkg command group for package authors.
func NewPkgCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkg",
		Short: "Author glia packages of NMODL files",
	}

	cmd.AddCommand(newPkgNewCommand(rootOpts))
	cmd.AddCommand(newPkgAddCommand(rootOpts))
	cmd.AddCommand(newPkgCheckCommand(rootOpts))

	return cmd
}

func newPkgNewCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new glia package",
		Long: `Create a package directory with an empty glia.yaml manifest and a mods
directory. The directory defaults to ./<name>.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(cmd, rootOpts)
			name := args[0]
			if dir == "" {
				dir = name
			}

			m, err := manifest.Create(dir, name)
			if err != nil {
				return outputCodeError(formatter, ErrCodeManifest, ExitCommandError, err)
			}
			root := filepath.Dir(m.File)
			if formatter.Format == "json" {
				return formatter.Success(PkgResult{Package: m.Name, Root: root, Manifest: m.File, Mods: []string{}})
			}
			fmt.Fprintf(formatter.Writer, "✓ Created package %s in %s\n", m.Name, root)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "package directory (default ./<name>)")
	return cmd
}

func newPkgAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		root string
		opts manifest.AddOptions
	)
	cmd := &cobra.Command{
		Use:   "add <source>",
		Short: "Add a mod file to a package",
		Long: `Copy a mod file into the package and declare it in glia.yaml.

Without --target the file is stored as mods/<name>__<variant>.mod. An
existing file is only replaced with --overwrite.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(cmd, rootOpts)

			abs, err := filepath.Abs(root)
			if err != nil {
				return outputCodeError(formatter, ErrCodeInvalidArgs, ExitCommandError, err)
			}
			m, err := manifest.Load(abs)
			if err != nil {
				return outputCodeError(formatter, ErrCodeManifest, ExitCommandError, err)
			}
			decl, err := m.AddMod(abs, args[0], opts)
			if err != nil {
				return outputCodeError(formatter, ErrCodeManifest, ExitCommandError, err)
			}

			fqn := asset.FullyQualifiedName(m.Name, decl.Asset, decl.Variant)
			if formatter.Format == "json" {
				return formatter.Success(PkgResult{Package: m.Name, Root: abs, Manifest: m.File, Mods: []string{fqn}})
			}
			fmt.Fprintf(formatter.Writer, "✓ Added %s as %s\n", fqn, decl.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Asset, "name", "n", "", "asset name of the mod (required)")
	cmd.Flags().StringVar(&opts.Variant, "variant", asset.DefaultVariant, "variant name")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "restrict the mod to a dialect (neuron|arbor)")
	cmd.Flags().BoolVar(&opts.PointProcess, "point-process", false, "the mod declares a point process")
	cmd.Flags().BoolVar(&opts.ArtificialCell, "artificial-cell", false, "the mod declares an artificial cell")
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "destination inside the package (default mods/)")
	cmd.Flags().BoolVarP(&opts.Overwrite, "overwrite", "w", false, "replace an existing mod file")
	cmd.Flags().StringVar(&root, "root", ".", "package root")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPkgCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Check a package for integrity problems",
		Long: `Validate the manifest of a package and verify that every declared mod file
exists. The directory defaults to the current one.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(cmd, rootOpts)
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			pkg, err := manifest.Check(dir)
			if err != nil {
				return outputCodeError(formatter, ErrCodeManifest, ExitFailure, err)
			}

			result := PkgResult{Package: pkg.Name, Root: pkg.Root, Mods: []string{}}
			for _, m := range pkg.Mods {
				result.Mods = append(result.Mods, m.FullyQualifiedName())
			}
			if formatter.Format == "json" {
				return formatter.Success(result)
			}
			fmt.Fprintf(formatter.Writer, "✓ Package %s is consistent (%d mods)\n", pkg.Name, len(pkg.Mods))
			if len(result.Mods) > 0 {
				fmt.Fprintln(formatter.Writer, "Mods: "+strings.Join(result.Mods, ", "))
			}
			return nil
		},
	}
}
