package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/asset"
)

// ColorPackage is the package name highlight, green as in success output.
const ColorPackage = lipgloss.Color("#10B981")

// PackageInfo is one package in show-pkg output.
type PackageInfo struct {
	Name     string          `json:"name"`
	Location string          `json:"location"`
	Builtin  bool            `json:"builtin,omitempty"`
	Modules  []ResolveResult `json:"modules"`
}

// NewShowPkgCommand creates the show-pkg command.
func NewShowPkgCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show-pkg <package>",
		Short: "Print info on a package",
		Long: `Print the location and mods of every package whose name contains the
given text.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowPkg(rootOpts, cmd, args[0])
		},
	}
}

func runShowPkg(opts *RootOptions, cmd *cobra.Command, query string) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	pkgs, err := s.manager.Packages(cmd.Context())
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
	}

	query = asset.NormalizeName(query)
	infos := []PackageInfo{}
	for _, p := range pkgs {
		if !strings.Contains(p.Name, query) {
			continue
		}
		info := PackageInfo{Name: p.Name, Location: p.Root, Builtin: p.Builtin, Modules: []ResolveResult{}}
		for _, m := range p.Mods {
			info.Modules = append(info.Modules, ResolveResult{
				Asset:   m.Asset,
				Name:    m.FullyQualifiedName(),
				Package: p.Name,
				Variant: m.Variant,
				Path:    m.Path(),
			})
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return outputCodeError(s.formatter, ErrCodeNotFound, ExitCommandError,
			fmt.Errorf("unknown package %q", query))
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(infos)
	}
	writePackages(s.formatter.Writer, infos)
	return nil
}

// writePackages renders infos with the package names highlighted when w
// is a color terminal.
func writePackages(w io.Writer, infos []PackageInfo) {
	r := lipgloss.NewRenderer(w)
	nameStyle := r.NewStyle().Bold(true).Foreground(ColorPackage)

	for _, info := range infos {
		fmt.Fprintln(w, "Package: "+nameStyle.Render(info.Name))
		fmt.Fprintln(w, "=====")
		fmt.Fprintln(w, "Location: "+info.Location)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Available modules:")
		for _, m := range info.Modules {
			if m.Path == "" {
				fmt.Fprintf(w, "  * %s (builtin)\n", m.Name)
				continue
			}
			fmt.Fprintf(w, "  * %s = %s\n", m.Name, m.Path)
		}
		fmt.Fprintln(w)
	}
}
