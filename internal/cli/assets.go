package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/resolve"
)

// AssetSummary is one index entry in list output.
type AssetSummary struct {
	Name       string `json:"name"`
	Candidates int    `json:"candidates"`
}

// ListResult is the list command payload.
type ListResult struct {
	Assets   []AssetSummary `json:"assets"`
	Packages []string       `json:"packages"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the indexed assets and the installed packages",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	pkgs, err := s.manager.Packages(ctx)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
	}
	idx, err := s.manager.Index(ctx)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
	}

	result := ListResult{Assets: []AssetSummary{}, Packages: []string{}}
	for _, e := range idx.Entries() {
		result.Assets = append(result.Assets, AssetSummary{Name: e.Name, Candidates: e.Len()})
	}
	for _, p := range pkgs {
		result.Packages = append(result.Packages, p.Name)
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}
	assets := make([]string, len(result.Assets))
	for i, a := range result.Assets {
		assets[i] = fmt.Sprintf("%s (%d)", a.Name, a.Candidates)
	}
	fmt.Fprintln(s.formatter.Writer, "Assets: "+strings.Join(assets, ", "))
	fmt.Fprintln(s.formatter.Writer, "Packages: "+strings.Join(result.Packages, ", "))
	return nil
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Package string
	Variant string
}

// ResolveResult is the resolve command payload.
type ResolveResult struct {
	Asset   string `json:"asset"`
	Name    string `json:"name"`
	Package string `json:"package"`
	Variant string `json:"variant"`
	Path    string `json:"path,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <asset> [variant [package]]",
		Short: "Print the fully-qualified name an asset resolves to",
		Long: `Resolve an asset to the fully-qualified name of exactly one mod.

Explicit package and variant constraints win over preferences. The flags
override the positional variant and package.`,
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Package, "package", "p", "", "package constraint")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant constraint")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	spec, err := resolve.ParseSpec(args...)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeInvalidArgs, ExitCommandError, err)
	}
	spec = spec.With(opts.Package, opts.Variant)

	mod, err := s.manager.Mod(cmd.Context(), spec)
	if err != nil {
		return outputError(s.formatter, err)
	}

	result := ResolveResult{
		Asset:   mod.Asset,
		Name:    mod.FullyQualifiedName(),
		Package: mod.PackageName(),
		Variant: mod.Variant,
		Path:    mod.Path(),
	}
	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}
	fmt.Fprintln(s.formatter.Writer, result.Name)
	return nil
}

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	*RootOptions
	Package string
	Variant string
	Local   bool
}

// SelectResult is the select command payload.
type SelectResult struct {
	Asset   string `json:"asset"`
	Package string `json:"package,omitempty"`
	Variant string `json:"variant,omitempty"`
	Global  bool   `json:"global"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "select <asset>",
		Short: "Set preferences for an asset",
		Long: `Record a package and/or variant preference for an asset.

Preferences are saved for this installation unless --local is given, in
which case they only apply to this invocation. Use __pkg or __variant as
the asset to set a default for every asset.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Package, "package", "p", "", "package preference for this asset")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant preference for this asset")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "do not persist the preference")

	return cmd
}

func runSelect(opts *SelectOptions, cmd *cobra.Command, assetName string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Select(assetName, !opts.Local, opts.Package, opts.Variant); err != nil {
		return outputCodeError(s.formatter, ErrCodeStore, ExitFailure, err)
	}

	result := SelectResult{Asset: assetName, Package: opts.Package, Variant: opts.Variant, Global: !opts.Local}
	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}
	scope := "global"
	if opts.Local {
		scope = "local"
	}
	fmt.Fprintf(s.formatter.Writer, "✓ Selected %s (%s)\n", formatPreference(assetName, opts.Package, opts.Variant), scope)
	return nil
}

// ShowResult is the show command payload.
type ShowResult struct {
	Asset      string          `json:"asset"`
	Preference *ShowPreference `json:"preference,omitempty"`
	Preferred  string          `json:"preferred,omitempty"`
	Modules    []ResolveResult `json:"modules"`
}

// ShowPreference is the effective preference of an asset.
type ShowPreference struct {
	Package string `json:"package,omitempty"`
	Variant string `json:"variant,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <asset>",
		Short:         "Print info on an asset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
}

func runShow(opts *RootOptions, cmd *cobra.Command, assetName string) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	idx, err := s.manager.Index(ctx)
	if err != nil {
		return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
	}
	entry, ok := idx.Entry(assetName)
	if !ok {
		return outputCodeError(s.formatter, ErrCodeUnknownAsset, ExitCommandError,
			&resolve.UnknownAssetError{Asset: assetName})
	}

	result := ShowResult{Asset: entry.Name, Modules: []ResolveResult{}}
	if pref, ok := s.manager.Preferences().Effective(entry.Name); ok {
		result.Preference = &ShowPreference{Package: pref.Package, Variant: pref.Variant}
		mod, err := s.manager.ResolvePreference(ctx, resolve.Spec{Asset: entry.Name})
		if err != nil {
			s.formatter.VerboseLog("preference cannot be honored: %v", err)
		} else if mod != nil {
			result.Preferred = mod.FullyQualifiedName()
		}
	}
	for _, mod := range entry.Mods {
		result.Modules = append(result.Modules, ResolveResult{
			Asset:   mod.Asset,
			Name:    mod.FullyQualifiedName(),
			Package: mod.PackageName(),
			Variant: mod.Variant,
			Path:    mod.Path(),
		})
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}
	w := s.formatter.Writer
	if result.Preference != nil {
		fmt.Fprintln(w, "Current preferences: "+formatPreference("", result.Preference.Package, result.Preference.Variant))
		preferred := result.Preferred
		if preferred == "" {
			preferred = "(none)"
		}
		fmt.Fprintln(w, "Current preferred module: "+preferred)
	}
	fmt.Fprintln(w, "Available modules:")
	for _, m := range result.Modules {
		fmt.Fprintln(w, "  * "+m.Name)
	}
	return nil
}

// TestResult is the outcome of resolving one asset.
type TestResult struct {
	Asset  string `json:"asset"`
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TestSummary is the test command payload.
type TestSummary struct {
	Passed  int          `json:"passed"`
	Total   int          `json:"total"`
	Results []TestResult `json:"results"`
}

// Test statuses, as printed in text output.
const (
	TestStatusOK    = "[OK]"
	StatusUnknown   = "[?]"
	StatusMulti     = "[MULTI]"
	StatusNone      = "[NONE]"
	StatusLookup    = "[X]"
	TestStatusError = "[ERROR]"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test [asset...]",
		Short: "Check that assets resolve under the current preferences",
		Long: `Resolve each asset (all indexed assets by default) and report whether it
settles on exactly one mod. Exits non-zero when any asset fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, cmd, args)
		},
	}
}

func runTest(opts *RootOptions, cmd *cobra.Command, assets []string) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	if len(assets) == 0 {
		idx, err := s.manager.Index(ctx)
		if err != nil {
			return outputCodeError(s.formatter, ErrCodeDiscovery, ExitCommandError, err)
		}
		assets = idx.Assets()
	}

	summary := TestSummary{Total: len(assets), Results: []TestResult{}}
	for _, name := range assets {
		r := TestResult{Asset: name, Status: TestStatusOK}
		fqn, err := s.manager.Resolve(ctx, resolve.Spec{Asset: name})
		switch {
		case err == nil:
			r.Name = fqn
			summary.Passed++
		case resolve.IsUnknownAsset(err):
			r.Status = StatusUnknown
		case resolve.IsTooManyMatches(err):
			r.Status = StatusMulti
		case resolve.IsNoMatches(err):
			r.Status = StatusNone
		case resolve.IsLookupError(err):
			r.Status = StatusLookup
		default:
			r.Status = TestStatusError
		}
		if err != nil {
			r.Error = err.Error()
		}
		summary.Results = append(summary.Results, r)
	}

	if s.isMain() {
		if s.formatter.Format == "json" {
			if err := s.formatter.Success(summary); err != nil {
				return err
			}
		} else {
			w := s.formatter.Writer
			for _, r := range summary.Results {
				fmt.Fprintln(w, r.Status, r.Asset)
				if s.formatter.Verbose && r.Error != "" {
					fmt.Fprintln(w, "  -- "+strings.ReplaceAll(r.Error, "\n", "\n     "))
				}
			}
			fmt.Fprintf(w, "Tests finished: %d out of %d passed\n", summary.Passed, summary.Total)
		}
	}

	if summary.Passed != summary.Total {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d assets failed to resolve", summary.Total-summary.Passed, summary.Total))
	}
	return nil
}

// formatPreference renders asset and its constraints as "Na pkg=A variant=0".
func formatPreference(assetName, pkg, variant string) string {
	parts := make([]string, 0, 3)
	if assetName != "" {
		parts = append(parts, assetName)
	}
	if pkg != "" {
		parts = append(parts, "pkg="+pkg)
	}
	if variant != "" {
		parts = append(parts, "variant="+variant)
	}
	return strings.Join(parts, " ")
}
