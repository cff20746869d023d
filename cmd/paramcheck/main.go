package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/unbound-force/paramcheck/internal/analysis"
	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/report"
	"github.com/unbound-force/paramcheck/internal/scaffold"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/watch"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

// errProblemsFound is returned when the analysis reports errors. The
// report has already been written, so main only sets the exit status.
var errProblemsFound = errors.New("problems found")

// isTerminal reports whether stdout is a terminal.
var isTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	var verbose bool
	root := &cobra.Command{
		Use:   "paramcheck",
		Short: "paramcheck: static checks for pytest parametrization and fixtures",
		Long: `paramcheck reads a pytest project without running it and checks
that every parametrized test receives values of the declared types,
that every test argument is provided by a parametrization or a fixture,
and that fixtures are declared and requested consistently.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(charmlog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newCheckCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newCodesCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newInitCmd())

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errProblemsFound) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// checkParams holds the parsed flags for the check command.
type checkParams struct {
	root        string
	format      string
	configPath  string
	test        string
	disable     []string
	showSource  bool
	showTest    bool
	interactive bool
	stdout      io.Writer
	stderr      io.Writer
}

func validFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return nil
}

func parseCodes(names []string) ([]taxonomy.Code, error) {
	codes := make([]taxonomy.Code, 0, len(names))
	for _, name := range names {
		code := taxonomy.Code(name)
		if _, ok := taxonomy.Lookup(code); !ok {
			return nil, fmt.Errorf("unknown diagnostic code %q (see paramcheck codes)", name)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// analysisOptions loads both configuration layers and resolves the
// output format: the flag wins over the configuration file.
func analysisOptions(p checkParams) (analysis.Options, string, error) {
	cfg, err := config.Find(p.root, p.configPath)
	if err != nil {
		return analysis.Options{}, "", err
	}
	format := p.format
	if format == "" {
		format = cfg.Format
	}
	if err := validFormat(format); err != nil {
		return analysis.Options{}, "", err
	}
	disable, err := parseCodes(p.disable)
	if err != nil {
		return analysis.Options{}, "", err
	}
	return analysis.Options{
		Config:     cfg,
		TestFilter: p.test,
		Disable:    disable,
		Version:    version,
		Logger:     logger,
	}, format, nil
}

// runCheck is the extracted, testable body of the check command.
func runCheck(ctx context.Context, p checkParams) error {
	opts, format, err := analysisOptions(p)
	if err != nil {
		return err
	}
	if p.interactive && !isTerminal() {
		return errors.New("interactive mode requires a terminal")
	}
	fw, err := config.LoadFramework(p.root)
	if err != nil {
		return err
	}
	opts.Framework = fw

	logger.Info("analyzing project", "root", p.root)
	result, err := analysis.LoadAndAnalyze(ctx, p.root, nil, opts)
	if err != nil {
		return err
	}
	if p.test != "" && result.Metadata.TestsAnalyzed == 0 {
		return fmt.Errorf("test %q not found in %q", p.test, p.root)
	}
	logger.Info("analysis complete",
		"files", result.Metadata.FilesAnalyzed,
		"tests", result.Metadata.TestsAnalyzed,
		"diagnostics", len(result.Diagnostics))

	if p.interactive {
		if err := runInteractiveCheck(result); err != nil {
			return err
		}
	} else if err := writeResult(p.stdout, format, result, p); err != nil {
		return err
	}

	if result.Summary.Errors > 0 {
		return errProblemsFound
	}
	return nil
}

func writeResult(w io.Writer, format string, result *taxonomy.Result, p checkParams) error {
	switch format {
	case "json":
		return report.WriteJSON(w, result)
	default:
		return report.WriteTextOptions(w, result, report.TextOptions{
			ShowSource: p.showSource,
			ShowTest:   p.showTest,
		})
	}
}

func rootArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func newCheckCmd() *cobra.Command {
	var p checkParams

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Check the tests of a pytest project",
		Long: `Analyze every test module, conftest and plugin module under dir
(default: the current directory) and report parametrization and
fixture problems. Exits with status 1 when any error is reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.root = rootArg(args)
			p.stdout = os.Stdout
			p.stderr = os.Stderr
			return runCheck(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVar(&p.format, "format", "",
		"output format: text or json (default from config, else text)")
	cmd.Flags().StringVar(&p.configPath, "config", "",
		"path to the configuration file (default: "+config.FileName+" in dir)")
	cmd.Flags().StringVar(&p.test, "test", "",
		"check only tests with this function name")
	cmd.Flags().StringSliceVar(&p.disable, "disable", nil,
		"diagnostic codes to suppress, comma separated")
	cmd.Flags().BoolVar(&p.showSource, "show-source", false,
		"quote the source line of each diagnostic")
	cmd.Flags().BoolVar(&p.showTest, "show-test", false,
		"show the test or fixture each diagnostic was found in")
	cmd.Flags().BoolVarP(&p.interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")

	return cmd
}

// watchParams holds the parsed flags for the watch command.
type watchParams struct {
	checkParams
	debounce time.Duration
}

// runWatch is the extracted, testable body of the watch command. It
// returns when ctx is done.
func runWatch(ctx context.Context, p watchParams) error {
	opts, format, err := analysisOptions(p.checkParams)
	if err != nil {
		return err
	}
	logger.Info("watching project", "root", p.root)
	return watch.Watch(ctx, watch.Options{
		Root:       p.root,
		ConfigPath: p.configPath,
		Analysis:   opts,
		Debounce:   p.debounce,
		Logger:     logger,
		OnResult: func(result *taxonomy.Result) error {
			if format == "text" {
				fmt.Fprintf(p.stdout, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
			}
			return writeResult(p.stdout, format, result, p.checkParams)
		},
		OnError: func(err error) {
			fmt.Fprintln(p.stderr, err)
		},
	})
}

func newWatchCmd() *cobra.Command {
	var p watchParams

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-run check whenever sources or configuration change",
		Long: `Run check once, then again each time a Python file or a pytest or
paramcheck configuration file under dir changes. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			p.root = rootArg(args)
			p.stdout = os.Stdout
			p.stderr = os.Stderr
			return runWatch(ctx, p)
		},
	}

	cmd.Flags().StringVar(&p.format, "format", "",
		"output format: text or json (default from config, else text)")
	cmd.Flags().StringVar(&p.configPath, "config", "",
		"path to the configuration file (default: "+config.FileName+" in dir)")
	cmd.Flags().StringVar(&p.test, "test", "",
		"check only tests with this function name")
	cmd.Flags().StringSliceVar(&p.disable, "disable", nil,
		"diagnostic codes to suppress, comma separated")
	cmd.Flags().BoolVar(&p.showSource, "show-source", false,
		"quote the source line of each diagnostic")
	cmd.Flags().DurationVar(&p.debounce, "debounce", watch.DefaultDebounce,
		"wait this long for changes to settle before re-running")

	return cmd
}

// codesParams holds the parsed flags for the codes command.
type codesParams struct {
	format string
	stdout io.Writer
}

// runCodes is the extracted, testable body of the codes command.
func runCodes(p codesParams) error {
	if err := validFormat(p.format); err != nil {
		return err
	}
	if p.format == "json" {
		return report.WriteCodesJSON(p.stdout)
	}
	return report.WriteCodes(p.stdout)
}

func newCodesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "codes",
		Short: "List the diagnostic codes",
		Long: `List every diagnostic code paramcheck can report, with its
category and a short description. Codes can be passed to
--disable or listed under disable in ` + config.FileName + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCodes(codesParams{format: format, stdout: cmd.OutOrStdout()})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for paramcheck output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of paramcheck check --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}

// initParams holds the parsed flags for the init command.
type initParams struct {
	targetDir string
	force     bool
	stdout    io.Writer
}

// runInit is the extracted, testable body of the init command.
func runInit(p initParams) error {
	_, err := scaffold.Run(scaffold.Options{
		TargetDir: p.targetDir,
		Force:     p.force,
		Version:   version,
		Stdout:    p.stdout,
	})
	return err
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default " + config.FileName,
		Long: `Write a commented ` + config.FileName + ` with the default settings
into dir (default: the current directory). Existing files are kept
unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initParams{
				targetDir: rootArg(args),
				force:     force,
				stdout:    cmd.OutOrStdout(),
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
