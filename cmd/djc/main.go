package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"djc/common"
	"djc/config"
	"djc/convert"
	"djc/misc"
	"djc/server"
	"djc/state"
)

// initializeAppContext runs after flags are parsed and before any command:
// configuration, debug report and logging are set up here.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// help or version only
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)
	configFile := cmd.String("config")

	cfg, err := config.LoadConfiguration(configFile)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	env.Cfg = cfg

	if cmd.Bool("debug") {
		if err := startReport(env, configFile); err != nil {
			return ctx, err
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started",
		zap.Strings("args", os.Args),
		zap.String("ver", misc.GetVersion()),
		zap.String("runtime", runtime.Version()),
		zap.String("hash", misc.GetGitHash()),
		zap.Stringer("output", env.Cfg.Output.Kind),
	)
	switch {
	case env.Rpt != nil:
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	case len(configFile) == 0:
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

// startReport opens debug report and puts effective configuration there,
// secrets are masked by Dump.
func startReport(env *state.LocalEnv, configFile string) (err error) {
	if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
		return fmt.Errorf("unable to prepare debug report: %w", err)
	}
	if len(configFile) == 0 {
		return nil
	}
	if data, err := config.Dump(env.Cfg); err == nil {
		env.Rpt.StoreData("config/"+filepath.Base(configFile), data)
	}
	return nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	env.RestoreStdLog()

	// logger is gone, anything below goes to stderr
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// drop panic log if nothing was written there
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Commands return plain errors, cli.Exit is not used. errWasHandled is set
// once error made it to the log so main does not print it twice.
var errWasHandled bool

// exitErrHandler is called while logger is still alive.
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {

	// serve depends on this to shut down gracefully, convert checks context
	// between files
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "extracts Divi page builder blocks from exports and renders their styles as CSS",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: commands(),
	}

	var err error
	// os.Exit skips deferred calls, this one has to be the last
	defer func() {
		stop()
		if err != nil {
			// no logger during argument parsing
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err  error
		data []byte
		kind string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()

	}

	if cmd.Bool("default") {
		kind = "default"
		data, err = config.Prepare()
	} else {
		kind = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Writing configuration", zap.String("kind", kind), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

func commands() []*cli.Command {
	// flags keep parsed state, every command gets its own
	encodingFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "encoding", Aliases: []string{"enc"},
			Usage: "`ENCODING` of input text without BOM (see IANA.org for character set names), UTF-8 if absent"}
	}

	return []*cli.Command{
		{
			Name:         "convert",
			Usage:        "Extracts Divi blocks from export file(s), writes merged JSON and CSS",
			OnUsageError: usageErrorHandler,
			Action:       convert.Run,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "to",
					Usage: "conversion output `KIND` (supported kinds: " + strings.Join(common.OutputKindNames(), ", ") + "), default from configuration"},
				&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "when producing output do not keep input directory structure"},
				&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
				encodingFlag(),
				&cli.StringFlag{Name: "force-zip-cp",
					Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
			},
			ArgsUsage: "SOURCE [DESTINATION]",
			CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    path to export file(s) to process (.json or .txt), following forms are supported:
        path to a file: "[path_to_file]page.json"
        path to a directory: "[path_to_directory]directory" - recursively process all files under directory (symbolic links are not followed)
        path to archive with path inside archive to a particular file: "[path_to_archive]archive.zip[path_in_archive]/page.json"
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]" - recursively process all files under archive path

When working on archive recursively only .json and .txt files will be considered,
processing of archives inside archives is not supported.

DESTINATION:
    always a path, output file name(s) will be derived from source and output_name_template,
    extensions are .json and .css; if absent - current working directory
`, cli.CommandHelpTemplate),
		},
		{
			Name:         "scan",
			Usage:        "Shows markers found in a single file and how conversion went, writes nothing",
			OnUsageError: usageErrorHandler,
			Action:       convert.Scan,
			Flags: []cli.Flag{
				encodingFlag(),
			},
			ArgsUsage: "SOURCE",
		},
		{
			Name:         "serve",
			Usage:        "Runs HTTP service: POST /convert, GET /download, GET /healthz",
			OnUsageError: usageErrorHandler,
			Action:       server.Serve,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen on `ADDRESS` (host:port) instead of configured one"},
				&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "load environment overrides from `FILE`, missing default file is ignored"},
			},
			CustomHelpTemplate: fmt.Sprintf(`%s
ENVIRONMENT:
    %[2]sLISTEN, %[2]sACCESS_TOKEN, %[2]sSTORE, %[2]sSTORE_TTL, %[2]sSQLITE_PATH,
    %[2]sS3_ENDPOINT, %[2]sS3_REGION, %[2]sS3_ACCESS_KEY, %[2]sS3_SECRET_KEY,
    %[2]sS3_BUCKET, %[2]sS3_USE_SSL override corresponding server configuration values
`, cli.CommandHelpTemplate, config.EnvPrefix),
		},
		{
			Name:  "dumpconfig",
			Usage: "Dumps either default or actual configuration (YAML)",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
			},
			OnUsageError: usageErrorHandler,
			Action:       outputConfiguration,
			ArgsUsage:    "DESTINATION",
			CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Writes effective configuration: embedded defaults merged with configuration
file, secrets masked. Use --default to see embedded configuration as is.
`, cli.CommandHelpTemplate),
		},
	}
}
