package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/planterhq/planter/internal/config"
	"github.com/spf13/cobra"
)

const (
	stackTraceBufMax = 1 << 24

	levelTrace = slog.LevelDebug - 2
)

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string
)

// flags holds the command line options of the root command.
type flags struct {
	configPath   string
	settingsPath string
	apply        bool
	verbosity    int
	usermap      string
	groupmap     string
	vars         string
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

// logLevel settles the log level from the repeatable verbosity flag,
// falling back to a level name from the settings file when the flag was
// not given at all.
func logLevel(verbosity int, settingsLevel string) slog.Level {
	switch {
	case verbosity >= 3:
		return levelTrace
	case verbosity == 2:
		return slog.LevelDebug
	case verbosity == 1:
		return slog.LevelInfo
	}

	switch strings.ToLower(settingsLevel) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, target string) error {
	settings := &config.Settings{ConfigPath: config.DefaultConfigPath}

	if f.settingsPath != "" {
		read, err := config.ReadSettings(&config.GodotenvProvider{}, f.settingsPath)
		if err != nil {
			return err
		}
		settings = read
	}

	setupLogging(logLevel(f.verbosity, settings.LogLevel))

	configPath := settings.ConfigPath
	if cmd.Flags().Changed("config") {
		configPath = f.configPath
	}

	configHandler, err := config.Load(configPath, &config.OS{})
	if err != nil {
		return err
	}

	if f.usermap != "" {
		if configHandler.Usermap, err = config.ParseNameMap(f.usermap); err != nil {
			return err
		}
	}
	if f.groupmap != "" {
		if configHandler.Groupmap, err = config.ParseNameMap(f.groupmap); err != nil {
			return err
		}
	}

	var vars map[string]string
	if f.vars != "" {
		if vars, err = config.ParseNameMap(f.vars); err != nil {
			return err
		}
	}

	app := NewApp(configHandler, f.apply)

	report, err := app.Run(ctx, target, vars)
	if report != nil && report.Len() > 0 {
		fmt.Fprint(cmd.OutOrStdout(), renderReport(report, f.apply))
	}
	if err != nil {
		return err
	}
	if report.Failed() {
		return ErrConflictsFound
	}

	return nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupLogging(slog.LevelWarn)
	setupSignalHandlers(cancel)

	f := &flags{}

	rootCmd := &cobra.Command{
		Use:     "planter <target-path>",
		Short:   "provisions directory trees from declarative schemas",
		Long: "Planter produces the directory tree a schema prescribes at a target\n" +
			"path, previewing against an in-memory model unless --apply is given.",
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, f, args[0])
		},
	}

	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigPath, "path of the TOML configuration file")
	rootCmd.Flags().StringVar(&f.settingsPath, "settings", "", "path of an optional environment-style settings file")
	rootCmd.Flags().BoolVar(&f.apply, "apply", false, "apply the operations to the real filesystem instead of simulating")
	rootCmd.Flags().CountVarP(&f.verbosity, "verbose", "v", "raise the log level (repeatable)")
	rootCmd.Flags().StringVar(&f.usermap, "usermap", "", "owner name mappings (from:to, comma-separated)")
	rootCmd.Flags().StringVar(&f.groupmap, "groupmap", "", "group name mappings (from:to, comma-separated)")
	rootCmd.Flags().StringVar(&f.vars, "vars", "", "preset variable values (name:value, comma-separated)")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Provisioning failed.",
			"err", err,
		)
		ExitCode = 1
	}
}
