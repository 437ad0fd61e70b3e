// Package main is the entry point for the wallgarden CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wallgarden/wallgarden/internal/config"
	"github.com/wallgarden/wallgarden/internal/core"
	"github.com/wallgarden/wallgarden/internal/pipeline"
	"github.com/wallgarden/wallgarden/internal/store"
	"github.com/wallgarden/wallgarden/internal/transform"
	"github.com/wallgarden/wallgarden/internal/ui"
	"github.com/wallgarden/wallgarden/internal/watch"

	_ "github.com/wallgarden/wallgarden/internal/platform/linux"
	_ "github.com/wallgarden/wallgarden/internal/platform/stub"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

const initHint = "Run 'wallgarden init' to create a default configuration"

var (
	// Global flags
	cfgFile string
	dryRun  bool
	verbose bool
	quiet   bool
	noColor bool
	width   int
	height  int

	// Global output
	out    *ui.Output
	logger *zap.Logger
)

func main() {
	rootCmd := newRootCmd()

	// Handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wallgarden",
		Short: "Wallpaper downloader and rotator for GNOME",
		Long: `Wallgarden downloads wallpapers from Reddit communities, crops them to
your screen resolution and keeps a local collection you can pin, hide and
rotate through on a timer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/wallgarden/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would be done without changing the desktop")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().IntVar(&width, "width", 0, "target width (overrides config and detection)")
	rootCmd.PersistentFlags().IntVar(&height, "height", 0, "target height (overrides config and detection)")

	rootCmd.AddCommand(
		newInitCmd(),
		newDownloadCmd(),
		newRandomCmd(),
		newSetCmd(),
		newPinCmd(),
		newHideCmd(),
		newDeleteCmd(),
		newListCmd(),
		newCurrentCmd(),
		newScanCmd(),
		newPruneCmd(),
		newOpenCmd(),
		newSlideshowCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// initOutput initializes the output and the diagnostic logger.
func initOutput() {
	out = ui.DefaultOutput()
	configureOutput(out)

	l, err := newLogger(verbose, quiet)
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
}

// configureOutput applies the global output flags to o.
func configureOutput(o *ui.Output) {
	o.SetVerbose(verbose)
	o.SetQuiet(quiet)
	if noColor {
		o.SetNoColor(true)
	}
	// Debug lines on stderr would tear the spinner line.
	if verbose {
		o.SetInteractive(false)
	}
}

// newLogger writes console-encoded logs to stderr: debug with verbose, errors
// only with quiet, warnings otherwise.
func newLogger(verbose, quiet bool) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	switch {
	case verbose:
		level = zapcore.DebugLevel
	case quiet:
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	if !ui.IsTerminal(os.Stderr) {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// resolutionOverride validates --width and --height.
func resolutionOverride(w, h int) (transform.Resolution, error) {
	res := transform.Resolution{Width: w, Height: h}
	if w < 0 || h < 0 || (w == 0) != (h == 0) {
		return res, fmt.Errorf("--width and --height must be given together as positive values")
	}
	return res, nil
}

// newEngine creates a new engine with current flags.
func newEngine() (*core.Engine, error) {
	res, err := resolutionOverride(width, height)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{core.WithLogger(logger)}
	if !res.IsZero() {
		opts = append(opts, core.WithResolution(res))
	}
	if dryRun {
		opts = append(opts, core.WithDryRun(true))
	}

	return core.New(cfgFile, opts...)
}

// engineOrFail creates the engine and reports failures the same way for
// every command.
func engineOrFail() (*core.Engine, error) {
	engine, err := newEngine()
	if err != nil {
		out.ErrorWithHint(err.Error(), initHint)
		return nil, err
	}
	return engine, nil
}

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize wallgarden configuration",
		Long:  "Creates the default configuration file, the image directories and an empty state file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			configPath := cfgFile
			if configPath == "" {
				configPath = filepath.Join(config.DefaultConfigDir(), config.ConfigFileName)
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				out.Warning("Configuration already exists at %s", shortenPath(configPath))
				out.Info("Use --force to overwrite")
				return nil
			}

			cfg := config.DefaultConfig()

			if err := cfg.EnsureDirectories(); err != nil {
				out.Error("Failed to create directories: %v", err)
				return err
			}

			if err := cfg.Save(configPath); err != nil {
				out.Error("Failed to write config: %v", err)
				return err
			}

			// Load creates the state file when it is missing.
			if _, err := store.New(cfg.StatePath()).Load(); err != nil {
				out.Error("Failed to create state file: %v", err)
				return err
			}

			out.Success("Wallgarden initialized")
			out.Field("Config", shortenPath(configPath))
			out.Field("State", shortenPath(cfg.StatePath()))
			out.Field("Images", shortenPath(cfg.ImagesDir()))
			out.Field("Originals", shortenPath(cfg.OriginalsDir()))
			out.Print("")
			out.Info("Edit %s to change the default community", shortenPath(configPath))

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration")

	return cmd
}

// newDownloadCmd creates the download command.
func newDownloadCmd() *cobra.Command {
	var (
		sortFlag  string
		timeframe string
		limit     int
		noSet     bool
	)

	cmd := &cobra.Command{
		Use:     "download [community]",
		Aliases: []string{"dl"},
		Short:   "Download a random wallpaper from a community",
		Long: `Queries the community listing, picks a random post whose preview is
larger than the target resolution, crops it to fit and sets it as the
background. Without an argument the configured community is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			req := core.DownloadRequest{
				Sort:      sortFlag,
				Timeframe: timeframe,
				Limit:     limit,
				NoSet:     noSet,
			}
			if len(args) == 1 {
				req.Community = args[0]
			}

			community := req.Community
			if community == "" {
				community = engine.Config().Listing.Community
			}

			spinner := ui.NewSpinner(out, fmt.Sprintf("Fetching r/%s...", community))
			spinner.Start()
			result, err := engine.Download(cmd.Context(), req)
			spinner.Stop()

			if err != nil {
				out.Error("Failed to download wallpaper: %v", err)
				return err
			}

			printDownload(result, noSet)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sortFlag, "sort", "s", "", "listing sort (hot|new|rising|controversial|top|best)")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "listing timeframe (all|day|hour|month|week|year)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "number of posts to consider")
	cmd.Flags().BoolVar(&noSet, "no-set", false, "download without changing the background")

	return cmd
}

func printDownload(result *core.DownloadResult, noSet bool) {
	switch result.Status {
	case pipeline.StatusNoCandidates:
		out.Warning("No posts larger than %s found", result.Resolution)
		out.Info("Try another community, a longer timeframe or a higher --limit")
		return
	case pipeline.StatusRejected:
		out.Warning("Image is smaller than %s, it will not be picked again", result.Resolution)
		out.Field("Source", result.URL)
		return
	}

	action := "Downloaded new wallpaper"
	if result.Status == pipeline.StatusExisting {
		action = "Wallpaper already downloaded"
	}
	out.WallpaperInfo(action, shortenPath(result.Path), result.Title, result.URL)
	out.Debug("%d candidates, cropped to %s", result.Candidates, result.Resolution)

	switch {
	case dryRun:
		out.Info("Dry run: background not changed")
	case noSet:
	case !result.Applied:
		out.Warning("Could not set the background, see the log for details")
	}
}

// newRandomCmd creates the random command.
func newRandomCmd() *cobra.Command {
	var pinned bool

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Set a random downloaded wallpaper",
		Long:  "Sets a random wallpaper from the collection, skipping hidden images and the current one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			result, err := engine.Random(pinned)
			if errors.Is(err, core.ErrNoImages) {
				if pinned {
					out.Warning("No pinned wallpapers to choose from")
				} else {
					out.Warning("No wallpapers to choose from")
					out.Info("Run 'wallgarden download' first")
				}
				return nil
			}
			if err != nil {
				out.Error("Failed to set wallpaper: %v", err)
				return err
			}

			printSet(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pick pinned wallpapers")

	return cmd
}

// newSetCmd creates the set command.
func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path>",
		Short: "Set an image as the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			result, err := engine.Set(args[0])
			if err != nil {
				out.Error("Failed to set wallpaper: %v", err)
				return err
			}

			printSet(result)
			return nil
		},
	}
}

func printSet(result *core.WallpaperResult) {
	if dryRun {
		out.Info("Would set wallpaper to: %s", shortenPath(result.Path))
		return
	}
	if !result.Applied {
		out.Warning("Could not set the background to %s", shortenPath(result.Path))
		return
	}
	out.WallpaperInfo("Wallpaper set", shortenPath(result.Path), "", "")
}

// newPinCmd creates the pin command.
func newPinCmd() *cobra.Command {
	return newFlagCmd("pin", "Pin an image for the pinned rotation", "Pinned", "Unpinned",
		func(e *core.Engine, path string, on bool) (*core.ImageInfo, error) {
			return e.Pin(path, on)
		})
}

// newHideCmd creates the hide command.
func newHideCmd() *cobra.Command {
	return newFlagCmd("hide", "Hide an image from the rotation", "Hidden", "Unhidden",
		func(e *core.Engine, path string, on bool) (*core.ImageInfo, error) {
			return e.Hide(path, on)
		})
}

func newFlagCmd(name, short, onMsg, offMsg string, update func(*core.Engine, string, bool) (*core.ImageInfo, error)) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   name + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			info, err := update(engine, args[0], !off)
			if err != nil {
				out.Error("Failed to update %s: %v", args[0], err)
				return err
			}

			msg := onMsg
			if off {
				msg = offMsg
			}
			out.Success("%s %s", msg, shortenPath(info.Path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "clear the flag instead of setting it")

	return cmd
}

// newDeleteCmd creates the delete command.
func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a downloaded wallpaper",
		Long:  "Removes the processed image, its original copy and its record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			if dryRun {
				out.Info("Would delete: %s", shortenPath(args[0]))
				return nil
			}

			result, err := engine.Delete(args[0])
			if err != nil {
				out.Error("Failed to delete: %v", err)
				return err
			}

			out.Success("Deleted %s", shortenPath(result.Path))
			for _, f := range result.RemovedFiles {
				out.Debug("removed %s", f)
			}
			return nil
		},
	}
}

// newCurrentCmd creates the current command.
func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current wallpaper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			info, err := engine.Current()
			if err != nil {
				out.Error("Failed to get current wallpaper: %v", err)
				return err
			}
			if info == nil {
				out.Warning("No wallpaper currently set")
				return nil
			}

			out.Print("")
			out.Field("Path", shortenPath(info.Path))
			out.Field("Pinned", out.Flag(info.Pinned))
			out.Field("Hidden", out.Flag(info.Hidden))
			if info.Desktop != "" && info.Desktop != info.Path {
				out.FieldColored("Desktop", shortenPath(info.Desktop), ui.Yellow)
			}
			out.Print("")

			if !info.Exists {
				out.Warning("File no longer exists")
			}
			return nil
		},
	}
}

// newScanCmd creates the scan command.
func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Register images added to the image directory by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			result, err := engine.Scan()
			if err != nil {
				out.Error("Failed to scan: %v", err)
				return err
			}

			out.Success("Scanned %s", shortenPath(result.Dir))
			out.Field("Added", fmt.Sprint(result.Added))
			out.Field("Total", fmt.Sprint(result.Total))
			return nil
		},
	}
}

// newPruneCmd creates the prune command.
func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Forget images whose file was removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			removed, err := engine.Prune()
			if err != nil {
				out.Error("Failed to prune: %v", err)
				return err
			}

			if len(removed) == 0 {
				out.Info("Nothing to prune")
				return nil
			}
			out.Success("Forgot %d images", len(removed))
			for _, p := range removed {
				out.Debug("forgot %s", p)
			}
			return nil
		},
	}
}

// newOpenCmd creates the open command.
func newOpenCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the current wallpaper in the default viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			if reveal {
				err = engine.Reveal()
			} else {
				err = engine.Open()
			}
			if err != nil {
				out.Error("Failed to open wallpaper: %v", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "show the file in the file manager instead")

	return cmd
}

// newSlideshowCmd creates the slideshow command.
func newSlideshowCmd() *cobra.Command {
	var (
		start   bool
		stop    bool
		minutes int
		pinned  bool
	)

	cmd := &cobra.Command{
		Use:   "slideshow",
		Short: "Rotate wallpapers on a timer",
		Long: `Installs a systemd user timer that runs 'wallgarden random' at regular
intervals. Without --start or --stop the timer status is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			if start && stop {
				out.Error("--start and --stop are mutually exclusive")
				return fmt.Errorf("conflicting flags")
			}

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			switch {
			case start:
				interval := time.Duration(minutes) * time.Minute
				if !cmd.Flags().Changed("timer") {
					interval = engine.Config().SlideshowInterval()
				}
				if !cmd.Flags().Changed("pinned") {
					pinned = engine.Config().Slideshow.Pinned
				}

				status, err := engine.StartSlideshow(interval, pinned)
				if err != nil {
					out.Error("Failed to start slideshow: %v", err)
					return err
				}
				if dryRun {
					out.Info("Would start slideshow every %s", formatDuration(status.Interval))
					return nil
				}
				out.Success("Slideshow started")
				out.Field("Interval", formatDuration(status.Interval))
				out.Field("Pinned only", out.Flag(pinned))
				out.Field("Unit", shortenPath(status.UnitPath))
				return nil

			case stop:
				status, err := engine.SlideshowStatus()
				if err != nil {
					out.Error("Failed to get slideshow status: %v", err)
					return err
				}
				if !status.Installed {
					out.Info("Slideshow is not running")
					return nil
				}
				if err := engine.StopSlideshow(); err != nil {
					out.Error("Failed to stop slideshow: %v", err)
					return err
				}
				out.Success("Slideshow stopped")
				return nil
			}

			status, err := engine.SlideshowStatus()
			if err != nil {
				out.Error("Failed to get slideshow status: %v", err)
				return err
			}
			printSlideshowStatus(status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "install and start the timer")
	cmd.Flags().BoolVar(&stop, "stop", false, "stop and remove the timer")
	cmd.Flags().IntVar(&minutes, "timer", config.DefaultIntervalMinutes, "minutes between changes (minimum 1)")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only rotate through pinned wallpapers")

	return cmd
}

func printSlideshowStatus(status *core.SlideshowStatus) {
	if !status.Supported {
		out.Warning("Background scheduling is not supported on this platform")
		return
	}
	if !status.Installed {
		out.Info("Slideshow is not installed")
		return
	}
	if status.Running {
		out.Success("Slideshow is running")
	} else {
		out.Warning("Slideshow is installed but not running")
	}
	if status.Interval > 0 {
		out.Field("Interval", formatDuration(status.Interval))
	}
	out.Field("Unit", shortenPath(status.UnitPath))
}

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the collection in sync with the image directory",
		Long:  "Registers images copied into the image directory and forgets deleted ones until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			out.Info("Watching %s (Ctrl+C to stop)", shortenPath(engine.Config().ImagesDir()))
			err = engine.Watch(cmd.Context(), func(c watch.Change) {
				if c.Removed {
					out.Print("%s forgot %s", ui.SymbolBullet, shortenPath(c.Path))
					return
				}
				out.Print("%s added %s", ui.SymbolArrow, shortenPath(c.Path))
			})
			if err != nil {
				out.Error("Watch failed: %v", err)
				return err
			}
			return nil
		},
	}
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			initOutput()
			out.Print("wallgarden version %s", version)
		},
	}
}

// shortenPath shortens a path for display.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if len(path) > len(home) && path[:len(home)] == home && path[len(home)] == filepath.Separator {
		return "~" + path[len(home):]
	}
	return path
}

// formatDuration formats duration to human readable (e.g., "1.5 minutes")
func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := d.Minutes()
	if minutes == 1 {
		return "1 minute"
	}
	if minutes == float64(int(minutes)) {
		return fmt.Sprintf("%d minutes", int(minutes))
	}
	return fmt.Sprintf("%.1f minutes", minutes)
}
