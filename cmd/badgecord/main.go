// Package main implements the badgecord command, which shows a Discord user's
// Lanyard presence as an interactive terminal badge or renders it into static
// HTML pages.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	rootpkg "tools.zach/dev/badgecord"
	"tools.zach/dev/badgecord/internal/clipboard"
	"tools.zach/dev/badgecord/internal/config"
	"tools.zach/dev/badgecord/internal/lanyard"
	"tools.zach/dev/badgecord/internal/logger"
	"tools.zach/dev/badgecord/internal/page"
	"tools.zach/dev/badgecord/internal/paths"
	"tools.zach/dev/badgecord/internal/presence"
	"tools.zach/dev/badgecord/internal/tui"
	"tools.zach/dev/badgecord/internal/watch"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// Bare `go build` leaves it as "dev" and [resolveVersion] falls back to the
// embedded VCS revision.
var version = "dev"

// resolveVersion returns [version] when set by ldflags, otherwise
// "dev+<hash>" from the build info, with ".dirty" for modified trees.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// userAgent identifies this build to the Lanyard API.
func userAgent() string {
	return paths.BinaryName + "/" + resolveVersion()
}

// ///////////////////////////////////////////////
// Render Lock
// ///////////////////////////////////////////////

// errLocked reports that another process holds the render lock.
var errLocked = errors.New("held by another process")

// pidToken returns a random token proving ownership of the PID file, so
// [removePID] only deletes a file this process wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID locks the PID file and writes "PID:TOKEN" into it. The returned
// handle holds the lock and must stay open until [removePID].
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	fail := func(step string, err error) (*os.File, error) {
		_ = unlock(f)
		f.Close()
		return nil, fmt.Errorf("%s PID file: %w", step, err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate", err)
	}
	if _, err := f.WriteString(fmt.Sprintf("%d:%s", os.Getpid(), token)); err != nil {
		return fail("write", err)
	}
	return f, nil
}

// removePID releases the lock and deletes the PID file if it still carries
// token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlock(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	_, got, ok := strings.Cut(string(data), ":")
	if ok && got == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another process holds the render lock, and
// its pid when the file names one. A file left by a dead process is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}
	if err := tryLock(f); err != nil {
		f.Close()
		if !errors.Is(err, errLocked) {
			return false, 0
		}
		data, _ := os.ReadFile(dp.PID())
		head, _, _ := strings.Cut(string(data), ":")
		p, _ := strconv.Atoi(head)
		return true, p
	}

	_ = unlock(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

const usage = `usage: badgecord [--data-dir DIR] [command]

commands:
  tui                  interactive terminal badge (default)
  render --once        fetch once and write every page
  render --watch       keep pages updated until interrupted
  logs [-n N]          print the last N log lines
  version              print the version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	dataDir := fs.String("data-dir", paths.Default().Root, "Data directory for config, lock, and logs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cmd, rest := "tui", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}
	dp := DataPaths{Root: *dataDir}

	ctx, stop := signalContext(context.Background())
	defer stop()

	var err error
	switch cmd {
	case "tui":
		err = runTUI(ctx, dp, stdout)
	case "render":
		err = runRender(ctx, dp, rest, stdout, stderr)
	case "logs":
		err = runLogs(dp, rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", paths.BinaryName, resolveVersion())
	case "help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	return 0
}

// ///////////////////////////////////////////////
// Setup
// ///////////////////////////////////////////////

// env is the state shared by the long-running commands.
type env struct {
	paths  DataPaths
	cfg    *config.Config
	level  *slog.LevelVar
	closer io.Closer
}

// setup prepares the data directory, seeds and loads the config, and installs
// the file logger as the default. mirror, when set, also receives log lines.
func setup(dp DataPaths, mirror io.Writer) (*env, error) {
	if err := dp.Ensure(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := config.EnsureFile(dp.Config(), rootpkg.DefaultConfigTOML); err != nil {
		return nil, err
	}
	cfg, err := config.Load(dp.Root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(logger.ParseLevel(cfg.Log.Level))
	log, closer, err := logger.NewLogger(logger.Options{
		Path:      dp.Log(),
		Level:     level,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Mirror:    mirror,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)
	slog.Info("badgecord starting", "version", resolveVersion(), "data_dir", dp.Root)
	return &env{paths: dp, cfg: cfg, level: level, closer: closer}, nil
}

// presenceOptions maps the config onto widget options. fallbackID is the
// identity used when the surface names none.
func presenceOptions(cfg *config.Config, fetcher presence.Fetcher, fallbackID string) presence.Options {
	return presence.Options{
		Fetcher:        fetcher,
		FallbackUserID: fallbackID,
		Interval:       cfg.PollInterval(),
		Timeout:        cfg.FetchTimeout(),
		HideDelay:      cfg.HideDelay(),
		AvatarSize:     cfg.Presence.AvatarSize,
		IdleText:       cfg.Presence.IdleText,
		ProfileBase:    cfg.Presence.ProfileBase,
	}
}

// watchConfig reloads the config file whenever it changes and hands each
// valid version to apply. Invalid edits are logged and the previous config
// stays in effect. Returns when ctx is done.
func watchConfig(ctx context.Context, e *env, apply func(*config.Config)) {
	w, err := watch.New([]string{e.paths.Config()}, watch.Options{})
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return
	}
	defer w.Close()
	if w.Polling() {
		slog.Info("using polling mode for config changes")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Events():
			w.Drain()
			cfg, err := config.LoadFile(e.paths.Config())
			if err != nil {
				slog.Warn("config reload rejected, keeping previous settings", "error", err)
				continue
			}
			e.level.Set(logger.ParseLevel(cfg.Log.Level))
			apply(cfg)
			slog.Info("config reloaded")
		}
	}
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

// runTUI shows the interactive badge until the user quits or a signal
// arrives. Logs go to the file only since the terminal belongs to the UI.
func runTUI(ctx context.Context, dp DataPaths, stdout io.Writer) error {
	e, err := setup(dp, nil)
	if err != nil {
		return err
	}
	defer e.closer.Close()

	client, err := lanyard.NewClient(e.cfg.Presence.APIBase, userAgent())
	if err != nil {
		return err
	}
	app := tui.NewApp(tui.Options{
		Context:     ctx,
		Presence:    presenceOptions(e.cfg, client, e.cfg.Presence.UserID),
		Clipboard:   clipboard.New(stdout),
		Theme:       e.cfg.UI.Theme,
		DoubleClick: e.cfg.DoubleClick(),
	}, tea.WithOutput(stdout))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchConfig(watchCtx, e, func(cfg *config.Config) {
		client, err := lanyard.NewClient(cfg.Presence.APIBase, userAgent())
		if err != nil {
			slog.Warn("keeping previous Lanyard client", "error", err)
			return
		}
		app.Reconfigure(tui.Options{
			Presence:    presenceOptions(cfg, client, cfg.Presence.UserID),
			Theme:       cfg.UI.Theme,
			DoubleClick: cfg.DoubleClick(),
		})
	})

	return app.Run()
}

// runRender writes presence into the configured pages, once or continuously.
func runRender(ctx context.Context, dp DataPaths, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	once := fs.Bool("once", false, "fetch once, write pages, and exit")
	keep := fs.Bool("watch", false, "keep pages updated until interrupted")
	root := fs.String("root", "", "pages directory (default: pages.root from the config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *once == *keep {
		return errors.New("render needs exactly one of --once or --watch")
	}

	e, err := setup(dp, stderr)
	if err != nil {
		return err
	}
	defer e.closer.Close()

	if *keep {
		if alive, pid := checkStalePID(dp); alive {
			return fmt.Errorf("render --watch already running (pid %d)", pid)
		}
		token := pidToken()
		pidFile, err := writePID(dp, token)
		if err != nil {
			return err
		}
		defer removePID(dp, token, pidFile)
	}

	dir := *root
	if dir == "" {
		dir = e.cfg.Pages.Root
	}
	files, err := page.Discover(dir, e.cfg.Pages.Include, e.cfg.IsExcluded)
	if err != nil {
		return err
	}
	client, err := lanyard.NewClient(e.cfg.Presence.APIBase, userAgent())
	if err != nil {
		return err
	}
	host, sum, err := page.NewHost(files, presenceOptions(e.cfg, client, e.cfg.PageUserID()), slog.Default())
	if err != nil {
		return err
	}

	if *once {
		got, err := host.RenderOnce(ctx)
		sum.Written, sum.Failed = got.Written, got.Failed
		fmt.Fprintf(stdout, "%d page(s): %d written, %d without badge, %d fetch failure(s)\n",
			sum.Pages, sum.Written, sum.Inert, sum.Failed)
		return err
	}

	slog.Info("rendering pages", "root", dir, "pages", sum.Pages, "badges", sum.Pages-sum.Inert)
	go watchConfig(ctx, e, func(cfg *config.Config) {
		client, err := lanyard.NewClient(cfg.Presence.APIBase, userAgent())
		if err != nil {
			slog.Warn("keeping previous Lanyard client", "error", err)
			return
		}
		host.Reconfigure(ctx, presenceOptions(cfg, client, cfg.PageUserID()))
	})
	return host.Run(ctx)
}

// runLogs prints the tail of the log file.
func runLogs(dp DataPaths, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 50, "number of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := logger.ReadTail(dp.Log(), *n)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no log file at %s", dp.Log())
		}
		return err
	}
	if out != "" {
		fmt.Fprintln(stdout, out)
	}
	return nil
}
