package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/config"
	"github.com/MaaXYZ/MaaEnd/loopmacro/engine"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/desktop"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/maactl"
	"github.com/MaaXYZ/MaaEnd/loopmacro/player"
)

type command struct {
	name        string
	usage       string
	description string
	configure   func(fs *flag.FlagSet)
	run         func(rc *rootCommand, fs *flag.FlagSet, args []string) error
}

type rootCommand struct {
	commands map[string]command
	stdout   io.Writer
	stderr   io.Writer

	configPath string
	logLevel   string
	regionPath string
	window     string

	// replaced in tests
	initLog func(level string, console io.Writer) (io.Closer, error)
}

func newRootCommand(stdout, stderr io.Writer) *rootCommand {
	rc := &rootCommand{
		commands: make(map[string]command),
		stdout:   stdout,
		stderr:   stderr,
		initLog: func(level string, console io.Writer) (io.Closer, error) {
			return initLogger(level, console)
		},
	}
	rc.register(newRecordCommand())
	rc.register(newPlayCommand())
	rc.register(newLocateCommand())
	rc.register(newAgentCommand())
	return rc
}

func (rc *rootCommand) register(cmd command) {
	rc.commands[cmd.name] = cmd
}

func (rc *rootCommand) Execute(args []string) error {
	rootFlags := flag.NewFlagSet("loopmacro", flag.ContinueOnError)
	rootFlags.SetOutput(rc.stderr)
	rootFlags.Usage = rc.printHelp
	rootFlags.StringVar(&rc.configPath, "config", config.DefaultSettingsPath, "Settings file (TOML, optional)")
	rootFlags.StringVar(&rc.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootFlags.StringVar(&rc.regionPath, "region-file", config.DefaultRegionPath, "Minimap region file")
	rootFlags.StringVar(&rc.window, "window", "", "Target process name; empty accepts any foreground window")

	if err := rootFlags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	remaining := rootFlags.Args()
	if len(remaining) == 0 {
		rc.printHelp()
		return nil
	}
	sub, ok := rc.commands[remaining[0]]
	if !ok {
		fmt.Fprintf(rc.stderr, "Unknown command %q\n\n", remaining[0])
		rc.printHelp()
		return fmt.Errorf("unknown command %q", remaining[0])
	}

	fs := flag.NewFlagSet(sub.name, flag.ContinueOnError)
	fs.SetOutput(rc.stderr)
	fs.Usage = func() {
		fmt.Fprintf(rc.stderr, "Usage: loopmacro %s %s\n%s\n", sub.name, sub.usage, sub.description)
		fs.PrintDefaults()
	}
	if sub.configure != nil {
		sub.configure(fs)
	}
	if err := fs.Parse(remaining[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	closer, err := rc.initLog(rc.logLevel, rc.stderr)
	if err != nil {
		fmt.Fprintln(rc.stderr, err)
		return err
	}
	defer closer.Close()

	if err := sub.run(rc, fs, fs.Args()); err != nil {
		log.Error().Err(err).Str("command", sub.name).Msg("Command failed")
		return err
	}
	return nil
}

func (rc *rootCommand) printHelp() {
	fmt.Fprintln(rc.stderr, "Usage: loopmacro [-config file] [-log-level level] [-region-file file] [-window name] <command> [flags]")
	fmt.Fprintln(rc.stderr, "\nCommands:")
	names := make([]string, 0, len(rc.commands))
	for name := range rc.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(rc.stderr, "  %-8s %s\n", name, rc.commands[name].description)
	}
}

// loadSettings loads the settings file and keeps it watched for the
// lifetime of the returned loader.
func (rc *rootCommand) loadSettings() (*config.Loader, *config.Settings, error) {
	loader := config.NewLoader(rc.configPath)
	s, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Watch(); err != nil {
		log.Warn().Err(err).Str("path", rc.configPath).Msg("Settings hot reload disabled")
	}
	return loader, s, nil
}

// desktopEngine wires the engine to the local desktop. withKeyState starts
// the global key state reader needed for recording.
func (rc *rootCommand) desktopEngine(s *config.Settings, withKeyState bool) (*engine.Engine, func(), error) {
	deps := engine.Deps{
		Keys:   desktop.Keyboard{},
		Window: desktop.AnyWindow{},
		Frames: desktop.Screen{},
	}
	if rc.window != "" {
		w, err := desktop.FindWindow(rc.window)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", macro.ErrConfiguration, err)
		}
		deps.Window = w
	}

	cleanup := []func(){desktop.HighResolutionTimer()}
	if withKeyState {
		ks, err := desktop.NewKeyState()
		if err != nil {
			return nil, nil, fmt.Errorf("key state reader: %w", err)
		}
		deps.KeyState = ks
		cleanup = append(cleanup, func() { _ = ks.Close() })
	}

	e := engine.New(deps,
		engine.WithSettings(s),
		engine.WithRegionPath(rc.regionPath),
		engine.WithStatusSink(logStatus),
	)
	return e, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}, nil
}

func logStatus(st player.Status) {
	log.Info().
		Str("state", st.State.String()).
		Int("loop", st.Loop).
		Int("loops", st.TotalLoops).
		Int("corrections", st.Corrections).
		Msg("Playback status")
}

// prepareTracker applies -region and -calibrate.
func prepareTracker(e *engine.Engine, region, calibrate string) error {
	if region != "" {
		r, err := parseRect(region)
		if err != nil {
			return err
		}
		if screen := desktop.PrimaryBounds(); !regionOnScreen(r, screen) {
			log.Warn().
				Ints("region", r[:]).
				Ints("screen", screen[:]).
				Msg("Region extends past the primary display")
		}
		if err := e.SetRegion(r); err != nil {
			return err
		}
	}
	if calibrate != "" {
		pt, err := parsePoint(calibrate)
		if err != nil {
			return err
		}
		if err := e.Calibrate(pt); err != nil {
			return fmt.Errorf("calibrate: %w", err)
		}
	}
	return nil
}

// regionOnScreen reports whether r lies inside screen. An unknown screen
// (no display attached) accepts any region.
func regionOnScreen(r, screen geom.Rect) bool {
	if !geom.ValidRect(screen) {
		return true
	}
	return r.X() >= screen.X() && r.Y() >= screen.Y() &&
		r.X()+r.Width() <= screen.X()+screen.Width() &&
		r.Y()+r.Height() <= screen.Y()+screen.Height()
}

func parseRect(s string) (geom.Rect, error) {
	var r geom.Rect
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return r, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &r[i]); err != nil {
			return r, fmt.Errorf("region %q: %w", s, err)
		}
	}
	if !geom.ValidRect(r) {
		return r, fmt.Errorf("region %q has no area", s)
	}
	return r, nil
}

func parsePoint(s string) (geom.Point, error) {
	var pt geom.Point
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return pt, fmt.Errorf("point %q: want x,y", s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%g", &pt.X); err != nil {
		return pt, fmt.Errorf("point %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%g", &pt.Y); err != nil {
		return pt, fmt.Errorf("point %q: %w", s, err)
	}
	return pt, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRecordCommand() command {
	var (
		out       string
		appendTo  bool
		duration  time.Duration
		region    string
		calibrate string
	)
	return command{
		name:        "record",
		usage:       "[flags]",
		description: "Record key events until interrupted, then save them.",
		configure: func(fs *flag.FlagSet) {
			fs.StringVar(&out, "out", "macro.json", "Output macro file")
			fs.BoolVar(&appendTo, "append", false, "Append to the events already in -out")
			fs.DurationVar(&duration, "duration", 0, "Stop after this long (0 waits for Ctrl+C)")
			fs.StringVar(&region, "region", "", "Minimap region x,y,w,h (saved to the region file)")
			fs.StringVar(&calibrate, "calibrate", "", "Avatar position x,y inside the minimap")
		},
		run: func(rc *rootCommand, _ *flag.FlagSet, _ []string) error {
			loader, s, err := rc.loadSettings()
			if err != nil {
				return err
			}
			defer loader.Close()

			e, cleanup, err := rc.desktopEngine(s, true)
			if err != nil {
				return err
			}
			defer cleanup()
			loader.OnChange(e.ApplySettings)

			if err := prepareTracker(e, region, calibrate); err != nil {
				return err
			}
			if appendTo {
				if _, statErr := os.Stat(out); statErr == nil {
					if err := e.Load(out); err != nil {
						return err
					}
				}
			}

			ctx, stop := signalContext()
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := e.StartRecording(ctx); err != nil {
				return err
			}
			fmt.Fprintln(rc.stderr, "Recording, press Ctrl+C to stop")
			<-ctx.Done()
			e.StopRecording()

			if err := e.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(rc.stdout, "saved %d events to %s\n", e.Log().Len(), out)
			return nil
		},
	}
}

func newPlayCommand() command {
	var (
		loops     int
		verify    bool
		returnTo  bool
		dryRun    bool
		region    string
		calibrate string
	)
	return command{
		name:        "play",
		usage:       "[flags] <macro.json>",
		description: "Replay a macro file in loops with drift correction.",
		configure: func(fs *flag.FlagSet) {
			fs.IntVar(&loops, "loops", 1, "Number of loops")
			fs.BoolVar(&verify, "verify", true, "Verify the position before key presses")
			fs.BoolVar(&returnTo, "return", false, "Walk back to the start position when done")
			fs.BoolVar(&dryRun, "dry-run", false, "Print the macro summary and exit")
			fs.StringVar(&region, "region", "", "Minimap region x,y,w,h (saved to the region file)")
			fs.StringVar(&calibrate, "calibrate", "", "Avatar position x,y inside the minimap")
		},
		run: func(rc *rootCommand, fs *flag.FlagSet, args []string) error {
			if len(args) != 1 {
				fs.Usage()
				return fmt.Errorf("%w: macro file required", macro.ErrConfiguration)
			}
			path := args[0]

			if dryRun {
				l, err := macro.Load(path)
				if err != nil {
					return err
				}
				fmt.Fprint(rc.stdout, l.Summary())
				return nil
			}

			loader, s, err := rc.loadSettings()
			if err != nil {
				return err
			}
			defer loader.Close()

			set := map[string]bool{}
			fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
			if set["verify"] {
				s.Player.VerifyPosition = verify
			}
			if set["return"] {
				s.Player.ReturnToStart = returnTo
			}

			e, cleanup, err := rc.desktopEngine(s, false)
			if err != nil {
				return err
			}
			defer cleanup()
			loader.OnChange(func(ns *config.Settings) {
				ns.Player.VerifyPosition, ns.Player.ReturnToStart = s.Player.VerifyPosition, s.Player.ReturnToStart
				e.ApplySettings(ns)
			})

			if err := prepareTracker(e, region, calibrate); err != nil {
				return err
			}
			if err := e.Load(path); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			if err := e.StartPlayback(ctx, loops); err != nil {
				return err
			}
			if err := e.WaitPlayback(ctx); err != nil {
				e.StopPlayback()
			}

			st := e.Status().Player
			fmt.Fprintf(rc.stdout, "%s after %d/%d loops, %d corrections\n", st.State, st.Loop, st.TotalLoops, st.Corrections)
			return nil
		},
	}
}

func newLocateCommand() command {
	var (
		region    string
		calibrate string
		watch     time.Duration
	)
	return command{
		name:        "locate",
		usage:       "[flags]",
		description: "Print the avatar position on the minimap.",
		configure: func(fs *flag.FlagSet) {
			fs.StringVar(&region, "region", "", "Minimap region x,y,w,h (saved to the region file)")
			fs.StringVar(&calibrate, "calibrate", "", "Avatar position x,y inside the minimap")
			fs.DurationVar(&watch, "watch", 0, "Repeat at this interval until interrupted")
		},
		run: func(rc *rootCommand, _ *flag.FlagSet, _ []string) error {
			s, err := config.LoadSettings(rc.configPath)
			if err != nil {
				return err
			}
			e, cleanup, err := rc.desktopEngine(s, false)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := prepareTracker(e, region, calibrate); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			for {
				res, err := e.Position()
				if err != nil {
					fmt.Fprintf(rc.stdout, "unknown: %v\n", err)
				} else {
					fmt.Fprintf(rc.stdout, "%s %s %.2f\n", res.Pos, res.Source, res.Confidence)
				}
				if watch <= 0 {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(watch):
				}
			}
		},
	}
}

func newAgentCommand() command {
	return command{
		name:        "agent",
		usage:       "<identifier>",
		description: "Serve the macro actions to MaaFramework as an agent.",
		run: func(rc *rootCommand, fs *flag.FlagSet, args []string) error {
			if len(args) != 1 {
				fs.Usage()
				return fmt.Errorf("%w: agent identifier required", macro.ErrConfiguration)
			}
			identifier := args[0]

			loader, s, err := rc.loadSettings()
			if err != nil {
				return err
			}
			defer loader.Close()

			binding := &maactl.Binding{}
			e := engine.New(engine.Deps{
				Keys:   binding,
				Window: binding,
				Frames: binding,
			},
				engine.WithSettings(s),
				engine.WithRegionPath(rc.regionPath),
				engine.WithStatusSink(logStatus),
				engine.WithContextHook(binding.BindContext),
			)
			loader.OnChange(e.ApplySettings)
			registerAll(e)

			log.Info().Str("identifier", identifier).Msg("Starting agent server")
			if !maa.AgentServerStartUp(identifier) {
				return errors.New("failed to start agent server")
			}
			log.Info().Msg("Agent server started")

			maa.AgentServerJoin()

			e.Stop()
			maa.AgentServerShutDown()
			log.Info().Msg("Agent server shutdown")
			return nil
		},
	}
}
