package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mikhskaz/videocutter/internal/app"
	"github.com/mikhskaz/videocutter/internal/config"
	"github.com/mikhskaz/videocutter/internal/fsutil"
	"github.com/mikhskaz/videocutter/internal/journal"
	"github.com/mikhskaz/videocutter/internal/logging"
	"github.com/mikhskaz/videocutter/internal/store"
)

const defaultRecordsName = "labels.csv"

var (
	runApp     = app.Run
	exit       = os.Exit
	isTerminal = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

// usageError marks bad invocations, which exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "%v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "videocutter",
		Short:         "Review videos and cut clips of the failing moments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default ~/.videocutter/config.toml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newNewCmd(&g),
		newResumeCmd(&g),
		newStatsCmd(&g, stdout),
		newVersionCmd(stdout),
	)
	return root
}

func newNewCmd(g *globalFlags) *cobra.Command {
	var rootDir, records, statusAddr string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new review of every video under --root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(rootDir) == "" {
				return usageError{err: errors.New("--root is required")}
			}
			root, err := fsutil.ResolveRootPath(rootDir)
			if err != nil {
				return err
			}
			if records == "" {
				records = filepath.Join(root, defaultRecordsName)
			}
			recordsPath, err := fsutil.ResolvePath(records)
			if err != nil {
				return err
			}
			return startSession(g, statusAddr, app.Options{
				Root:        root,
				RecordsPath: recordsPath,
				Mode:        store.CreateNew,
			})
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", "", "Directory containing the videos to review")
	cmd.Flags().StringVar(&records, "records", "", "Records file (default ROOT/"+defaultRecordsName+")")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Serve session status over HTTP on this address")
	return cmd
}

func newResumeCmd(g *globalFlags) *cobra.Command {
	var rootDir, records, statusAddr string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue a review from an existing records file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(records) == "" {
				return usageError{err: errors.New("--records is required")}
			}
			recordsPath, err := fsutil.ResolvePath(records)
			if err != nil {
				return err
			}
			if rootDir == "" {
				if rootDir, err = inferRoot(recordsPath); err != nil {
					return err
				}
			}
			root, err := fsutil.ResolveRootPath(rootDir)
			if err != nil {
				return err
			}
			return startSession(g, statusAddr, app.Options{
				Root:        root,
				RecordsPath: recordsPath,
				Mode:        store.Resume,
			})
		},
	}
	cmd.Flags().StringVar(&records, "records", "", "Records file written by an earlier session")
	cmd.Flags().StringVar(&rootDir, "root", "", "Video directory (default: directory of the first record)")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Serve session status over HTTP on this address")
	return cmd
}

func newStatsCmd(g *globalFlags, stdout io.Writer) *cobra.Command {
	var records string
	var sessions int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print label counts for a records file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(records) == "" {
				return usageError{err: errors.New("--records is required")}
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			return printStats(cmd.Context(), stdout, cfg, records, sessions)
		},
	}
	cmd.Flags().StringVar(&records, "records", "", "Records file to summarize")
	cmd.Flags().IntVar(&sessions, "sessions", 5, "Number of recent journal sessions to list")
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "videocutter version %s (%s)\n", config.Version, config.GitCommit)
		},
	}
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func startSession(g *globalFlags, statusAddr string, opts app.Options) error {
	if !isTerminal() {
		return errors.New("videocutter needs an interactive terminal")
	}
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if statusAddr != "" {
		cfg.StatusAddr = statusAddr
	}
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := logging.NewLogger(cfg.LogLevel, logFile)
	logger.Info("starting videocutter",
		"version", config.Version,
		"mode", opts.Mode.String(),
		"root", logging.SanitizePath(opts.Root),
		"records", logging.SanitizePath(opts.RecordsPath),
	)
	opts.Config = cfg
	opts.Logger = logger
	opts.Version = config.Version
	if err := runApp(opts); err != nil {
		logger.Error("session ended with error", "error", err)
		return err
	}
	return nil
}

// inferRoot guesses the video directory from the first stored record.
func inferRoot(recordsPath string) (string, error) {
	if _, err := os.Stat(recordsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("records file %s does not exist; pass --root to start it", recordsPath)
		}
		return "", fmt.Errorf("stat records: %w", err)
	}
	st, err := store.Open(recordsPath, store.Resume, nil)
	if err != nil {
		return "", err
	}
	entries := st.Entries()
	if len(entries) == 0 {
		return "", usageError{err: errors.New("records file is empty; pass --root")}
	}
	// Recursive sessions spread records over subdirectories; widen to the
	// nearest directory that holds all of them.
	root := filepath.Dir(entries[0].Path)
	for _, e := range entries[1:] {
		for !fsutil.IsUnder(e.Path, root) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}
	return root, nil
}

func printStats(ctx context.Context, w io.Writer, cfg *config.Config, records string, limit int) error {
	path, err := fsutil.ResolvePath(records)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("records file: %w", err)
	}
	st, err := store.Open(path, store.Resume, nil)
	if err != nil {
		return err
	}
	counts := st.Snapshot()
	fmt.Fprintf(w, "%s\n", logging.SanitizePath(st.Path()))
	fmt.Fprintf(w, "  pass       %s\n", humanize.Comma(int64(counts.Pass)))
	fmt.Fprintf(w, "  fail       %s\n", humanize.Comma(int64(counts.Fail)))
	fmt.Fprintf(w, "  uncertain  %s\n", humanize.Comma(int64(counts.Uncertain)))
	fmt.Fprintf(w, "  total      %s\n", humanize.Comma(int64(counts.Total())))
	if n := len(st.Warnings()); n > 0 {
		fmt.Fprintf(w, "  skipped    %s malformed rows\n", humanize.Comma(int64(n)))
	}

	if !cfg.JournalEnabled || limit <= 0 {
		return nil
	}
	if _, err := os.Stat(cfg.JournalPath); err != nil {
		return nil
	}
	j, err := journal.Open(cfg.JournalPath, nil)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close(store.Counts{})
	sessions, err := j.RecentSessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nrecent sessions")
	for _, s := range sessions {
		state := "open"
		if s.EndedAt != nil {
			state = "took " + strings.TrimSpace(humanize.RelTime(s.StartedAt, *s.EndedAt, "", ""))
		}
		fmt.Fprintf(w, "  %s  %-6s %s  pass %d fail %d uncertain %d  (%s)\n",
			shortID(s.ID), s.Mode, humanize.Time(s.StartedAt),
			s.Counts.Pass, s.Counts.Fail, s.Counts.Uncertain, state)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
