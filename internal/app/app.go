package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikhskaz/videocutter/internal/catalog"
	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/config"
	"github.com/mikhskaz/videocutter/internal/journal"
	"github.com/mikhskaz/videocutter/internal/logging"
	"github.com/mikhskaz/videocutter/internal/player"
	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/status"
	"github.com/mikhskaz/videocutter/internal/store"
)

// Options describes one review session.
type Options struct {
	Root        string
	RecordsPath string
	Mode        store.Mode
	Config      *config.Config
	Logger      *slog.Logger
	Version     string
}

type teaProgram interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) teaProgram {
	return tea.NewProgram(m, tea.WithAltScreen())
}

var playerFactory = func(ctx context.Context, cfg player.Config) (mediaPlayer, error) {
	return player.Start(ctx, cfg)
}

// Run opens the records file, starts the player and drives the review loop
// until the user quits or a fatal error stops the session.
func Run(opts Options) error {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	cfg := opts.Config
	logger := opts.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := store.Open(opts.RecordsPath, opts.Mode, logger)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	for _, w := range records.Warnings() {
		logger.Warn("skipped record", "error", w)
	}

	extractor := clip.New(clip.Config{
		FFmpegPath: cfg.FFmpegPath,
		Timeout:    cfg.ExtractTimeout,
		Logger:     logger,
	})
	if !extractor.Available() {
		logger.Warn("ffmpeg not found, fail labels are disabled", "ffmpeg", cfg.FFmpegPath)
	}

	feed := &eventFeed{}
	presenters := []session.Presenter{feed}

	var jrnl *journal.Journal
	if cfg.JournalEnabled && cfg.JournalPath != "" {
		jrnl, err = openJournal(ctx, cfg.JournalPath, opts, logger)
		if err != nil {
			logger.Warn("journal disabled", "error", err)
			jrnl = nil
		}
	}
	if jrnl != nil {
		logger = logging.WithSessionID(logger, jrnl.SessionID())
		presenters = append(presenters, jrnl)
		extractor.SetObserver(jrnl.ObserveAttempt)
	}

	mpv, err := playerFactory(ctx, player.Config{
		MPVPath: cfg.MPVPath,
		Logger:  logger,
	})
	if err != nil {
		closeJournal(jrnl, records.Snapshot(), logger)
		return fmt.Errorf("start player: %w", err)
	}
	defer func() {
		if err := mpv.Close(); err != nil {
			logger.Debug("close player", "error", err)
		}
	}()

	ctrl, err := session.New(session.Options{
		Root:         opts.Root,
		FailuresDir:  cfg.FailuresDir,
		HistoryDepth: cfg.HistoryDepth,
		MinSegment:   cfg.MinSegment,
		SeekStep:     cfg.SeekStep,
		Player:       mpv,
		Presenter:    session.Fanout(presenters...),
		Store:        records,
		Extractor:    extractor,
		Logger:       logger,
	})
	if err != nil {
		closeJournal(jrnl, records.Snapshot(), logger)
		return fmt.Errorf("create session: %w", err)
	}

	if cfg.StatusAddr != "" {
		srv := status.NewServer(status.Config{
			Addr:      cfg.StatusAddr,
			Source:    ctrl,
			SessionID: sessionID(jrnl),
			Version:   opts.Version,
			Logger:    logging.WithComponent(opts.Logger, "status"),
		})
		if err := srv.Start(); err != nil {
			logger.Warn("status server disabled", "addr", cfg.StatusAddr, "error", err)
		} else {
			logger.Info("status server listening", "addr", srv.Addr())
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	m := newModel(modelDeps{
		ctx:  ctx,
		root: opts.Root,
		scanOptions: catalog.Options{
			FailuresDir: cfg.FailuresDir,
			Recursive:   cfg.Recursive,
		},
		ctrl:   ctrl,
		feed:   feed,
		player: mpv,
		prober: extractor,
		logger: logging.WithComponent(logger, "ui"),
	})

	final, runErr := programFactory(m).Run()
	closeJournal(jrnl, records.Snapshot(), logger)
	if runErr != nil {
		return fmt.Errorf("run program: %w", runErr)
	}
	if fm, ok := final.(model); ok && fm.fatal != nil {
		return fm.fatal
	}
	return nil
}

func openJournal(ctx context.Context, path string, opts Options, logger *slog.Logger) (*journal.Journal, error) {
	j, err := journal.Open(path, logger)
	if err != nil {
		return nil, err
	}
	if _, err := j.BeginSession(ctx, opts.Root, opts.RecordsPath, opts.Mode.String()); err != nil {
		_ = j.Close(store.Counts{})
		return nil, err
	}
	return j, nil
}

func closeJournal(j *journal.Journal, counts store.Counts, logger *slog.Logger) {
	if j == nil {
		return
	}
	if err := j.Close(counts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("close journal", "error", err)
	}
}

func sessionID(j *journal.Journal) string {
	if j == nil {
		return ""
	}
	return j.SessionID()
}
