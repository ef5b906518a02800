// Package player drives an mpv window over its JSON IPC socket.
//
// Property reads come from a cache that a reader goroutine keeps current
// through observe_property, so callers on the UI loop never touch the socket.
// Commands are queued to a writer goroutine.
package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/mikhskaz/videocutter/internal/logging"
)

const (
	writeQueue  = 64
	dialTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned once the player has shut down.
	ErrClosed = errors.New("player closed")
	// ErrBusy is returned when the command queue is full.
	ErrBusy = errors.New("player command queue full")
)

// Failure is an asynchronous open failure for Path.
type Failure struct {
	Path string
	Err  error
}

// Config controls how mpv is launched.
type Config struct {
	MPVPath    string
	SocketPath string
	ExtraArgs  []string
	Logger     *slog.Logger
}

// MPV is a running mpv instance.
type MPV struct {
	conn   net.Conn
	cmd    *exec.Cmd
	logger *slog.Logger

	writes   chan []byte
	failures chan Failure
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	mu    sync.RWMutex
	state state
	reqID int64
}

type state struct {
	path     string
	pending  []string
	entries  map[int64]string
	started  string
	position float64
	duration float64
	rate     float64
	paused   bool
}

// observed properties, keyed by observe id.
var observed = map[int]string{
	1: "time-pos",
	2: "duration",
	3: "speed",
	4: "pause",
}

// Start launches mpv in idle mode and connects to its IPC socket.
func Start(ctx context.Context, cfg Config) (*MPV, error) {
	bin := cfg.MPVPath
	if bin == "" {
		bin = "mpv"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("find mpv: %w", err)
	}
	sock := cfg.SocketPath
	if sock == "" {
		sock = filepath.Join(os.TempDir(), fmt.Sprintf("videocutter-mpv-%d.sock", os.Getpid()))
	}
	os.Remove(sock)

	args := []string{
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-ipc-server=" + sock,
		"--really-quiet",
	}
	args = append(args, cfg.ExtraArgs...)
	cmd := exec.Command(bin, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	conn, err := dialSocket(ctx, sock)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	m := NewConn(conn, cfg.Logger)
	m.cmd = cmd
	return m, nil
}

func dialSocket(ctx context.Context, sock string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", sock)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv socket %s: %w", sock, err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// NewConn wraps an established IPC connection.
func NewConn(conn net.Conn, logger *slog.Logger) *MPV {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &MPV{
		conn:     conn,
		logger:   logging.WithComponent(logger, "player"),
		writes:   make(chan []byte, writeQueue),
		failures: make(chan Failure, 8),
		done:     make(chan struct{}),
		state:    state{rate: 1.0, entries: make(map[int64]string)},
	}
	m.wg.Add(2)
	go m.writeLoop()
	go m.readLoop()
	for id := 1; id <= len(observed); id++ {
		m.send("observe_property", id, observed[id])
	}
	return m
}

// Failures delivers open failures detected after Load returned.
func (m *MPV) Failures() <-chan Failure {
	return m.failures
}

// Done is closed once the connection ends.
func (m *MPV) Done() <-chan struct{} {
	return m.done
}

func (m *MPV) Load(path string) error {
	m.mu.Lock()
	m.state.path = path
	if len(m.state.pending) >= writeQueue {
		m.state.pending = m.state.pending[1:]
	}
	m.state.pending = append(m.state.pending, path)
	m.state.position = 0
	m.state.duration = 0
	m.mu.Unlock()
	if err := m.send("loadfile", path, "replace"); err != nil {
		return err
	}
	return m.send("set_property", "pause", false)
}

func (m *MPV) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return seconds(m.state.position)
}

func (m *MPV) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return seconds(m.state.duration)
}

func (m *MPV) Rate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.rate
}

// Paused reports the cached pause state.
func (m *MPV) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.paused
}

func (m *MPV) SetRate(rate float64) error {
	if err := m.send("set_property", "speed", rate); err != nil {
		return err
	}
	m.mu.Lock()
	m.state.rate = rate
	m.mu.Unlock()
	return nil
}

// SetPaused sets the pause property explicitly.
func (m *MPV) SetPaused(paused bool) error {
	return m.send("set_property", "pause", paused)
}

func (m *MPV) TogglePause() error {
	return m.send("cycle", "pause")
}

func (m *MPV) Seek(offset time.Duration) error {
	return m.send("seek", offset.Seconds(), "relative+exact")
}

func (m *MPV) SeekTo(pos time.Duration) error {
	return m.send("seek", pos.Seconds(), "absolute+exact")
}

// Close asks mpv to quit and releases the connection.
func (m *MPV) Close() error {
	m.send("quit")
	m.shutdown()
	m.wg.Wait()
	if m.cmd != nil {
		waitErr := make(chan error, 1)
		go func() { waitErr <- m.cmd.Wait() }()
		select {
		case <-waitErr:
		case <-time.After(2 * time.Second):
			m.cmd.Process.Kill()
			<-waitErr
		}
	}
	return nil
}

func (m *MPV) shutdown() {
	m.once.Do(func() {
		close(m.done)
		m.conn.Close()
	})
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

func (m *MPV) send(args ...any) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	m.mu.Lock()
	m.reqID++
	id := m.reqID
	m.mu.Unlock()

	b, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return fmt.Errorf("encode mpv command: %w", err)
	}
	b = append(b, '\n')
	select {
	case m.writes <- b:
		return nil
	case <-m.done:
		return ErrClosed
	default:
		return ErrBusy
	}
}

func (m *MPV) writeLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case b := <-m.writes:
			if _, err := m.conn.Write(b); err != nil {
				m.logger.Warn("mpv write failed", "error", err)
				m.shutdown()
				return
			}
		}
	}
}

type message struct {
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
	Error     string          `json:"error"`
	RequestID int64           `json:"request_id"`
	EntryID   int64           `json:"playlist_entry_id"`
}

func (m *MPV) readLoop() {
	defer m.wg.Done()
	defer m.shutdown()
	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			m.logger.Debug("ignoring mpv line", "error", err)
			continue
		}
		m.handle(msg)
	}
}

func (m *MPV) handle(msg message) {
	switch msg.Event {
	case "property-change":
		m.updateProperty(msg.Name, msg.Data)
	case "start-file":
		m.mu.Lock()
		m.fileStarted(msg.EntryID)
		m.mu.Unlock()
	case "end-file":
		m.mu.Lock()
		path := m.fileEnded(msg.EntryID)
		current := m.state.path
		m.mu.Unlock()
		if msg.Reason != "error" {
			return
		}
		if path == "" || path != current {
			m.logger.Debug("ignoring stale open failure", "path", path, "current", current)
			return
		}
		reason := msg.FileError
		if reason == "" {
			reason = "unknown error"
		}
		f := Failure{Path: path, Err: fmt.Errorf("mpv could not play file: %s", reason)}
		select {
		case m.failures <- f:
		default:
			m.logger.Warn("dropping open failure", "path", path)
		}
	case "":
		if msg.Error != "" && msg.Error != "success" {
			m.logger.Debug("mpv command error", "request_id", msg.RequestID, "error", msg.Error)
		}
	}
}

// fileStarted binds the oldest outstanding load to the playlist entry mpv
// just started. Callers hold m.mu.
func (m *MPV) fileStarted(id int64) {
	if len(m.state.pending) == 0 {
		m.state.started = ""
		return
	}
	path := m.state.pending[0]
	m.state.pending = m.state.pending[1:]
	m.state.started = path
	if id != 0 {
		m.state.entries[id] = path
	}
}

// fileEnded returns the path of the entry that ended, or "" when it cannot
// be tied to a load. Callers hold m.mu.
func (m *MPV) fileEnded(id int64) string {
	if id != 0 {
		if path, ok := m.state.entries[id]; ok {
			delete(m.state.entries, id)
			return path
		}
	}
	return m.state.started
}

func (m *MPV) updateProperty(name string, data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case "time-pos":
		m.state.position = decodeFloat(data)
	case "duration":
		m.state.duration = decodeFloat(data)
	case "speed":
		if v := decodeFloat(data); v > 0 {
			m.state.rate = v
		}
	case "pause":
		var b bool
		if json.Unmarshal(data, &b) == nil {
			m.state.paused = b
		}
	}
}

// decodeFloat returns 0 for null or non-numeric data.
func decodeFloat(data json.RawMessage) float64 {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0
	}
	return v
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
