package player

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reel-cli/reel/constant"
	"github.com/reel-cli/reel/log"
	"github.com/sirupsen/logrus"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	quitTimeout       = 3 * time.Second
)

// mpvStatus mirrors the observed mpv properties.
type mpvStatus struct {
	loading  bool
	loaded   bool
	idle     bool
	paused   bool
	cache    bool
	seeking  bool
	seekable bool
	position time.Duration
	duration time.Duration
}

func (s mpvStatus) state() State {
	switch {
	case s.loading:
		return StateOpening
	case !s.loaded:
		return StateNone
	case s.cache || s.seeking:
		return StateBuffering
	case s.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// MPV implements Engine on top of an idle mpv process controlled via JSON-IPC.
type MPV struct {
	binary     string
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	ipc        *ipc
	listener   *EventListener
	events     chan Event

	mu     sync.RWMutex
	status mpvStatus
}

// NewMPV creates an engine for the given mpv binary. The process starts on the first Open.
func NewMPV(binary string) *MPV {
	if binary == "" {
		binary = "mpv"
	}

	exited := make(chan struct{})
	close(exited)

	return &MPV{
		binary: binary,
		exited: exited,
		events: make(chan Event, eventBuffer),
	}
}

// Open loads src into mpv, starting the process if it is not running.
func (m *MPV) Open(ctx context.Context, src Source) error {
	target, err := sanitizeMediaTarget(src.URL)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	if !m.running() {
		if err := m.start(ctx); err != nil {
			return err
		}
	}

	if _, err := m.ipc.send("set_property", "http-header-fields", headerFields(src.Headers)); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}

	if title := sanitizeTitle(src.Title); title != "" {
		if _, err := m.ipc.send("set_property", "force-media-title", title); err != nil {
			return fmt.Errorf("set title: %w", err)
		}
	}

	m.update(func(s *mpvStatus) {
		s.loading = true
		s.loaded = false
		s.position = 0
		s.duration = 0
	})

	if _, err := m.ipc.send("loadfile", target, "replace"); err != nil {
		m.update(func(s *mpvStatus) { s.loading = false })
		return fmt.Errorf("loadfile: %w", err)
	}

	log.Fields(logrus.Fields{"socket": m.socketPath, "title": src.Title}).Debug("mpv loadfile")
	return nil
}

func (m *MPV) start(ctx context.Context) error {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Errorf("generate socket name: %w", err)
	}
	m.socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("%s-%x.sock", constant.Reel, randomBytes))

	// only the socket and idle mode are forced, everything else comes from the user's mpv.conf
	args := []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--input-ipc-server=%s", m.socketPath),
		"--force-window=yes",
		"--idle=yes",
	}

	m.cmd = exec.Command(m.binary, args...)
	m.cmd.SysProcAttr = detachedAttr()
	m.cmd.Stdout = nil
	m.cmd.Stderr = nil
	m.cmd.Stdin = nil

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.binary, err)
	}

	exited := make(chan struct{})
	m.exited = exited
	go func(cmd *exec.Cmd) {
		_ = cmd.Wait()
		close(exited)
	}(m.cmd)

	if err := m.waitForSocket(ctx); err != nil {
		select {
		case <-m.exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = kill(m.cmd)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	m.ipc = newIPC(m.socketPath)
	m.listener = newEventListener(m.socketPath, m.handle)
	if err := m.listener.Start(); err != nil {
		_ = kill(m.cmd)
		return err
	}

	go m.watchExit(exited)
	return nil
}

func (m *MPV) watchExit(exited <-chan struct{}) {
	<-exited
	m.update(func(s *mpvStatus) { *s = mpvStatus{} })
	emit(m.events, Event{Kind: EventEnded, State: StateNone})
}

func (m *MPV) waitForSocket(ctx context.Context) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(socketWaitDelay):
		}

		select {
		case <-m.exited:
			return errors.New("mpv exited before socket was ready")
		default:
		}

		conn, err := net.Dial("unix", m.socketPath)
		if err == nil {
			_ = conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

func (m *MPV) running() bool {
	if m.ipc == nil {
		return false
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

func (m *MPV) Play() error {
	return m.set("pause", false)
}

func (m *MPV) Pause() error {
	return m.set("pause", true)
}

func (m *MPV) Seek(pos time.Duration) error {
	if !m.running() {
		return errors.New("mpv is not running")
	}
	_, err := m.ipc.send("seek", pos.Seconds(), "absolute")
	return err
}

func (m *MPV) Stop() error {
	if !m.running() {
		return nil
	}
	_, err := m.ipc.send("stop")
	return err
}

func (m *MPV) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.position
}

func (m *MPV) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.duration
}

func (m *MPV) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.state()
}

func (m *MPV) CanPause() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.loaded
}

func (m *MPV) CanSeek() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.loaded && m.status.seekable
}

func (m *MPV) Events() <-chan Event {
	return m.events
}

// Close quits mpv, killing it if it does not exit in time, and removes the socket.
func (m *MPV) Close() error {
	if m.ipc == nil {
		return nil
	}

	if m.listener != nil {
		m.listener.Stop()
	}

	_, _ = m.ipc.send("quit")

	select {
	case <-m.exited:
	case <-time.After(quitTimeout):
		_ = kill(m.cmd)
	}

	_ = os.Remove(m.socketPath)
	m.ipc = nil
	return nil
}

func (m *MPV) set(property string, value any) error {
	if !m.running() {
		return errors.New("mpv is not running")
	}
	_, err := m.ipc.send("set_property", property, value)
	return err
}

func (m *MPV) update(mutate func(s *mpvStatus)) State {
	m.mu.Lock()
	before := m.status.state()
	mutate(&m.status)
	after := m.status.state()
	pos := m.status.position
	m.mu.Unlock()

	if before != after {
		emit(m.events, Event{Kind: EventStateChanged, State: after, Position: pos})
	}
	return after
}

// handle folds one mpv notification into the engine status.
func (m *MPV) handle(name string, msg ipcMessage) {
	switch name {
	case "time-pos":
		pos := seconds(msg.Data)
		state := m.update(func(s *mpvStatus) { s.position = pos })
		emit(m.events, Event{Kind: EventPositionChanged, State: state, Position: pos})
	case "duration":
		m.update(func(s *mpvStatus) { s.duration = seconds(msg.Data) })
	case "pause":
		m.update(func(s *mpvStatus) { s.paused = flag(msg.Data) })
	case "paused-for-cache":
		m.update(func(s *mpvStatus) { s.cache = flag(msg.Data) })
	case "seeking":
		m.update(func(s *mpvStatus) { s.seeking = flag(msg.Data) })
	case "seekable":
		m.update(func(s *mpvStatus) { s.seekable = flag(msg.Data) })
	case "idle-active":
		m.update(func(s *mpvStatus) { s.idle = flag(msg.Data) })
	case "start-file":
		m.update(func(s *mpvStatus) { s.loading = true })
	case "file-loaded":
		state := m.update(func(s *mpvStatus) {
			s.loading = false
			s.loaded = true
		})
		emit(m.events, Event{Kind: EventOpened, State: state})
	case "end-file":
		state := m.update(func(s *mpvStatus) {
			s.loading = false
			s.loaded = false
			s.cache = false
			s.seeking = false
		})

		switch msg.Reason {
		case "eof":
			emit(m.events, Event{Kind: EventEnded, State: state})
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown"
			}
			emit(m.events, Event{Kind: EventFailed, State: state, Err: fmt.Errorf("mpv: %s", reason)})
		}
	}
}

func seconds(v any) time.Duration {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func flag(v any) bool {
	b, _ := v.(bool)
	return b
}

// headerFields renders headers in the "Name: value" list form mpv expects, sorted for stable output.
func headerFields(headers map[string]string) []string {
	fields := make([]string, 0, len(headers))
	for k, v := range headers {
		fields = append(fields, fmt.Sprintf("%s: %s", k, v))
	}
	sort.Strings(fields)
	return fields
}

// sanitizeMediaTarget rejects anything that mpv could interpret as a flag or a non-http protocol.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", errors.New("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", errors.New("invalid control characters in URL")
	}

	if strings.HasPrefix(l, "-") {
		return "", errors.New("url must not start with '-'")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}
