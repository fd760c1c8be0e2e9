package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// errPropertyUnavailable is returned by mpv for properties that have no value yet, e.g. time-pos while idle.
var errPropertyUnavailable = errors.New("property unavailable")

type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcMessage struct {
	Data      any    `json:"data"`
	Error     string `json:"error"`
	RequestID int64  `json:"request_id"`
	Event     string `json:"event"`
	Name      string `json:"name"`
	ID        int64  `json:"id"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

const (
	ipcRetries      = 3
	ipcRetryDelay   = 100 * time.Millisecond
	ipcReadDeadline = time.Second
)

// ipc issues single request/response commands to an mpv socket.
// Each command uses its own connection; event lines broadcast to it are skipped.
type ipc struct {
	socket string
	seq    atomic.Int64
	mu     sync.Mutex
}

func newIPC(socket string) *ipc {
	return &ipc{socket: socket}
}

func (c *ipc) send(command ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < ipcRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(ipcRetryDelay)
		}

		data, err := c.once(command)
		if err == nil {
			return data, nil
		}

		// mpv answered, retrying will not change the answer
		var mpvErr *mpvError
		if errors.As(err, &mpvErr) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("ipc %v failed after %d attempts: %w", command[0], ipcRetries, lastErr)
}

func (c *ipc) once(command []any) (any, error) {
	conn, err := net.Dial("unix", c.socket)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	id := c.seq.Add(1)
	if err := writeCommand(conn, id, command); err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(ipcReadDeadline)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		if msg.Event != "" || msg.RequestID != id {
			continue
		}

		return msg.Data, checkReply(msg.Error)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, errors.New("read: connection closed before reply")
}

func writeCommand(conn net.Conn, id int64, command []any) error {
	payload, err := json.Marshal(ipcCommand{Command: command, RequestID: id})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	// mpv requires newline-delimited JSON
	if _, err = conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

type mpvError struct {
	msg string
}

func (e *mpvError) Error() string {
	return "mpv error: " + e.msg
}

func (e *mpvError) Is(target error) bool {
	return target == errPropertyUnavailable && e.msg == errPropertyUnavailable.Error()
}

func checkReply(status string) error {
	if status == "" || status == "success" {
		return nil
	}
	return &mpvError{msg: status}
}
