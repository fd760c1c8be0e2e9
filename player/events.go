package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/reel-cli/reel/log"
	"github.com/sirupsen/logrus"
)

// observed lists the mpv properties the engine state is derived from.
var observed = []string{
	"time-pos",
	"duration",
	"pause",
	"paused-for-cache",
	"seeking",
	"seekable",
	"idle-active",
}

// eventHandler receives property changes (name, value) and lifecycle events (event name, message).
type eventHandler func(name string, msg ipcMessage)

// EventListener holds a persistent connection that receives mpv notifications.
// Properties are observed on that same connection since mpv only notifies the observing client.
type EventListener struct {
	socket  string
	handler eventHandler

	mu        sync.Mutex
	conn      net.Conn
	listening bool
	done      chan struct{}
}

func newEventListener(socket string, handler eventHandler) *EventListener {
	return &EventListener{socket: socket, handler: handler}
}

// Start subscribes to the observed properties and starts the read loop.
func (el *EventListener) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.listening {
		return nil
	}

	conn, err := net.Dial("unix", el.socket)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	for i, name := range observed {
		if err := writeCommand(conn, 0, []any{"observe_property", i + 1, name}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}

	el.conn = conn
	el.listening = true
	el.done = make(chan struct{})
	go el.readLoop(conn, el.done)

	log.Fields(logrus.Fields{"socket": el.socket, "properties": len(observed)}).Debug("mpv event listener started")
	return nil
}

// Stop closes the connection and waits for the read loop to exit.
func (el *EventListener) Stop() {
	el.mu.Lock()
	if !el.listening {
		el.mu.Unlock()
		return
	}
	el.listening = false
	_ = el.conn.Close()
	done := el.done
	el.mu.Unlock()

	<-done
}

func (el *EventListener) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		el.dispatch(msg)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warnf("mpv event listener: %v", err)
	}

	el.mu.Lock()
	el.listening = false
	el.mu.Unlock()
}

func (el *EventListener) dispatch(msg ipcMessage) {
	if el.handler == nil {
		return
	}

	switch msg.Event {
	case "":
		// reply to an observe_property command
	case "property-change":
		if msg.Name != "" {
			el.handler(msg.Name, msg)
		}
	default:
		el.handler(msg.Event, msg)
	}
}
