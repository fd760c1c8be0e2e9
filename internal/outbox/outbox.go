// Package outbox queues stop reports that could not reach the server and replays them on the next run.
package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"time"

	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/where"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Entry is a single deferred report.
type Entry struct {
	Timestamp int64         `json:"timestamp"`
	Report    server.Report `json:"report"`
}

// Outbox is an append-only log of deferred reports.
type Outbox struct {
	path  string
	delay func(attempt int) time.Duration
}

// New returns an outbox backed by the file at path.
func New(path string) *Outbox {
	return &Outbox{path: path, delay: backoff}
}

// Default returns the outbox at its usual location.
func Default() *Outbox {
	return New(where.Outbox())
}

// backoff grows exponentially with jitter to avoid hammering a server that just came back.
func backoff(attempt int) time.Duration {
	attempt = min(attempt, 6)
	return time.Duration((1<<attempt)*100)*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond
}

// Push appends a report to the log.
func (o *Outbox) Push(r *server.Report) error {
	f, err := filesystem.API().OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(Entry{
		Timestamp: time.Now().Unix(),
		Report:    *r,
	})
}

// Pending returns the queued entries. Malformed lines are skipped.
func (o *Outbox) Pending() ([]Entry, error) {
	content, err := filesystem.API().ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	decoder := json.NewDecoder(bytes.NewReader(content))
	for decoder.More() {
		var e Entry
		if err := decoder.Decode(&e); err != nil {
			break
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Replay delivers queued reports and keeps only those that failed again.
// It returns the number delivered.
func (o *Outbox) Replay(ctx context.Context, reporter server.Reporter) (int, error) {
	entries, err := o.Pending()
	if err != nil || len(entries) == 0 {
		return 0, err
	}

	var failed []Entry
	for i, e := range entries {
		if i > 0 {
			select {
			case <-ctx.Done():
				failed = append(failed, entries[i:]...)
				return len(entries) - len(failed), o.rewrite(failed)
			case <-time.After(o.delay(i)):
			}
		}

		report := e.Report
		if err := reporter.ReportStopped(ctx, &report); err != nil {
			log.Fields(logrus.Fields{"item": report.ItemID, "error": err}).Warn("outbox: replay failed")
			failed = append(failed, e)
		}
	}

	log.Fields(logrus.Fields{"sent": len(entries) - len(failed), "kept": len(failed)}).Info("outbox: replayed")
	return len(entries) - len(failed), o.rewrite(failed)
}

func (o *Outbox) rewrite(entries []Entry) error {
	if len(entries) == 0 {
		err := filesystem.API().Remove(o.path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			return err
		}
	}

	return filesystem.API().WriteFile(o.path, buf.Bytes(), os.ModePerm)
}

// Size returns the number of queued reports.
func (o *Outbox) Size() int {
	entries, _ := o.Pending()
	return len(lo.Filter(entries, func(e Entry, _ int) bool { return e.Report.ItemID != "" }))
}
