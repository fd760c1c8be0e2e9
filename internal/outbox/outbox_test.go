package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/server"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

type fakeReporter struct {
	fail    map[string]bool
	stopped  []string
}

func (f *fakeReporter) ReportStart(context.Context, *server.Report) error    { return nil }
func (f *fakeReporter) ReportProgress(context.Context, *server.Report) error { return nil }
func (f *fakeReporter) ReportStopped(_ context.Context, r *server.Report) error {
	if f.fail[r.ItemID] {
		return errors.New("offline")
	}
	f.stopped = append(f.stopped, r.ItemID)
	return nil
}

func newTestOutbox(name string) *Outbox {
	o := New("/outbox/" + name + ".jsonl")
	o.delay = func(int) time.Duration { return 0 }
	return o
}

func TestOutbox(t *testing.T) {
	Convey("Given an outbox with two queued reports", t, func() {
		o := newTestOutbox(t.Name())
		_ = filesystem.API().Remove(o.path)
		So(o.Push(&server.Report{ItemID: "a", PositionTicks: 10}), ShouldBeNil)
		So(o.Push(&server.Report{ItemID: "b", PositionTicks: 20}), ShouldBeNil)
		So(o.Size(), ShouldEqual, 2)

		Convey("When every replay succeeds", func() {
			r := &fakeReporter{}
			sent, err := o.Replay(context.Background(), r)

			Convey("Then the log should be empty", func() {
				So(err, ShouldBeNil)
				So(sent, ShouldEqual, 2)
				So(r.stopped, ShouldResemble, []string{"a", "b"})
				So(o.Size(), ShouldEqual, 0)
			})
		})

		Convey("When one replay fails", func() {
			r := &fakeReporter{fail: map[string]bool{"a": true}}
			sent, err := o.Replay(context.Background(), r)

			Convey("Then only the failed report should remain", func() {
				So(err, ShouldBeNil)
				So(sent, ShouldEqual, 1)
				pending, err := o.Pending()
				So(err, ShouldBeNil)
				So(pending, ShouldHaveLength, 1)
				So(pending[0].Report.ItemID, ShouldEqual, "a")
				So(pending[0].Report.PositionTicks, ShouldEqual, 10)
			})
		})
	})

	Convey("Replaying a missing outbox does nothing", t, func() {
		o := newTestOutbox("missing")
		sent, err := o.Replay(context.Background(), &fakeReporter{})
		So(err, ShouldBeNil)
		So(sent, ShouldEqual, 0)
	})

	Convey("Backoff grows with the attempt", t, func() {
		So(backoff(1), ShouldBeGreaterThanOrEqualTo, 200*time.Millisecond)
		So(backoff(3), ShouldBeGreaterThanOrEqualTo, 800*time.Millisecond)
		So(backoff(20), ShouldBeLessThan, 6500*time.Millisecond)
	})
}
