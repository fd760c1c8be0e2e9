package player

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMock(t *testing.T) {
	Convey("Given a mock engine", t, func() {
		m := NewMock(time.Hour)

		Convey("When a source is opened", func() {
			err := m.Open(context.Background(), Source{URL: "http://media.local/a"})
			So(err, ShouldBeNil)

			Convey("Then it should be opening at zero", func() {
				So(m.State(), ShouldEqual, StateOpening)
				So(m.Position(), ShouldEqual, time.Duration(0))
				So(len(m.Opened()), ShouldEqual, 1)
			})

			Convey("And leaving opening should emit opened", func() {
				drain(m.Events())
				m.SetState(StatePlaying)
				So(kinds(drain(m.Events())), ShouldResemble, []EventKind{EventOpened, EventStateChanged})
			})

			Convey("And advancing only moves while playing", func() {
				m.Advance(time.Second)
				So(m.Position(), ShouldEqual, time.Duration(0))

				So(m.Play(), ShouldBeNil)
				m.Advance(time.Second)
				So(m.Position(), ShouldEqual, time.Second)
			})

			Convey("And ignored seeks are recorded but do not move", func() {
				m.HonorSeeks(false)
				So(m.Seek(time.Minute), ShouldBeNil)
				So(m.Position(), ShouldEqual, time.Duration(0))
				So(m.Seeks(), ShouldResemble, []time.Duration{time.Minute})
			})

			Convey("And stop returns to none", func() {
				So(m.Stop(), ShouldBeNil)
				So(m.State(), ShouldEqual, StateNone)
				_, _, stops := m.Calls()
				So(stops, ShouldEqual, 1)
			})
		})

		Convey("When open is set to fail", func() {
			m.FailOpen(errors.New("boom"))

			Convey("Then Open should return the error", func() {
				So(m.Open(context.Background(), Source{}), ShouldNotBeNil)
			})
		})
	})

	Convey("A snapshot reflects the engine", t, func() {
		m := NewMock(time.Minute)
		m.SetState(StatePaused)
		m.SetPosition(5 * time.Second)
		now := time.Unix(100, 0)

		snap := Capture(m, now)
		So(snap.State, ShouldEqual, StatePaused)
		So(snap.Position, ShouldEqual, 5*time.Second)
		So(snap.Duration, ShouldEqual, time.Minute)
		So(snap.At, ShouldEqual, now)
	})

	Convey("States print their names", t, func() {
		So(StateBuffering.String(), ShouldEqual, "buffering")
		So(State(42).String(), ShouldEqual, "none")
		So(EventFailed.String(), ShouldEqual, "failed")
	})
}
