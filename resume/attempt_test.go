package resume

import (
	"testing"
	"time"

	"github.com/reel-cli/reel/player"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func snap(state player.State, pos time.Duration, at time.Duration) player.Snapshot {
	return player.Snapshot{
		State:    state,
		Position: pos,
		Duration: 2 * time.Hour,
		CanPause: true,
		CanSeek:  true,
		At:       epoch.Add(at),
	}
}

func TestAttemptWaits(t *testing.T) {
	Convey("Given a direct attempt", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)

		Convey("When the engine is opening", func() {
			step := a.Poll(snap(player.StateOpening, 0, 0))

			Convey("Then it should be in progress without seeking", func() {
				So(step.State, ShouldEqual, InProgress)
				So(step.Actions, ShouldBeEmpty)
				So(a.Attempts(), ShouldEqual, 0)
			})
		})

		Convey("When the engine buffers at zero", func() {
			step := a.Poll(snap(player.StateBuffering, 0, 0))

			Convey("Then it should not seek yet", func() {
				So(step.State, ShouldEqual, InProgress)
				So(step.Actions, ShouldBeEmpty)
			})
		})

		Convey("When the engine reports nothing loaded", func() {
			step := a.Poll(snap(player.StateNone, 0, 0))
			So(step.Actions, ShouldBeEmpty)
		})
	})
}

func TestAttemptDirect(t *testing.T) {
	Convey("Given a direct attempt and an engine playing from zero", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		step := a.Poll(snap(player.StatePlaying, 0, 0))

		Convey("Then it should seek to the target", func() {
			So(step.State, ShouldEqual, InProgress)
			So(step.Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 600 * time.Second}})
			So(a.Attempts(), ShouldEqual, 1)
		})

		Convey("Then it should hold off until the retry delay passes", func() {
			step := a.Poll(snap(player.StatePlaying, 0, 100*time.Millisecond))
			So(step.Actions, ShouldBeEmpty)
			So(a.Attempts(), ShouldEqual, 1)
		})

		Convey("When the engine lands on the target", func() {
			step := a.Poll(snap(player.StatePlaying, 600*time.Second, 600*time.Millisecond))

			Convey("Then it should verify", func() {
				So(step.State, ShouldEqual, Verifying)
			})

			Convey("And checking within a second should not count", func() {
				step := a.Poll(snap(player.StatePlaying, 600*time.Second, 900*time.Millisecond))
				So(step.State, ShouldEqual, Verifying)
				So(a.StuckChecks(), ShouldEqual, 0)
			})

			Convey("And advancing should succeed", func() {
				step := a.Poll(snap(player.StatePlaying, 601*time.Second, 1600*time.Millisecond))
				So(step.State, ShouldEqual, Succeeded)

				Convey("And polling again should have no effect", func() {
					step := a.Poll(snap(player.StatePlaying, 0, 10*time.Second))
					So(step.State, ShouldEqual, Succeeded)
					So(step.Actions, ShouldBeEmpty)
				})
			})
		})
	})

	Convey("Given a target past the end of the media", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		s := snap(player.StatePlaying, 0, 0)
		s.Duration = 605 * time.Second

		Convey("Then the seek should be clamped away from the end", func() {
			step := a.Poll(s)
			So(step.Actions[0].Position, ShouldEqual, 595*time.Second)

			Convey("And landing on the clamped target should verify", func() {
				s.Position = 595 * time.Second
				s.At = epoch.Add(time.Second)
				So(a.Poll(s).State, ShouldEqual, Verifying)
			})
		})
	})

	Convey("Given an engine that ignores every seek", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		var seeks int
		var last Step
		for i := 0; i < 4; i++ {
			last = a.Poll(snap(player.StatePlaying, 0, time.Duration(i)*600*time.Millisecond))
			seeks += len(last.Actions)
		}

		Convey("Then it should fail once the retry budget is exhausted", func() {
			So(seeks, ShouldEqual, DirectPolicy.MaxAttempts)
			So(last.State, ShouldEqual, Failed)
			So(last.Err, ShouldEqual, errBudgetExhausted)
		})
	})

	Convey("Given an engine stuck opening", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		a.Poll(snap(player.StateOpening, 0, 0))

		Convey("Then the overall timeout should fail the attempt", func() {
			step := a.Poll(snap(player.StateOpening, 0, DirectPolicy.Timeout+time.Second))
			So(step.State, ShouldEqual, Failed)
			So(step.Err, ShouldEqual, errTimeout)
		})
	})
}

func TestAttemptStuck(t *testing.T) {
	Convey("Given a direct attempt verifying at the target", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		So(a.Poll(snap(player.StatePlaying, 600*time.Second, 0)).State, ShouldEqual, Verifying)

		Convey("When the position never moves", func() {
			var steps []Step
			for i := 1; i <= MaxStuckChecks; i++ {
				steps = append(steps, a.Poll(snap(player.StatePlaying, 600*time.Second, time.Duration(i)*time.Second)))
			}

			Convey("Then recovery should escalate from pause to forward seeks", func() {
				So(steps[0].State, ShouldEqual, RecoveryNeeded)
				So(steps[0].Actions, ShouldResemble, []Action{{Kind: ActionPauseResume, Delay: RecoveryPauseDelay}})
				So(steps[1].Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 601 * time.Second}})
				So(steps[2].Actions[0].Kind, ShouldEqual, ActionSeek)
			})

			Convey("Then it should fail exactly at the last allowed check", func() {
				for _, s := range steps[:MaxStuckChecks-1] {
					So(s.State, ShouldEqual, RecoveryNeeded)
				}
				So(steps[MaxStuckChecks-1].State, ShouldEqual, Failed)
				So(steps[MaxStuckChecks-1].Err, ShouldEqual, errStuck)
			})
		})
	})

	Convey("Given an adaptive attempt verifying near the start", t, func() {
		a := NewAttempt(3*time.Second, AdaptivePolicy)
		So(a.Poll(snap(player.StatePlaying, 3*time.Second, 0)).State, ShouldEqual, Verifying)

		Convey("When the position never moves", func() {
			var steps []Step
			for i := 1; i < MaxStuckChecks; i++ {
				steps = append(steps, a.Poll(snap(player.StatePlaying, 3*time.Second, time.Duration(i)*time.Second)))
			}

			Convey("Then the third level should seek backward clamped at zero", func() {
				So(steps[2].Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 0}})
				So(steps[3].Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 0}})
				So(a.Level(), ShouldEqual, levelSeekBackward)
			})
		})
	})

	Convey("Given a forward seek recovery", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		a.Poll(snap(player.StatePlaying, 600*time.Second, 0))
		a.Poll(snap(player.StatePlaying, 600*time.Second, time.Second))
		step := a.Poll(snap(player.StatePlaying, 600*time.Second, 2*time.Second))
		So(step.Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 601 * time.Second}})

		Convey("When the only movement is the recovery seek", func() {
			step := a.Poll(snap(player.StatePlaying, 601*time.Second, 3*time.Second))

			Convey("Then it should count as stuck", func() {
				So(step.State, ShouldEqual, RecoveryNeeded)
				So(a.StuckChecks(), ShouldEqual, 3)
			})

			Convey("And real playback after the next seek should succeed", func() {
				step := a.Poll(snap(player.StatePlaying, 603200*time.Millisecond, 4*time.Second))
				So(step.State, ShouldEqual, Succeeded)
			})
		})
	})

	Convey("Given an engine paused at the target", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		first := a.Poll(snap(player.StatePaused, 600*time.Second, 0))
		So(first.State, ShouldEqual, Verifying)

		Convey("When it stays paused well past the timeout", func() {
			var actions []Action
			var last Step
			for i := 1; i <= 30; i++ {
				last = a.Poll(snap(player.StatePaused, 600*time.Second, time.Duration(i)*time.Second))
				actions = append(actions, last.Actions...)
			}

			Convey("Then it should hold without recovery", func() {
				So(actions, ShouldBeEmpty)
				So(last.State, ShouldEqual, Verifying)
				So(a.StuckChecks(), ShouldEqual, 0)
				So(a.Level(), ShouldEqual, levelNone)
			})

			Convey("And resuming playback should verify from the paused position", func() {
				step := a.Poll(snap(player.StatePlaying, 601*time.Second, 31*time.Second))
				So(step.State, ShouldEqual, Succeeded)
			})
		})

		Convey("When playback resumes but does not advance", func() {
			a.Poll(snap(player.StatePaused, 600*time.Second, 3*time.Second))
			step := a.Poll(snap(player.StatePlaying, 600*time.Second, 4*time.Second))

			Convey("Then the stall should be counted", func() {
				So(step.State, ShouldEqual, RecoveryNeeded)
				So(a.StuckChecks(), ShouldEqual, 1)
			})
		})
	})
}

func TestAttemptAdaptive(t *testing.T) {
	Convey("Given an adaptive attempt", t, func() {
		a := NewAttempt(300*time.Second, AdaptivePolicy)

		Convey("When the engine buffers before ever playing", func() {
			step := a.Poll(snap(player.StateBuffering, 5*time.Second, 0))

			Convey("Then the first seek should wait for playing", func() {
				So(step.Actions, ShouldBeEmpty)
				So(a.Attempts(), ShouldEqual, 0)
			})
		})

		Convey("When the first attempt lands within tolerance while buffering", func() {
			a.seenPlaying = true
			step := a.Poll(snap(player.StateBuffering, 297*time.Second, 0))

			Convey("Then the shortcut should not be taken on the first attempt", func() {
				So(a.Attempts(), ShouldEqual, 1)
				So(step.State, ShouldEqual, Verifying)
				So(step.ManifestOffset, ShouldEqual, time.Duration(0))
			})
		})

		Convey("When a later attempt finds a restarted manifest near the target", func() {
			first := a.Poll(snap(player.StatePlaying, 0, 0))
			So(first.Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 300 * time.Second}})

			step := a.Poll(snap(player.StateBuffering, 297*time.Second, AdaptivePolicy.RetryDelay))

			Convey("Then the offset should be recorded and the engine rewound", func() {
				So(step.State, ShouldEqual, Succeeded)
				So(step.ManifestOffset, ShouldEqual, 297*time.Second)
				So(step.Actions, ShouldResemble, []Action{{Kind: ActionSeek, Position: 0}})
			})
		})
	})
}

func TestAttemptCancelled(t *testing.T) {
	Convey("A cancelled attempt ignores polls", t, func() {
		a := NewAttempt(600*time.Second, DirectPolicy)
		a.cancelled.Store(true)
		step := a.Poll(snap(player.StatePlaying, 0, 0))
		So(step.Actions, ShouldBeEmpty)
		So(a.State(), ShouldEqual, NotStarted)
	})
}
