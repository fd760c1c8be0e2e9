package playback

import (
	"time"

	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/resume"
	"github.com/reel-cli/reel/server"
)

// Status is a point-in-time view of the session.
type Status struct {
	Active        bool
	ItemID        string
	Title         string
	State         player.State
	Position      time.Duration
	Duration      time.Duration
	Method        server.PlayMethod
	PlaySessionID string
	SourceID      string
	Audio         int
	Subtitle      int
	MaxBitrate    int64
	Resume        resume.Status
	ResumeErr     error
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	current, params, item, resumeErr := s.current, s.params, s.item, s.resumeErr
	s.mu.Unlock()

	st := Status{
		Active:    current != nil,
		State:     s.engine.State(),
		Position:  s.resume.Position(),
		Resume:    s.resume.Status(),
		ResumeErr: resumeErr,
		Audio:     media.NoIndex,
		Subtitle:  media.NoIndex,
	}
	st.Duration = s.duration(item)

	if item != nil {
		st.Title = item.Name
	}
	if params != nil {
		st.ItemID = params.ItemID
		st.Audio = params.AudioStreamIndex
		st.Subtitle = params.SubtitleStreamIndex
		if params.MaxBitrate != nil {
			st.MaxBitrate = *params.MaxBitrate
		}
	}
	if current != nil {
		st.PlaySessionID = current.PlaySessionID
		st.SourceID = current.Source.ID
		if current.Playback != nil {
			st.Method = current.Playback.Method
		}
	}
	return st
}

// Streams lists the tracks of type t offered by the playing source.
func (s *Session) Streams(t media.StreamType) []media.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Source.StreamsOf(t)
}
