// Package history persists the last known position of every item played, the source of `play --continue`.
package history

import (
	"time"

	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/where"
	"github.com/metafates/gache"
	"github.com/samber/mo"
)

// finishedRatio marks an item as watched, at which point its record is dropped.
const finishedRatio = 0.95

// Record is the saved playback state of one item.
type Record struct {
	ItemID    string        `json:"item_id"`
	Name      string        `json:"name"`
	Position  time.Duration `json:"position"`
	Duration  time.Duration `json:"duration"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Progress returns the watched share in [0, 1], or zero when the duration is unknown.
func (r *Record) Progress() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Position) / float64(r.Duration)
}

var cacher = gache.New[map[string]*Record](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns every saved record keyed by item id.
func Get() (map[string]*Record, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*Record), nil
	}
	return cached, nil
}

// Find returns the record of an item.
func Find(itemID string) mo.Option[*Record] {
	saved, err := Get()
	if err != nil {
		return mo.None[*Record]()
	}
	if record, ok := saved[itemID]; ok {
		return mo.Some(record)
	}
	return mo.None[*Record]()
}

// Save stores the latest position of an item. Items watched to the end are forgotten.
func Save(itemID, name string, position, duration time.Duration) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	record := &Record{
		ItemID:    itemID,
		Name:      name,
		Position:  position,
		Duration:  duration,
		UpdatedAt: time.Now(),
	}

	if record.Progress() >= finishedRatio {
		delete(saved, itemID)
	} else {
		saved[itemID] = record
	}

	return cacher.Set(saved)
}

// Remove deletes the record of an item.
func Remove(itemID string) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, itemID)
	return cacher.Set(saved)
}

// Store adapts the package functions to the playback session.
type Store struct{}

func (Store) Save(itemID, name string, position, duration time.Duration) error {
	return Save(itemID, name, position, duration)
}
