package auth

import (
	"github.com/google/uuid"
	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/where"
	"github.com/metafates/gache"
)

var deviceCacher = gache.New[string](&gache.Options{
	Path:       where.Device(),
	FileSystem: &filesystem.GacheFs{},
})

// DeviceID returns the persistent identifier of this installation, creating it on first use.
func DeviceID() (string, error) {
	id, expired, err := deviceCacher.Get()
	if err != nil {
		return "", err
	}
	if !expired && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	return id, deviceCacher.Set(id)
}
