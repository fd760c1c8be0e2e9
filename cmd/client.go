package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/reel-cli/reel/auth"
	"github.com/reel-cli/reel/constant"
	"github.com/reel-cli/reel/key"
	"github.com/reel-cli/reel/negotiate"
	"github.com/reel-cli/reel/network"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/stream"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

// newClient builds a server client from configuration and the stored credentials.
func newClient() (*server.Client, error) {
	token, err := auth.GetToken()
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("no access token stored, run %s auth set-token", constant.Reel)
	}
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}

	deviceID, err := auth.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}

	userID := viper.GetString(key.ServerUserID)
	if userID == "" {
		return nil, fmt.Errorf("%s is not set, run %s config set %s <id>", key.ServerUserID, constant.Reel, key.ServerUserID)
	}

	timeout := time.Duration(viper.GetInt(key.ServerTimeout)) * time.Second
	httpClient := network.New(timeout, viper.GetBool(key.NetworkTLSFingerprint))

	identity := server.Identity{
		Client:   constant.ClientName,
		Device:   viper.GetString(key.ServerDeviceName),
		DeviceID: deviceID,
		Version:  constant.Version,
		Token:    token,
	}

	return server.New(viper.GetString(key.ServerURL), userID, identity, httpClient)
}

func newNegotiator(client *server.Client) *negotiate.Negotiator {
	return negotiate.New(client, stream.NewBuilder(client), negotiate.PreferencesFromConfig(), client.UserID())
}
