// Package auth stores the media server access token in the system keyring
// and keeps the device identifier the server uses to tell this client apart.
package auth

import (
	"github.com/reel-cli/reel/constant"
	"github.com/zalando/go-keyring"
)

const user = "access-token"

// SetToken persists the access token to the system keyring.
func SetToken(token string) error {
	return keyring.Set(constant.Reel, user, token)
}

// GetToken retrieves the access token from the system keyring.
func GetToken() (string, error) {
	return keyring.Get(constant.Reel, user)
}

// DeleteToken removes the access token from the system keyring.
func DeleteToken() error {
	return keyring.Delete(constant.Reel, user)
}

// HasToken reports whether a token is stored.
func HasToken() bool {
	token, err := GetToken()
	return err == nil && token != ""
}
