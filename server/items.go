package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reel-cli/reel/media"
)

// Item fetches an item with its media sources and the user's saved position.
func (c *Client) Item(ctx context.Context, id string) (*media.Item, error) {
	path := "/Items/" + url.PathEscape(id)
	if c.userID != "" {
		path = "/Users/" + url.PathEscape(c.userID) + path
	}

	var item media.Item
	if err := c.do(ctx, "get item", http.MethodGet, path, nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
