package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/session"
)

const mePath = "/api/v1/users/me"

// FetchMe implements session.ProfileAPI.
func (c *Client) FetchMe(ctx context.Context) (model.Patch, error) {
	raw, err := c.do(ctx, http.MethodGet, mePath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return session.ProfilePatch(payload), nil
}

// UpdateMe implements session.ProfileAPI.
func (c *Client) UpdateMe(ctx context.Context, patch model.Patch) (model.Patch, error) {
	raw, err := c.do(ctx, http.MethodPut, mePath, patch)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return session.ProfilePatch(payload), nil
}
