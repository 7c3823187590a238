package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// User is the signed-in account.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// userResponse mirrors GET /me. Personal accounts often leave mail empty,
// in which case userPrincipalName carries the address.
type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
	UPN         string `json:"userPrincipalName"`
}

// Me returns the profile of the account the token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, &DecodeError{Op: "me", Err: err}
	}

	u := User{ID: ur.ID, DisplayName: ur.DisplayName, Email: ur.Mail}
	if u.Email == "" {
		u.Email = ur.UPN
	}

	c.logger.Debug("fetched account", slog.String("id", u.ID))

	return &u, nil
}
