package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dyike/QuantDesk/models"
)

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.Tokens, error) {
	var tok models.Tokens
	if err := c.send(ctx, http.MethodPost, "/auth/login/", creds, &tok, false); err != nil {
		return models.Tokens{}, err
	}
	if tok.Access == "" {
		return models.Tokens{}, fmt.Errorf("login response carried no access token")
	}
	if err := c.tokens.Save(tok); err != nil {
		return models.Tokens{}, fmt.Errorf("save tokens: %w", err)
	}
	return tok, nil
}

func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.User, error) {
	var user models.User
	if err := c.send(ctx, http.MethodPost, "/auth/register/", creds, &user, false); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the refresh token server-side when possible and always
// clears the local tokens.
func (c *Client) Logout(ctx context.Context) error {
	tok, _ := c.tokens.Load()
	var remoteErr error
	if tok.Refresh != "" {
		remoteErr = c.send(ctx, http.MethodPost, "/auth/logout/", map[string]string{"refresh": tok.Refresh}, nil, true)
		if remoteErr != nil {
			c.logger.Warn("server logout failed", "error", remoteErr)
		}
	}
	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	if !c.LoggedIn() {
		return nil, ErrUnauthorized
	}
	var user models.User
	if err := c.get(ctx, "/auth/profile/", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LoggedIn reports whether an access token is stored.
func (c *Client) LoggedIn() bool {
	tok, err := c.tokens.Load()
	return err == nil && tok.Access != ""
}

// Refresh trades the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	tok, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if tok.Refresh == "" {
		return ErrUnauthorized
	}

	var out models.Tokens
	body := map[string]string{"refresh": tok.Refresh}
	if err := c.send(ctx, http.MethodPost, "/auth/token/refresh/", body, &out, false); err != nil {
		return err
	}
	if out.Access == "" {
		return fmt.Errorf("refresh response carried no access token")
	}
	if out.Refresh == "" {
		out.Refresh = tok.Refresh
	}
	return c.tokens.Save(out)
}

func (c *Client) refreshIfExpired(ctx context.Context) {
	tok, err := c.tokens.Load()
	if err != nil || tok.Access == "" || tok.Refresh == "" {
		return
	}
	if !tokenExpired(tok.Access, c.now()) {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Debug("proactive token refresh failed", "error", err)
	}
}

func (c *Client) retryAfterRefresh(ctx context.Context) bool {
	tok, err := c.tokens.Load()
	if err != nil || tok.Refresh == "" {
		return false
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Debug("token refresh after 401 failed", "error", err)
		return false
	}
	return true
}
