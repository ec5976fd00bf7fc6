package api

import (
	"context"
	"net/http"
	"net/url"

	"chizu/campus-client/internal/model"
)

// Registration is the profile submitted when creating an account.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	College  string `json:"college"`
}

// ResetTarget identifies the account a password reset token belongs to.
type ResetTarget struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authResponse struct {
	Success bool               `json:"success"`
	User    *model.CurrentUser `json:"user"`
	Error   string             `json:"error"`
}

// Login exchanges credentials for the session user.
func (c *Client) Login(ctx context.Context, username, password string) (model.CurrentUser, error) {
	body := map[string]string{"username": username, "password": password}
	var resp authResponse
	if err := c.do(ctx, "auth_login", http.MethodPost, "/auth/login", body, &resp); err != nil {
		return model.CurrentUser{}, err
	}
	if !resp.Success || resp.User == nil {
		msg := resp.Error
		if msg == "" {
			msg = "login failed"
		}
		return model.CurrentUser{}, &Error{Op: "auth_login", Status: http.StatusUnauthorized, Message: msg}
	}
	return *resp.User, nil
}

// Register creates an account. The user logs in separately afterwards.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, "auth_register", http.MethodPost, "/auth/register", reg, nil)
}

// ForgotPassword asks the backend to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, "auth_forgot_password", http.MethodPost, "/auth/forgot-password", body, nil)
}

// VerifyResetToken checks a reset link before showing the new-password form.
func (c *Client) VerifyResetToken(ctx context.Context, token string) (ResetTarget, error) {
	var resp struct {
		Valid bool `json:"valid"`
		ResetTarget
		Error string `json:"error"`
	}
	if err := c.do(ctx, "auth_verify_reset_token", http.MethodGet, "/auth/verify-reset-token/"+url.PathEscape(token), nil, &resp); err != nil {
		return ResetTarget{}, err
	}
	if !resp.Valid {
		msg := resp.Error
		if msg == "" {
			msg = "invalid or expired reset link"
		}
		return ResetTarget{}, &Error{Op: "auth_verify_reset_token", Status: http.StatusBadRequest, Message: msg}
	}
	return resp.ResetTarget, nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.do(ctx, "auth_reset_password", http.MethodPost, "/auth/reset-password", body, nil)
}
