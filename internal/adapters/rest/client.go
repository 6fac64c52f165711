package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

const DefaultTimeout = 15 * time.Second

// Client talks to the feed backend's public endpoints: register, login,
// refresh and the unauthenticated reads. Authenticated operations live on
// AuthClient, which layers the token pipeline on top.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     log,
	}
}

func (c *Client) Register(ctx context.Context, input ports.RegisterInput) (*ports.AuthResult, error) {
	var result ports.AuthResult
	if err := c.call(ctx, http.MethodPost, "/register", nil, input, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Login(ctx context.Context, input ports.LoginInput) (*ports.AuthResult, error) {
	var result ports.AuthResult
	if err := c.call(ctx, http.MethodPost, "/login", nil, input, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var result ports.AuthResult
	if err := c.call(ctx, http.MethodPost, "/refresh", nil, body, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (*ports.VerifyEmailResult, error) {
	body := map[string]string{"token": token}
	var result ports.VerifyEmailResult
	if err := c.call(ctx, http.MethodPost, "/verify-email", nil, body, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := c.call(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, "", &user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListPosts(ctx context.Context, skip, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	if err := c.call(ctx, http.MethodGet, "/posts", pageQuery(skip, limit), nil, "", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	err := c.call(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, nil, "", &post)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (c *Client) ListComments(ctx context.Context, postID string, skip, limit int) ([]domain.Comment, error) {
	path := "/" + url.PathEscape(postID) + "/comments"
	var comments []domain.Comment
	if err := c.call(ctx, http.MethodGet, path, pageQuery(skip, limit), nil, "", &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// call shapes, sends and decodes one request. bearer is empty for public
// endpoints; AuthClient passes the current access token.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	status, data, err := c.send(ctx, method, path, query, payload, bearer)
	if err != nil {
		return err
	}
	return decodeResponse(status, data, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, bearer string) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrNetwork, err)
	}

	c.log.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, data, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return payload, nil
}

// decodeResponse translates non-success statuses into the error taxonomy and
// otherwise unmarshals into out.
func decodeResponse(status int, data []byte, out any) error {
	if status >= 200 && status < 300 {
		if out == nil || status == http.StatusNoContent || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	msg := detailMessage(data)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	case http.StatusUnauthorized:
		return domain.ErrAuthExpired
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", domain.ErrNetwork, status, msg)
	}
}

// detailMessage pulls the backend's error message out of its standard
// {"detail": "..."} envelope, falling back to the raw body.
func detailMessage(data []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	return strings.TrimSpace(string(data))
}

func pageQuery(skip, limit int) url.Values {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))
	return query
}
