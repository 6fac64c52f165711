package rest

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

// AuthClient runs authenticated requests through the token pipeline: obtain a
// valid access token, send, and on a 401 refresh once and reissue the
// identical request exactly once. A second 401 surfaces as ErrAuthExpired
// with no further refresh, which bounds latency and rules out refresh loops
// against a backend that keeps rejecting tokens.
type AuthClient struct {
	*Client
	tokens ports.TokenManager
}

func NewAuthClient(client *Client, tokens ports.TokenManager) *AuthClient {
	return &AuthClient{Client: client, tokens: tokens}
}

func (c *AuthClient) Profile(ctx context.Context) (*domain.User, error) {
	// The backend wraps the profile payload: {"user": {...}}.
	var envelope struct {
		User *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.User, nil
}

func (c *AuthClient) CreatePost(ctx context.Context, text string) (*domain.Post, error) {
	var post domain.Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, map[string]string{"text": text}, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *AuthClient) UpdatePost(ctx context.Context, id, text string) (*domain.Post, error) {
	var post domain.Post
	path := "/posts/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, nil, map[string]string{"text": text}, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *AuthClient) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil, nil)
}

func (c *AuthClient) CreateComment(ctx context.Context, postID, text string) (*domain.Comment, error) {
	query := url.Values{"post_id": []string{postID}}
	var comment domain.Comment
	if err := c.do(ctx, http.MethodPost, "/comments", query, map[string]string{"text": text}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *AuthClient) Like(ctx context.Context, postID string) error {
	query := url.Values{"post_id": []string{postID}}
	return c.do(ctx, http.MethodPost, "/likes", query, nil, nil)
}

func (c *AuthClient) Unlike(ctx context.Context, postID string) error {
	query := url.Values{"post_id": []string{postID}}
	return c.do(ctx, http.MethodDelete, "/likes", query, nil, nil)
}

func (c *AuthClient) UserLikes(ctx context.Context) ([]string, error) {
	var likes []struct {
		PostID string `json:"post_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/likes", nil, nil, &likes); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(likes))
	for _, like := range likes {
		ids = append(ids, like.PostID)
	}
	return ids, nil
}

func (c *AuthClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return err
	}

	status, data, err := c.send(ctx, method, path, query, payload, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		// The server rejected a locally valid token (revocation, clock
		// skew). One refresh, one retry; then give up.
		token, err = c.tokens.RefreshAccessToken(ctx)
		if err != nil {
			return err
		}

		c.log.Debug("retrying after 401",
			zap.String("method", method),
			zap.String("path", path))

		status, data, err = c.send(ctx, method, path, query, payload, token)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return domain.ErrAuthExpired
		}
	}

	return decodeResponse(status, data, out)
}

var (
	_ ports.AuthAPI        = (*AuthClient)(nil)
	_ ports.UserAPI        = (*AuthClient)(nil)
	_ ports.PostAPI        = (*AuthClient)(nil)
	_ ports.CommentAPI     = (*AuthClient)(nil)
	_ ports.LikeAPI        = (*AuthClient)(nil)
	_ ports.TokenRefresher = (*Client)(nil)
)
