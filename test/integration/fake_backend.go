package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/feedapp/feedclient/internal/core/domain"
)

const signingSecret = "integration-secret"

type backendUser struct {
	domain.User
	password string
}

// fakeBackend is an in-process stand-in for the feed API, close enough in
// shapes and status codes that the full client stack can run against it.
type fakeBackend struct {
	server *httptest.Server

	mu            sync.Mutex
	users         map[string]backendUser          // id -> user
	posts         map[string]domain.Post          // id -> post
	comments      map[string][]domain.Comment     // post id -> comments
	likes         map[string]map[string]struct{}  // user id -> post ids
	refreshTokens map[string]string               // refresh token -> user id

	refreshCalls     int
	rejectBearer     bool
	rejectBearerOnce bool
	failNextDelete   bool
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		users:         make(map[string]backendUser),
		posts:         make(map[string]domain.Post),
		comments:      make(map[string][]domain.Comment),
		likes:         make(map[string]map[string]struct{}),
		refreshTokens: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", b.handleRegister)
		r.Post("/login", b.handleLogin)
		r.Post("/refresh", b.handleRefresh)
		r.Post("/verify-email", b.handleVerifyEmail)
		r.Get("/users/{id}", b.handleGetUser)
		r.Get("/posts", b.handleListPosts)
		r.Get("/posts/{id}", b.handleGetPost)
		r.Get("/{postID}/comments", b.handleListComments)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get("/profile", b.handleProfile)
			r.Post("/posts", b.handleCreatePost)
			r.Put("/posts/{id}", b.handleUpdatePost)
			r.Delete("/posts/{id}", b.handleDeletePost)
			r.Post("/comments", b.handleCreateComment)
			r.Post("/likes", b.handleLike)
			r.Delete("/likes", b.handleUnlike)
			r.Get("/user/likes", b.handleUserLikes)
		})
	})

	b.server = httptest.NewServer(r)
	return b
}

func (b *fakeBackend) Close()      { b.server.Close() }
func (b *fakeBackend) URL() string { return b.server.URL + "/api" }

func (b *fakeBackend) refreshCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func (b *fakeBackend) setRejectBearer(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectBearer = reject
}

func (b *fakeBackend) setRejectBearerOnce() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectBearerOnce = true
}

func (b *fakeBackend) injectDeleteFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextDelete = true
}

func (b *fakeBackend) revokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshTokens = make(map[string]string)
}

// issueTokens mints an access token with the given lifetime plus a registered
// refresh token, letting tests seed arbitrary token states.
func (b *fakeBackend) issueTokens(userID string, accessTTL time.Duration) (string, string) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}

	refresh := uuid.NewString()
	b.mu.Lock()
	b.refreshTokens[refresh] = userID
	b.mu.Unlock()
	return access, refresh
}

func (b *fakeBackend) authPayload(user domain.User, accessTTL time.Duration) map[string]any {
	access, refresh := b.issueTokens(user.ID, accessTTL)
	return map[string]any{
		"user":          user,
		"token":         access,
		"refresh_token": refresh,
	}
}

func jsonBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func detail(w http.ResponseWriter, status int, msg string) {
	jsonBody(w, status, map[string]string{"detail": msg})
}

func (b *fakeBackend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		reject := b.rejectBearer || b.rejectBearerOnce
		b.rejectBearerOnce = false
		b.mu.Unlock()
		if reject {
			detail(w, http.StatusUnauthorized, "token revoked")
			return
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			detail(w, http.StatusUnauthorized, "missing token")
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return []byte(signingSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			detail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			detail(w, http.StatusUnauthorized, "invalid token")
			return
		}

		r.Header.Set("X-User-ID", sub)
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) currentUser(r *http.Request) (backendUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[r.Header.Get("X-User-ID")]
	return user, ok
}

func (b *fakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		detail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	for _, u := range b.users {
		if u.Username == input.Username || u.Email == input.Email {
			b.mu.Unlock()
			detail(w, http.StatusBadRequest, "user already exists")
			return
		}
	}
	user := backendUser{
		User:     domain.User{ID: uuid.NewString(), Username: input.Username, Email: input.Email},
		password: input.Password,
	}
	b.users[user.ID] = user
	b.mu.Unlock()

	jsonBody(w, http.StatusCreated, b.authPayload(user.User, time.Hour))
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		detail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	var match *backendUser
	for _, u := range b.users {
		if u.Email == input.Email && u.password == input.Password {
			match = &u
			break
		}
	}
	b.mu.Unlock()

	if match == nil {
		detail(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	jsonBody(w, http.StatusOK, b.authPayload(match.User, time.Hour))
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		detail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	b.refreshCalls++
	userID, ok := b.refreshTokens[input.RefreshToken]
	if ok {
		// Rotation: a refresh token is single use.
		delete(b.refreshTokens, input.RefreshToken)
	}
	user, userOK := b.users[userID]
	b.mu.Unlock()

	if !ok || !userOK {
		detail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	jsonBody(w, http.StatusOK, b.authPayload(user.User, time.Hour))
}

func (b *fakeBackend) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	jsonBody(w, http.StatusOK, map[string]any{"success": true, "message": "email verified"})
}

func (b *fakeBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := b.currentUser(r)
	if !ok {
		detail(w, http.StatusUnauthorized, "unknown user")
		return
	}
	jsonBody(w, http.StatusOK, map[string]any{"user": user.User})
}

func (b *fakeBackend) handleGetUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	user, ok := b.users[chi.URLParam(r, "id")]
	b.mu.Unlock()
	if !ok {
		detail(w, http.StatusNotFound, "user not found")
		return
	}
	jsonBody(w, http.StatusOK, user.User)
}

func (b *fakeBackend) handleListPosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	posts := make([]domain.Post, 0, len(b.posts))
	for _, p := range b.posts {
		posts = append(posts, p)
	}
	b.mu.Unlock()

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	jsonBody(w, http.StatusOK, posts)
}

func (b *fakeBackend) handleGetPost(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	post, ok := b.posts[chi.URLParam(r, "id")]
	b.mu.Unlock()
	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	jsonBody(w, http.StatusOK, post)
}

func (b *fakeBackend) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)
	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Text == "" {
		detail(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	post := domain.Post{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Text:      input.Text,
		CreatedAt: time.Now().UTC(),
	}
	b.mu.Lock()
	b.posts[post.ID] = post
	b.mu.Unlock()
	jsonBody(w, http.StatusCreated, post)
}

func (b *fakeBackend) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)
	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Text == "" {
		detail(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	post, ok := b.posts[chi.URLParam(r, "id")]
	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	if post.UserID != user.ID {
		detail(w, http.StatusForbidden, "not your post")
		return
	}
	post.Text = input.Text
	b.posts[post.ID] = post
	jsonBody(w, http.StatusOK, post)
}

func (b *fakeBackend) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)

	b.mu.Lock()
	if b.failNextDelete {
		b.failNextDelete = false
		b.mu.Unlock()
		detail(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	post, ok := b.posts[chi.URLParam(r, "id")]
	if !ok {
		b.mu.Unlock()
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	if post.UserID != user.ID {
		b.mu.Unlock()
		detail(w, http.StatusForbidden, "not your post")
		return
	}
	delete(b.posts, post.ID)
	delete(b.comments, post.ID)
	b.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	b.mu.Lock()
	_, ok := b.posts[postID]
	comments := append([]domain.Comment(nil), b.comments[postID]...)
	b.mu.Unlock()

	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	jsonBody(w, http.StatusOK, comments)
}

func (b *fakeBackend) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)
	postID := r.URL.Query().Get("post_id")

	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Text == "" {
		detail(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	post, ok := b.posts[postID]
	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    user.ID,
		Username:  user.Username,
		Text:      input.Text,
		CreatedAt: time.Now().UTC(),
	}
	b.comments[postID] = append(b.comments[postID], comment)
	post.CommentCount++
	b.posts[postID] = post
	jsonBody(w, http.StatusCreated, comment)
}

func (b *fakeBackend) handleLike(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)
	postID := r.URL.Query().Get("post_id")

	b.mu.Lock()
	defer b.mu.Unlock()
	post, ok := b.posts[postID]
	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	if b.likes[user.ID] == nil {
		b.likes[user.ID] = make(map[string]struct{})
	}
	if _, already := b.likes[user.ID][postID]; already {
		detail(w, http.StatusBadRequest, "already liked")
		return
	}
	b.likes[user.ID][postID] = struct{}{}
	post.LikeCount++
	b.posts[postID] = post
	jsonBody(w, http.StatusCreated, map[string]string{"post_id": postID})
}

func (b *fakeBackend) handleUnlike(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)
	postID := r.URL.Query().Get("post_id")

	b.mu.Lock()
	defer b.mu.Unlock()
	post, ok := b.posts[postID]
	if !ok {
		detail(w, http.StatusNotFound, "post not found")
		return
	}
	if _, liked := b.likes[user.ID][postID]; !liked {
		detail(w, http.StatusBadRequest, "not liked")
		return
	}
	delete(b.likes[user.ID], postID)
	post.LikeCount--
	b.posts[postID] = post
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) handleUserLikes(w http.ResponseWriter, r *http.Request) {
	user, _ := b.currentUser(r)

	b.mu.Lock()
	likes := make([]map[string]string, 0, len(b.likes[user.ID]))
	for postID := range b.likes[user.ID] {
		likes = append(likes, map[string]string{"post_id": postID})
	}
	b.mu.Unlock()

	jsonBody(w, http.StatusOK, likes)
}
