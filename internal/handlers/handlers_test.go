package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/commune/backend/internal/chat"
	"github.com/commune/backend/internal/database/dbtest"
	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/directmsg"
	"github.com/commune/backend/internal/middleware"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

const testPassword = "password123"

type testEnv struct {
	queries     *db.Queries
	auth        *services.AuthService
	accounts    *services.AccountService
	posts       *services.PostService
	friends     *services.FriendService
	messages    *services.DirectMessageService
	broadcaster *chat.Broadcaster
	bus         *directmsg.Bus
	streams     StreamConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB := dbtest.New(t)
	queries := db.New(sqlDB)
	bus := directmsg.NewBus(nil)

	return &testEnv{
		queries:     queries,
		auth:        services.NewAuthService("test-secret", time.Hour),
		accounts:    services.NewAccountService(queries),
		posts:       services.NewPostService(queries),
		friends:     services.NewFriendService(sqlDB, queries),
		messages:    services.NewDirectMessageService(queries, bus),
		broadcaster: chat.NewBroadcaster(100),
		bus:         bus,
		streams:     StreamConfig{Heartbeat: time.Hour, BufferSize: 256},
	}
}

// seedUser inserts a user directly with a cheap hash of testPassword.
func (e *testEnv) seedUser(t *testing.T, name, role string) db.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, e.queries.CreateUser(context.Background(), db.CreateUserParams{
		ID:           id,
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UnixMilli(),
	}))

	user, err := e.queries.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// createTestRequest builds a request carrying the user's claims and chi URL params.
func createTestRequest(method, path string, body any, user *db.User, urlParams map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	ctx := req.Context()
	if user != nil {
		ctx = middleware.WithClaims(ctx, &services.Claims{
			Role:             services.Role(user.Role),
			Name:             user.Name,
			RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
		})
	}

	rctx := chi.NewRouteContext()
	for k, v := range urlParams {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	return req.WithContext(ctx)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func TestWriteValidationError(t *testing.T) {
	var errs criterio.FieldErrorsBuilder
	errs = errs.Append("title", errors.New("too short"))
	errs = errs.Append("title", errors.New("too dull"))
	errs = errs.Append("content", errors.New("too short"))

	rec := httptest.NewRecorder()
	writeValidationError(rec, errs.ToError())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[models.ErrorResponse](t, rec)
	assert.Equal(t, "invalid request", resp.Error)
	assert.Equal(t, []string{"too short", "too dull"}, resp.Errors["title"])
	assert.Equal(t, []string{"too short"}, resp.Errors["content"])
}

func TestDecodeAndValidate_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", http.StatusBadRequest},
		{"malformed", "{not json", http.StatusBadRequest},
		{"too large", `{"body":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst models.PublishChatRequest
			assert.False(t, decodeAndValidate(rec, req, &dst))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewAuthHandler(env.accounts, env.auth, true)

	tests := []struct {
		name     string
		body     models.LoginRequest
		wantCode int
	}{
		{"valid credentials", models.LoginRequest{Email: "ANA@example.com", Password: testPassword}, http.StatusOK},
		{"wrong password", models.LoginRequest{Email: user.Email, Password: "nope-nope"}, http.StatusUnauthorized},
		{"unknown email", models.LoginRequest{Email: "ghost@example.com", Password: testPassword}, http.StatusUnauthorized},
		{"invalid email", models.LoginRequest{Email: "not-an-email", Password: testPassword}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Login(rec, createTestRequest(http.MethodPost, "/api/auth/login", tt.body, nil, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)
			assert.True(t, cookies[0].Secure)

			resp := decodeBody[models.LoginResponse](t, rec)
			assert.Equal(t, cookies[0].Value, resp.Token)
			assert.Equal(t, user.ID, resp.User.ID)

			claims, err := env.auth.ValidateToken(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.UserID())
		})
	}
}

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Taken", db.RoleUser)
	handler := NewAuthHandler(env.accounts, env.auth, false)

	rec := httptest.NewRecorder()
	handler.Register(rec, createTestRequest(http.MethodPost, "/api/auth/register",
		models.RegisterRequest{Name: "Bruno", Email: "bruno@example.com", Password: "long-enough"}, nil, nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.Register(rec, createTestRequest(http.MethodPost, "/api/auth/register",
		models.RegisterRequest{Name: "Copy", Email: "taken@example.com", Password: "long-enough"}, nil, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	handler.Register(rec, createTestRequest(http.MethodPost, "/api/auth/register",
		models.RegisterRequest{Name: "X", Email: "x@example.com", Password: "short"}, nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[models.ErrorResponse](t, rec)
	assert.Contains(t, resp.Errors, "name")
	assert.Contains(t, resp.Errors, "password")
}

func TestUserHandler_MeForDeletedAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewUserHandler(env.accounts, NewAuthHandler(env.accounts, env.auth, false))

	rec := httptest.NewRecorder()
	handler.Me(rec, createTestRequest(http.MethodGet, "/api/users/me", nil, &user, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.DeleteMe(rec, createTestRequest(http.MethodDelete, "/api/users/me", nil, &user, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	rec = httptest.NewRecorder()
	handler.Me(rec, createTestRequest(http.MethodGet, "/api/users/me", nil, &user, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandler_UpdateMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewUserHandler(env.accounts, NewAuthHandler(env.accounts, env.auth, false))

	name := "Ana Clara"
	rec := httptest.NewRecorder()
	handler.UpdateMe(rec, createTestRequest(http.MethodPatch, "/api/users/me", models.UpdateProfileRequest{Name: &name}, &user, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Clara", decodeBody[models.UserResponse](t, rec).Name)

	password, mismatch := "new-password", "other-password"
	rec = httptest.NewRecorder()
	handler.UpdateMe(rec, createTestRequest(http.MethodPatch, "/api/users/me",
		models.UpdateProfileRequest{Password: &password, ConfirmPassword: &mismatch}, &user, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[models.ErrorResponse](t, rec).Errors, "confirmPassword")

	rec = httptest.NewRecorder()
	handler.UpdateMe(rec, createTestRequest(http.MethodPatch, "/api/users/me", models.UpdateProfileRequest{}, &user, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostHandler_CreateAndSearch(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "Beatriz", db.RoleUser)
	handler := NewPostHandler(env.posts)

	rec := httptest.NewRecorder()
	handler.Create(rec, createTestRequest(http.MethodPost, "/api/posts",
		models.CreatePostRequest{Title: "Seed swap", Content: "Bring seeds on Saturday"}, &author, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[models.PostResponse](t, rec)
	assert.True(t, created.Published, "published defaults to true")
	require.NotNil(t, created.Author)
	assert.Equal(t, "Beatriz", created.Author.Name)

	rec = httptest.NewRecorder()
	handler.Create(rec, createTestRequest(http.MethodPost, "/api/posts",
		models.CreatePostRequest{Title: "Hi", Content: "short"}, &author, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.List(rec, createTestRequest(http.MethodGet, "/api/posts?q=SATURDAY", nil, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[[]models.PostResponse](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	rec = httptest.NewRecorder()
	handler.List(rec, createTestRequest(http.MethodGet, "/api/posts?q=nothing-matches", nil, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPostHandler_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Root", db.RoleAdmin)
	handler := NewPostHandler(env.posts)

	post, err := env.posts.Create(context.Background(), admin.ID, services.NewPost{Title: "Title", Content: "Long enough content", Published: true})
	require.NoError(t, err)

	published := false
	rec := httptest.NewRecorder()
	handler.Update(rec, createTestRequest(http.MethodPatch, "/api/posts/"+post.ID,
		models.UpdatePostRequest{Published: &published}, &admin, map[string]string{"id": post.ID}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[models.PostResponse](t, rec).Published)

	rec = httptest.NewRecorder()
	handler.Delete(rec, createTestRequest(http.MethodDelete, "/api/posts/"+post.ID, nil, &admin, map[string]string{"id": post.ID}))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.Delete(rec, createTestRequest(http.MethodDelete, "/api/posts/"+post.ID, nil, &admin, map[string]string{"id": post.ID}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendHandler_Add(t *testing.T) {
	env := newTestEnv(t)
	ana := env.seedUser(t, "Ana", db.RoleUser)
	bruno := env.seedUser(t, "Bruno", db.RoleUser)
	handler := NewFriendHandler(env.friends)

	tests := []struct {
		name     string
		friendID string
		want     int
	}{
		{"new friend", bruno.ID, http.StatusCreated},
		{"already friends", bruno.ID, http.StatusConflict},
		{"yourself", ana.ID, http.StatusBadRequest},
		{"unknown user", "missing", http.StatusNotFound},
		{"empty id", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Add(rec, createTestRequest(http.MethodPost, "/api/friends", models.AddFriendRequest{FriendID: tt.friendID}, &ana, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	handler.List(rec, createTestRequest(http.MethodGet, "/api/friends", nil, &bruno, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	friends := decodeBody[[]models.FriendResponse](t, rec)
	require.Len(t, friends, 1)
	assert.Equal(t, ana.ID, friends[0].ID)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Root", db.RoleAdmin)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewAdminHandler(env.accounts, env.posts)

	rec := httptest.NewRecorder()
	handler.DeleteUser(rec, createTestRequest(http.MethodDelete, "/", nil, &admin, map[string]string{"id": admin.ID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.DeleteUser(rec, createTestRequest(http.MethodDelete, "/", nil, &admin, map[string]string{"id": user.ID}))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.DeleteUser(rec, createTestRequest(http.MethodDelete, "/", nil, &admin, map[string]string{"id": user.ID}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ListUsers(rec, createTestRequest(http.MethodGet, "/", nil, &admin, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody[[]models.AdminUserResponse](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, "ADMIN", users[0].Role)
}

func TestChatHandler_Publish(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewChatHandler(env.broadcaster, env.streams)

	rec := httptest.NewRecorder()
	handler.Publish(rec, createTestRequest(http.MethodPost, "/api/chat", models.PublishChatRequest{Body: "  hello  "}, &user, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	msg := decodeBody[chat.Message](t, rec)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "Ana", msg.Author, "caller name is the default author")

	rec = httptest.NewRecorder()
	handler.Publish(rec, createTestRequest(http.MethodPost, "/api/chat", models.PublishChatRequest{Author: "Guest", Body: "   "}, &user, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[models.ErrorResponse](t, rec).Errors, "body")

	assert.Len(t, env.broadcaster.History(), 1, "rejected message is not recorded")
}

func TestDirectMessageHandler_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedUser(t, "Ana", db.RoleUser)
	b := env.seedUser(t, "Bruno", db.RoleUser)
	handler := NewDirectMessageHandler(env.messages, env.bus, env.streams)

	tests := []struct {
		name string
		req  models.SendDirectMessageRequest
		want int
	}{
		{"to friend", models.SendDirectMessageRequest{RecipientID: a.ID, Body: " oi "}, http.StatusCreated},
		{"to self", models.SendDirectMessageRequest{RecipientID: b.ID, Body: "me"}, http.StatusBadRequest},
		{"unknown recipient", models.SendDirectMessageRequest{RecipientID: "missing", Body: "hi"}, http.StatusNotFound},
		{"blank body", models.SendDirectMessageRequest{RecipientID: a.ID, Body: "   "}, http.StatusBadRequest},
		{"too long", models.SendDirectMessageRequest{RecipientID: a.ID, Body: strings.Repeat("x", models.MaxDirectMessageLen+1)}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Create(rec, createTestRequest(http.MethodPost, "/api/direct-messages", tt.req, &b, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	handler.List(rec, createTestRequest(http.MethodGet, "/api/direct-messages", nil, &a, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.List(rec, createTestRequest(http.MethodGet, "/api/direct-messages?participantId="+b.ID, nil, &a, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decodeBody[[]directmsg.Message](t, rec)
	require.Len(t, messages, 1)
	assert.Equal(t, "oi", messages[0].Body)
	assert.Equal(t, b.ID, messages[0].SenderID)
}

// streamRecorder is a ResponseRecorder whose body can be read while the
// handler is still writing.
type streamRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{rec: httptest.NewRecorder()}
}

func (s *streamRecorder) Header() http.Header { return s.rec.Header() }

func (s *streamRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}

func (s *streamRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(p)
}

func (s *streamRecorder) Flush() {}

func (s *streamRecorder) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func serveInBackground(t *testing.T, h http.HandlerFunc, req *http.Request) (*streamRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()

	ctx, cancel := context.WithCancel(req.Context())
	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h(rec, req.WithContext(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec, cancel, done
}

func TestChatHandler_StreamReplaysThenTails(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Ana", db.RoleUser)
	handler := NewChatHandler(env.broadcaster, env.streams)

	_, err := env.broadcaster.Publish(context.Background(), "Ana", "first")
	require.NoError(t, err)

	rec, cancel, done := serveInBackground(t, handler.Stream, createTestRequest(http.MethodGet, "/api/chat", nil, &user, nil))

	require.Eventually(t, func() bool { return env.broadcaster.Listeners() == 1 }, time.Second, 5*time.Millisecond)
	_, err = env.broadcaster.Publish(context.Background(), "Bruno", "second")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return strings.Contains(rec.Body(), "second") }, time.Second, 5*time.Millisecond)
	body := rec.Body()
	assert.Less(t, strings.Index(body, `"body":"first"`), strings.Index(body, `"body":"second"`))
	assert.True(t, strings.HasPrefix(body, "data: {"))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	cancel()
	<-done
	assert.Equal(t, 0, env.broadcaster.Listeners(), "disconnect unsubscribes")
}

func TestDirectMessageHandler_Stream(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedUser(t, "Ana", db.RoleUser)
	b := env.seedUser(t, "Bruno", db.RoleUser)
	c := env.seedUser(t, "Carla", db.RoleUser)
	handler := NewDirectMessageHandler(env.messages, env.bus, env.streams)

	recA, cancelA, doneA := serveInBackground(t, handler.Stream, createTestRequest(http.MethodGet, "/api/direct-messages/stream", nil, &a, nil))
	recC, _, _ := serveInBackground(t, handler.Stream, createTestRequest(http.MethodGet, "/api/direct-messages/stream", nil, &c, nil))

	require.Eventually(t, func() bool {
		return env.bus.Listeners(a.ID) == 1 && env.bus.Listeners(c.ID) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return recC.Body() != "" }, time.Second, 5*time.Millisecond)

	_, err := env.messages.Send(context.Background(), b.ID, a.ID, "oi")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return strings.Contains(recA.Body(), `"body":"oi"`) }, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(recA.Body(), "event: ready\ndata: {}\n\n"))
	assert.Equal(t, "event: ready\ndata: {}\n\n", recC.Body(), "unrelated user receives nothing")

	cancelA()
	<-doneA
	assert.Equal(t, 0, env.bus.Listeners(a.ID))
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"database": pingFunc(func(context.Context) error { return nil })}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"relay": pingFunc(func(context.Context) error { return errors.New("down") })}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestSentryTunnelHandler(t *testing.T) {
	var forwarded string
	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer ingest.Close()

	dsn := strings.Replace(ingest.URL, "://", "://publickey@", 1) + "/42"
	envelope := func(d string) string { return `{"dsn":"` + d + `"}` + "\n" + `{"type":"event"}` + "\n{}" }

	tests := []struct {
		name    string
		handler *SentryTunnelHandler
		body    string
		want    int
	}{
		{"disabled", NewSentryTunnelHandler("", ingest.Client()), envelope(dsn), http.StatusNotFound},
		{"foreign dsn", NewSentryTunnelHandler(dsn, ingest.Client()), envelope("https://other@example.com/1"), http.StatusUnauthorized},
		{"garbage", NewSentryTunnelHandler(dsn, ingest.Client()), "not an envelope", http.StatusBadRequest},
		{"forwarded", NewSentryTunnelHandler(dsn, ingest.Client()), envelope(dsn), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.Tunnel(rec, httptest.NewRequest(http.MethodPost, "/api/monitoring", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "/api/42/envelope/", forwarded)
}
