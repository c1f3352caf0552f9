package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spencerturkel/online-checkers-platform-api/internal/auth"
	"github.com/spencerturkel/online-checkers-platform-api/internal/room"
	"github.com/spencerturkel/online-checkers-platform-api/internal/users"
)

type sentInvite struct {
	To          string
	InviterName string
	Link        string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentInvite
	err  error
}

func (f *fakeSender) SendInvitation(_ context.Context, to, inviterName, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentInvite{To: to, InviterName: inviterName, Link: link})
	return nil
}

type testEnv struct {
	router   *mux.Router
	service  *Service
	rooms    *room.Store
	users    *users.MemoryStore
	sessions *auth.Sessions
	sender   *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rooms := room.NewStore(time.Minute)
	t.Cleanup(rooms.Close)
	userStore := users.NewMemoryStore()
	sessions := auth.NewSessions("test-secret", time.Hour)
	sender := &fakeSender{}

	svc := NewService(rooms, userStore, sessions, sender, "https://checkers.example", true)
	router := mux.NewRouter()
	svc.Register(router, NewHub(rooms))

	return &testEnv{
		router:   router,
		service:  svc,
		rooms:    rooms,
		users:    userStore,
		sessions: sessions,
		sender:   sender,
	}
}

// signIn provisions a user and returns their bearer token.
func (e *testEnv) signIn(t *testing.T, id, name string) string {
	t.Helper()
	_, err := e.users.Ensure(context.Background(), id, name)
	require.NoError(t, err)
	token, err := e.sessions.Mint(auth.Identity{ID: id, Name: name})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func stateName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var snap struct {
		State struct {
			Name string `json:"name"`
		} `json:"state"`
	}
	decodeJSON(t, rec, &snap)
	return snap.State.Name
}

func TestHealthHandler(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/user", "/room"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := e.do(t, http.MethodPost, "/room/create", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDevSignIn(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/dev", "", map[string]string{"name": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string     `json:"token"`
		User  users.User `json:"user"`
	}
	decodeJSON(t, rec, &body)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "Alice", body.User.Name)

	userRec := e.do(t, http.MethodGet, "/user", body.Token, nil)
	require.Equal(t, http.StatusOK, userRec.Code)

	var u users.User
	decodeJSON(t, userRec, &u)
	assert.Equal(t, body.User.ID, u.ID)
	assert.Equal(t, 0, u.Wins)
}

func TestDevSignInRejectsMissingName(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/auth/dev", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomNotFoundWithoutRoom(t *testing.T) {
	e := newTestEnv(t)
	token := e.signIn(t, "alice", "Alice")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/room", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/room/leave", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/room/publish", token, nil).Code)
}

func TestRoomLifecycle(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")
	bob := e.signIn(t, "bob", "Bob")

	// Alice opens a room.
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)
	rec := e.do(t, http.MethodGet, "/room", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "waiting", stateName(t, rec))

	// She invites Bob. The rotated token shows up in her room view.
	inviteRec := e.do(t, http.MethodPost, "/room/invite", alice, nil)
	require.Equal(t, http.StatusNoContent, inviteRec.Code)
	var roomSnap struct {
		State struct {
			InvitationToken string `json:"invitationToken"`
		} `json:"state"`
	}
	decodeJSON(t, e.do(t, http.MethodGet, "/room", alice, nil), &roomSnap)
	require.NotEmpty(t, roomSnap.State.InvitationToken)

	// Bob joins with the token.
	joinRec := e.do(t, http.MethodPost, "/room/join", bob, map[string]string{"token": roomSnap.State.InvitationToken})
	require.Equal(t, http.StatusNoContent, joinRec.Code)
	assert.Equal(t, "deciding", stateName(t, e.do(t, http.MethodGet, "/room", bob, nil)))

	// Both agree the challenger moves first.
	decision := map[string]string{"decision": "challenger"}
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/decision", alice, decision).Code)
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/decision", bob, decision).Code)

	playRec := e.do(t, http.MethodGet, "/room", alice, nil)
	require.Equal(t, http.StatusOK, playRec.Code)
	var snap struct {
		State struct {
			Name string `json:"name"`
			Game struct {
				DarkID       string `json:"darkId"`
				CurrentColor string `json:"currentColor"`
			} `json:"game"`
		} `json:"state"`
	}
	decodeJSON(t, playRec, &snap)
	assert.Equal(t, "playing", snap.State.Name)
	assert.Equal(t, "alice", snap.State.Game.DarkID)
	assert.Equal(t, "D", snap.State.Game.CurrentColor)

	// Alice makes an opening move.
	move := map[string]map[string]int{
		"from": {"row": 2, "column": 1},
		"to":   {"row": 3, "column": 0},
	}
	moveRec := e.do(t, http.MethodPost, "/room/move", alice, move)
	require.Equal(t, http.StatusOK, moveRec.Code)
	var moveResp map[string]string
	decodeJSON(t, moveRec, &moveResp)
	assert.Equal(t, "done", moveResp["state"])

	// It's Bob's turn now.
	badMove := map[string]map[string]int{
		"from": {"row": 3, "column": 0},
		"to":   {"row": 4, "column": 1},
	}
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/room/move", alice, badMove).Code)

	// Alice leaves; Bob inherits a fresh waiting room.
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/leave", alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/room", alice, nil).Code)

	bobRec := e.do(t, http.MethodGet, "/room", bob, nil)
	require.Equal(t, http.StatusOK, bobRec.Code)
	assert.Equal(t, "waiting", stateName(t, bobRec))
}

func TestJoinPublicRoomViaAPI(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")
	bob := e.signIn(t, "bob", "Bob")

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)

	// No public room yet.
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/room/join", bob, nil).Code)

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/publish", alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/join", bob, nil).Code)
}

func TestJoinWithTokenWhileHoused(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)

	rec := e.do(t, http.MethodPost, "/room/join", alice, map[string]string{"token": "sometoken"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Without a target the join is a harmless no-op.
	rec = e.do(t, http.MethodPost, "/room/join", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInviteSendsEmail(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)

	rec := e.do(t, http.MethodPost, "/room/invite", alice, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var invite map[string]bool
	decodeJSON(t, rec, &invite)
	assert.True(t, invite["emailSent"])

	var snap struct {
		State struct {
			InvitationToken string `json:"invitationToken"`
		} `json:"state"`
	}
	decodeJSON(t, e.do(t, http.MethodGet, "/room", alice, nil), &snap)

	require.Len(t, e.sender.sent, 1)
	sent := e.sender.sent[0]
	assert.Equal(t, "bob@example.com", sent.To)
	assert.Equal(t, "Alice", sent.InviterName)
	assert.Equal(t, "https://checkers.example/#/join/"+snap.State.InvitationToken, sent.Link)
}

func TestInviteReportsEmailFailure(t *testing.T) {
	e := newTestEnv(t)
	e.sender.err = fmt.Errorf("sendgrid is down")
	alice := e.signIn(t, "alice", "Alice")
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)

	rec := e.do(t, http.MethodPost, "/room/invite", alice, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var invite map[string]bool
	decodeJSON(t, rec, &invite)
	assert.False(t, invite["emailSent"])

	// The token still rotated despite the failed send.
	rec = e.do(t, http.MethodGet, "/room", alice, nil)
	var snap struct {
		State struct {
			InvitationToken string `json:"invitationToken"`
		} `json:"state"`
	}
	decodeJSON(t, rec, &snap)
	assert.NotEmpty(t, snap.State.InvitationToken)
}

func TestDecisionValidation(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)

	rec := e.do(t, http.MethodPost, "/room/decision", alice, map[string]string{"decision": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid decision, wrong state.
	rec = e.do(t, http.MethodPost, "/room/decision", alice, map[string]string{"decision": "random"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordResult(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.users.Ensure(ctx, "alice", "Alice")
	require.NoError(t, err)
	_, err = e.users.Ensure(ctx, "bob", "Bob")
	require.NoError(t, err)

	e.service.recordResult("alice", "bob")

	winner, err := e.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	loser, err := e.users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
}

func TestHeadRoom(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signIn(t, "alice", "Alice")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodHead, "/room", alice, nil).Code)
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/room/create", alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodHead, "/room", alice, nil).Code)
}
