// Package web exposes the HTTP API: sign-in, room lifecycle, moves, and
// the WebSocket room feed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/spencerturkel/online-checkers-platform-api/internal/auth"
	"github.com/spencerturkel/online-checkers-platform-api/internal/checkers"
	"github.com/spencerturkel/online-checkers-platform-api/internal/email"
	"github.com/spencerturkel/online-checkers-platform-api/internal/room"
	"github.com/spencerturkel/online-checkers-platform-api/internal/users"
)

type Service struct {
	rooms    *room.Store
	users    users.Store
	sessions *auth.Sessions
	mail     email.Sender

	// inviteBaseURL is the public address of the front-end; invitation
	// links are built against it.
	inviteBaseURL string

	// devAuth enables the password-less sign-in endpoint for local
	// development.
	devAuth bool
}

func NewService(rooms *room.Store, userStore users.Store, sessions *auth.Sessions,
	mail email.Sender, inviteBaseURL string, devAuth bool) *Service {
	return &Service{
		rooms:         rooms,
		users:         userStore,
		sessions:      sessions,
		mail:          mail,
		inviteBaseURL: inviteBaseURL,
		devAuth:       devAuth,
	}
}

// Register wires the API routes. The feed route authenticates on its own
// because WebSocket handshakes cannot carry an Authorization header.
func (s *Service) Register(r *mux.Router, hub *Hub) {
	r.HandleFunc("/healthz", s.HealthHandler).Methods("GET")
	if s.devAuth {
		r.HandleFunc("/auth/dev", s.DevSignInHandler).Methods("POST")
	}
	r.HandleFunc("/room/feed", s.FeedHandler(hub)).Methods("GET")

	authed := r.NewRoute().Subrouter()
	authed.Use(s.sessions.Middleware)
	authed.HandleFunc("/user", s.UserHandler).Methods("GET")
	authed.HandleFunc("/room", s.RoomHandler).Methods("GET", "HEAD")
	authed.HandleFunc("/room/create", s.CreateRoomHandler).Methods("POST")
	authed.HandleFunc("/room/join", s.JoinRoomHandler).Methods("POST")
	authed.HandleFunc("/room/invite", s.InviteHandler).Methods("POST")
	authed.HandleFunc("/room/publish", s.PublishHandler).Methods("POST")
	authed.HandleFunc("/room/privatize", s.PrivatizeHandler).Methods("POST")
	authed.HandleFunc("/room/decision", s.DecisionHandler).Methods("POST")
	authed.HandleFunc("/room/decision", s.ClearDecisionHandler).Methods("DELETE")
	authed.HandleFunc("/room/move", s.MoveHandler).Methods("POST")
	authed.HandleFunc("/room/leave", s.LeaveRoomHandler).Methods("POST")
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// writeRoomError maps room and game errors onto HTTP statuses. A missing
// room or match is not-found; a rule violation is the client's fault.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrNoRoom), errors.Is(err, room.ErrNoMatch):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, room.ErrHasRoom), errors.Is(err, room.ErrWrongState),
		errors.Is(err, checkers.ErrWrongTurn), errors.Is(err, checkers.ErrIllegalMove):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("room operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

type DevSignInRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// DevSignInHandler mints a session for an arbitrary name. Only registered
// when development auth is enabled.
func (s *Service) DevSignInHandler(w http.ResponseWriter, r *http.Request) {
	var req DevSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	user, err := s.users.Ensure(r.Context(), req.ID, req.Name)
	if err != nil {
		log.Error().Err(err).Msg("failed to ensure user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := s.sessions.Mint(auth.Identity{ID: user.ID, Name: user.Name})
	if err != nil {
		log.Error().Err(err).Msg("failed to mint session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (s *Service) UserHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	user, err := s.users.Ensure(r.Context(), id.ID, id.Name)
	if err != nil {
		log.Error().Err(err).Str("user_id", id.ID).Msg("failed to load user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

func (s *Service) RoomHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	snap, err := s.rooms.Snapshot(id.ID)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Service) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	if err := s.rooms.Create(room.User{ID: id.ID, Name: id.Name}); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type JoinRoomRequest struct {
	Token string `json:"token,omitempty"`
}

func (s *Service) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	// The body is optional: a bare join matches any public room.
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.rooms.Join(room.User{ID: id.ID, Name: id.Name}, req.Token); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type InviteRequest struct {
	Email string `json:"email,omitempty"`
}

// InviteHandler rotates the room's invitation token; the client reads the
// new token from GET /room. With an email in the body the invitation is
// also mailed, and a failed send degrades to emailSent:false rather than
// undoing the rotation.
func (s *Service) InviteHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.rooms.Invite(id.ID)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	if req.Email == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	link := s.inviteBaseURL + "/#/join/" + token
	sent := true
	if err := s.mail.SendInvitation(r.Context(), req.Email, id.Name, link); err != nil {
		log.Error().Err(err).Str("user_id", id.ID).Msg("failed to send invitation")
		sent = false
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"emailSent": sent})
}

func (s *Service) PublishHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Publish(identity(r).ID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) PrivatizeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Privatize(identity(r).ID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type DecisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Service) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	decision, ok := room.ParseDecision(req.Decision)
	if !ok {
		http.Error(w, "Invalid decision", http.StatusBadRequest)
		return
	}

	if err := s.rooms.Decide(id.ID, decision); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) ClearDecisionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.ClearDecision(identity(r).ID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) MoveHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var req checkers.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := s.rooms.Move(id.ID, req)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	if outcome.State == checkers.MoveWin {
		// Recording the result must not delay or fail the response.
		go s.recordResult(outcome.WinnerID, outcome.LoserID)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]checkers.MoveState{
		"state": outcome.State,
	})
}

func (s *Service) recordResult(winnerID, loserID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.users.RecordWin(ctx, winnerID); err != nil {
		log.Error().Err(err).Str("user_id", winnerID).Msg("failed to record win")
	}
	if err := s.users.RecordLoss(ctx, loserID); err != nil {
		log.Error().Err(err).Str("user_id", loserID).Msg("failed to record loss")
	}
}

func (s *Service) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Leave(identity(r).ID); err != nil {
		writeRoomError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
