package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spencerturkel/online-checkers-platform-api/internal/auth"
	"github.com/spencerturkel/online-checkers-platform-api/internal/config"
	"github.com/spencerturkel/online-checkers-platform-api/internal/email"
	"github.com/spencerturkel/online-checkers-platform-api/internal/room"
	"github.com/spencerturkel/online-checkers-platform-api/internal/users"
	"github.com/spencerturkel/online-checkers-platform-api/internal/web"
)

func main() {
	// Parse command line flags
	var showHelp bool
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	// Setup logging
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Development.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// User persistence
	var userStore users.Store
	if cfg.Database.URL != "" {
		userStore, err = users.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
	} else {
		if !cfg.Development.DevAuth {
			log.Fatal().Msg("database.url is required outside development")
		}
		log.Warn().Msg("No database configured, keeping users in memory")
		userStore = users.NewMemoryStore()
	}
	defer userStore.Close()

	// Session tokens
	secret := cfg.Session.Secret
	if secret == "" {
		// Development fallback: sessions die with the process.
		secret = randomSecret()
		log.Warn().Msg("No session secret configured, generated an ephemeral one")
	}
	sessions := auth.NewSessions(secret, cfg.Session.TTL)

	// Invitation email
	var sender email.Sender = email.NopSender{}
	if cfg.Email.SendGridKey != "" {
		sender = email.NewSendGridSender(cfg.Email.SendGridKey, cfg.Email.FromName, cfg.Email.FromAddress)
	} else {
		log.Warn().Msg("No SendGrid key configured, invitation emails disabled")
	}

	// Room registry and its WebSocket feed
	rooms := room.NewStore(cfg.Room.UserTimeout)
	defer rooms.Close()
	hub := web.NewHub(rooms)
	rooms.SetOnChange(hub.Notify)
	go hub.Run()

	// Create service
	service := web.NewService(rooms, userStore, sessions, sender, cfg.Email.InviteBaseURL, cfg.Development.DevAuth)

	// Setup routes
	router := mux.NewRouter()

	// Add CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	service.Register(router, hub)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate session secret")
	}
	return hex.EncodeToString(buf)
}

func showHelpMessage() {
	fmt.Println(`Online Checkers Platform API

DESCRIPTION:
    HTTP API for an online checkers platform. Players create or join rooms,
    vote on who moves first, and play American checkers with forced
    captures, multi-jumps, and promotion. Room changes stream to clients
    over a WebSocket feed, and win/loss records persist in Postgres.

USAGE:
    checkers-server [OPTIONS]

OPTIONS:
    -h, --help    Show this help message

CONFIGURATION:
    The server is configured via config.yaml in the current directory, or
    environment variables with the CHECKERS_ prefix.

    Example config.yaml:
        server:
          host: localhost
          port: 8080

        room:
          user_timeout: 30s   # inactivity window before room eviction

        database:
          url: postgres://checkers@localhost/checkers?sslmode=disable

        session:
          secret: "long-random-string"
          ttl: 24h

        email:
          sendgrid_key: "SG...."
          invite_base_url: https://checkers.example

        development:
          dev_auth: true      # enables POST /auth/dev
          log_level: debug

API ENDPOINTS:
    GET    /healthz          - Service health check
    POST   /auth/dev         - Development sign-in (when enabled)
    GET    /user             - Caller's profile and win/loss record
    GET    /room             - Caller's room
    GET    /room/feed        - WebSocket stream of room changes
    POST   /room/create      - Open a private waiting room
    POST   /room/join        - Join by invitation token or any public room
    POST   /room/invite      - Rotate the invitation token, optionally email it
    POST   /room/publish     - Open the room to the public
    POST   /room/privatize   - Make the room invitation-only
    POST   /room/decision    - Vote on who moves first
    DELETE /room/decision    - Withdraw the vote
    POST   /room/move        - Make a move
    POST   /room/leave       - Leave the room

BEHAVIOR:
    - Validates moves server-side, including forced captures and chains
    - Evicts users from rooms after a sliding inactivity timeout
    - Sends invitation emails through SendGrid
    - Graceful shutdown on SIGINT/SIGTERM`)
}
