package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/Patellll34/RiversideClone/internal/adapters/http"
	"github.com/Patellll34/RiversideClone/internal/adapters/rtc"
	sig "github.com/Patellll34/RiversideClone/internal/adapters/signal"
	"github.com/Patellll34/RiversideClone/internal/config"
	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
	"github.com/Patellll34/RiversideClone/internal/session"
	"github.com/Patellll34/RiversideClone/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		rooms        core.RoomStore
		participants core.ParticipantStore
		recordings   core.RecordingStore
		signals      core.SignalingChannel
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := store.NewRedis(client)
		if err := rs.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
		}
		rooms, participants, recordings = rs.Rooms(), rs.Participants(), rs.Recordings()
		signals = sig.NewRedisChannel(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis store")
	} else {
		ms := store.NewMemory()
		rooms, participants, recordings = ms.Rooms(), ms.Participants(), ms.Recordings()
		signals = sig.NewLocalChannel()
		log.Info().Msg("using in-memory store")
	}

	newTransport := rtc.NewFactory(rtc.DefaultConfig(cfg.ICEServers))

	hub := session.NewHub(session.Config{
		GracePeriod:  cfg.PeerGracePeriod,
		CodeAttempts: cfg.RoomCodeAttempts,
	}, func(_ *domain.User) session.Deps {
		return session.Deps{
			Signals:      signals,
			NewTransport: newTransport,
			Devices:      rtc.NewDevices(),
			Rooms:        rooms,
			Participants: participants,
			Recordings:   recordings,
		}
	})
	defer hub.Close()

	limiter := router.NewJoinRateLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow)
	api := router.NewAPI(hub, rooms, recordings, limiter)
	r := router.SetupRouter(cfg, api)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("studio server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
