package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/config"
	"github.com/duskcourt/onuw/internal/gateway"
	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/metrics"
	"github.com/duskcourt/onuw/internal/ratelimit"
	"github.com/duskcourt/onuw/internal/reconnect"
	"github.com/duskcourt/onuw/internal/room"
	"github.com/duskcourt/onuw/internal/roommgr"
)

func main() {
	cfg := config.Load()
	log := logging.Get()
	defer log.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hub := gateway.NewHub(m)
	rooms := roommgr.New(cfg.MaxRooms, cfg.RoomTimeout, func(code string) room.Outbox {
		return hub.RoomOutbox(code)
	}, m)

	const reconnectPerRoomCap = 3
	recon := reconnect.New(rooms, cfg.GracePeriod, reconnectPerRoomCap)

	var verifier gateway.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = gateway.NewHMACVerifier(cfg.JWTSecret)
	}
	router := gateway.NewGateway(rooms, recon, hub, verifier)

	limiter, err := ratelimit.New(cfg.RedisAddr, "20-S")
	if err != nil {
		log.Error("failed to build rate limiter", zap.Error(err))
		os.Exit(1)
	}

	originChecker := gateway.NewOriginChecker(cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker.CheckOrigin,
	}

	stop := make(chan struct{})
	go rooms.RunReaper(time.Minute, stop)

	httpRouter := mux.NewRouter()
	httpRouter.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	httpRouter.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpRouter.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		s := gateway.NewSessionWithMetrics(conn, router, limiter, cfg.PongTimeout, m)
		s.Run(cfg.MaxMessageBytes, cfg.PingInterval)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: httpRouter}

	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped unexpectedly", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	close(stop)
	_ = srv.Close()
}
