// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/brightflock/sendout-backend/internal/config"
	"github.com/brightflock/sendout-backend/internal/controller"
	"github.com/brightflock/sendout-backend/internal/db"
	"github.com/brightflock/sendout-backend/internal/metrics"
	"github.com/brightflock/sendout-backend/internal/queue"
	"github.com/brightflock/sendout-backend/internal/repository"
	"github.com/brightflock/sendout-backend/internal/service"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	var jobs queue.JobQueue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.NewAMQPJobQueue(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to job queue")
		}
		defer amqpQueue.Close()
		jobs = amqpQueue
	} else {
		jobs = queue.NewInMemoryJobQueue()
		log.Warn().Msg("AMQP_URL not set, using in-memory job queue")
	}

	sendoutRepo := &repository.SendoutRepository{DB: database}
	sendLogRepo := &repository.SendLogRepository{DB: database}
	contactRepo := &repository.ContactRepository{DB: database}
	pendingRepo := &repository.PendingContactRepository{DB: database}

	sendoutService := &service.SendoutService{
		SendoutRepo: sendoutRepo,
		SendLogRepo: sendLogRepo,
		Queue:       jobs,
		Log:         log,
	}
	pendingService := &service.PendingService{
		Cfg:         cfg,
		PendingRepo: pendingRepo,
		ContactRepo: contactRepo,
		Log:         log,
	}

	sendoutController := &controller.SendoutController{SendoutService: sendoutService}
	subscribeController := &controller.SubscribeController{PendingService: pendingService}

	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	// Sendout routes
	r.Post("/sendouts", sendoutController.CreateSendout)
	r.Get("/sendouts", sendoutController.ListSendouts)
	r.Get("/sendouts/{id}", sendoutController.GetSendout)
	r.Post("/sendouts/{id}/send", sendoutController.SendNow)
	r.Post("/sendouts/{id}/pause", sendoutController.Pause)
	r.Post("/sendouts/{id}/resume", sendoutController.Resume)
	r.Post("/sendouts/{id}/cancel", sendoutController.Cancel)

	// Mailing list subscription routes
	r.Post("/mailing-lists/{id}/subscribe", subscribeController.Subscribe)
	r.Post("/pending-contacts/{pid}/verify", subscribeController.Verify)

	r.Handle("/metrics", promhttp.Handler())

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
