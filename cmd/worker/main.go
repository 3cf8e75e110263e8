// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/brightflock/sendout-backend/internal/config"
	"github.com/brightflock/sendout-backend/internal/db"
	"github.com/brightflock/sendout-backend/internal/mail"
	"github.com/brightflock/sendout-backend/internal/notify"
	"github.com/brightflock/sendout-backend/internal/queue"
	"github.com/brightflock/sendout-backend/internal/repository"
	"github.com/brightflock/sendout-backend/internal/service"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

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

	var transport mail.Transport
	if cfg.TestMode {
		transport = mail.NewTestTransport()
		log.Warn().Msg("test mode enabled, emails are recorded instead of sent")
	} else {
		transport = mail.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password)
	}

	sendoutRepo := &repository.SendoutRepository{DB: database}
	contactRepo := &repository.ContactRepository{DB: database}
	sendLogRepo := &repository.SendLogRepository{DB: database}
	pendingRepo := &repository.PendingContactRepository{DB: database}

	notifier := &notify.EmailNotifier{
		Transport: transport,
		FromName:  os.Getenv("NOTIFY_FROM_NAME"),
		FromEmail: os.Getenv("NOTIFY_FROM_EMAIL"),
		Log:       log,
	}

	retryController := &service.RetryController{
		Cfg:         cfg,
		Transport:   transport,
		SendoutRepo: sendoutRepo,
		Notifier:    notifier,
		Log:         log,
	}
	orchestrator := service.NewOrchestrator(cfg, sendoutRepo, contactRepo, sendLogRepo, jobs, retryController, notifier, log)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg conc.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		runner := &service.Runner{
			Cfg:   cfg,
			Queue: jobs,
			Orch:  orchestrator,
			Retry: retryController,
			Log:   log,
		}
		wg.Go(func() { runner.Start(ctx) })
	}
	wg.Go(func() { schedulerLoop(ctx, cfg, sendoutService, pendingService, log) })

	log.Info().Int("workers", cfg.WorkerCount).Msg("worker running, waiting for jobs")
	wg.Wait()
}

// schedulerLoop queues due sendouts and purges expired pending contacts
// on a fixed tick.
func schedulerLoop(ctx context.Context, cfg config.Config, sendouts *service.SendoutService, pending *service.PendingService, log zerolog.Logger) {
	ticker := time.NewTicker(cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if _, err := sendouts.QueueDueSendouts(ctx, now); err != nil {
				log.Error().Err(err).Msg("schedule evaluation failed")
			}
			if _, err := pending.PurgeExpired(now); err != nil {
				log.Error().Err(err).Msg("pending contact purge failed")
			}
		}
	}
}
