package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"equitrail/internal/audit"
	auditconsumer "equitrail/internal/audit/consumer"
	audithandler "equitrail/internal/audit/handler"
	auditpg "equitrail/internal/audit/store/postgres"
	"equitrail/internal/disclosure"
	disclosurepg "equitrail/internal/disclosure/store/postgres"
	"equitrail/internal/events"
	"equitrail/internal/notify"
	notifypg "equitrail/internal/notify/store/postgres"
	"equitrail/internal/platform/config"
	"equitrail/internal/platform/httpserver"
	kafkaconsumer "equitrail/internal/platform/kafka/consumer"
	kafkaproducer "equitrail/internal/platform/kafka/producer"
	"equitrail/internal/platform/logger"
	"equitrail/internal/platform/metrics"
	"equitrail/internal/platform/middleware"
	"equitrail/internal/platform/redis"
	"equitrail/internal/queue"
	"equitrail/internal/queue/redisq"
	"equitrail/internal/referral"
	referralpg "equitrail/internal/referral/store/postgres"
	"equitrail/internal/risk"
	riskpg "equitrail/internal/risk/store/postgres"
	"equitrail/internal/snapshot"
	snapshothandler "equitrail/internal/snapshot/handler"
	snapshotpg "equitrail/internal/snapshot/store/postgres"
	httptransport "equitrail/internal/transport/http"
	id "equitrail/pkg/domain"
)

// main wires dependencies and runs the server plus its background workers.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "equitrail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	platformMetrics := metrics.New()
	auditMetrics := audit.NewMetrics()
	queueMetrics := queue.NewMetrics()
	notifyMetrics := notify.NewMetrics()

	// Audit trail: fail-closed logger over the transactional outbox.
	auditStore := auditpg.New(db)
	auditLogger, err := audit.NewLogger(auditStore, log, audit.WithMetrics(auditMetrics))
	if err != nil {
		return err
	}
	alerter := audit.NewAlerter(log, audit.WithAlerterMetrics(auditMetrics))

	// Background jobs.
	jobQueue := redisq.New(redisClient.Client, "")
	pool := queue.NewPool(jobQueue, log,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithBackoff(cfg.Queue.Backoff),
		queue.WithMetrics(queueMetrics),
		queue.WithFailedHook(func(ctx context.Context, job queue.Job, jobErr error) {
			entry := audit.Entry{
				Action:      audit.ActionJobAbandoned,
				Description: "background job abandoned after exhausting its retry budget",
				TargetType:  audit.TargetJob,
				TargetID:    job.ID,
				Metadata: map[string]any{
					"job_name": job.Name,
					"attempts": job.Attempt + 1,
					"error":    jobErr.Error(),
				},
				RiskLevel:      id.RiskHigh,
				RequiresReview: true,
			}
			if logErr := auditLogger.Log(ctx, entry); logErr != nil {
				log.ErrorContext(ctx, "failed to audit abandoned job",
					"job", job.Name,
					"job_id", job.ID,
					"error", logErr,
				)
			}
		}),
	)

	bus := events.NewBus(jobQueue, log)

	// Risk scoring runs synchronously in the publisher's transaction.
	riskStore := riskpg.New(db)
	riskService, err := risk.NewService(riskStore, risk.NewWeightedScorer(), auditLogger, log,
		risk.WithAlertSink(alerter),
		risk.WithBlockingThreshold(cfg.Risk.BlockingThreshold),
	)
	if err != nil {
		return err
	}
	bus.SubscribeSync(events.NameChargebackConfirmed, riskService.OnChargebackConfirmed)

	// Disclosure tier promotion.
	disclosureStore := disclosurepg.New(db)
	disclosureService, err := disclosure.NewService(disclosureStore, auditLogger, log)
	if err != nil {
		return err
	}
	disclosureListener := disclosure.NewListener(disclosureStore, disclosureService, log)
	bus.SubscribeAsync(events.NameDisclosureApproved, disclosure.JobTierCheck)
	pool.Register(disclosure.JobTierCheck, disclosureListener.HandleApproved)

	// Referral reconciliation.
	deduper := redis.NewDeduper(redisClient, "equitrail:dedup")
	referralStore := referralpg.New(db)
	referralService, err := referral.NewService(referralStore, referralStore, deduper, jobQueue, auditLogger, log)
	if err != nil {
		return err
	}
	referralListener := referral.NewListener(referralService, log)
	bus.SubscribeAsync(events.NameKYCVerified, referral.JobReconcile)
	pool.Register(referral.JobReconcile, referralListener.HandleKYCVerified)
	pool.Register(referral.JobProcess, referralListener.HandleProcess)

	// Ticket notifications.
	directory := notifypg.NewDirectory(db)
	notifyService, err := notify.NewService(notify.NewLogNotifier(log), deduper, log,
		notify.WithMetrics(notifyMetrics))
	if err != nil {
		return err
	}
	notifyListener := notify.NewListener(notifyService, directory, directory, log)
	bus.SubscribeAsync(events.NameTicketEscalated, notify.JobTicketEscalated)
	bus.SubscribeAsync(events.NameTicketClosed, notify.JobTicketClosed)
	pool.Register(notify.JobTicketEscalated, notifyListener.HandleTicketEscalated)
	pool.Register(notify.JobTicketClosed, notifyListener.HandleTicketClosed)

	// Snapshots.
	snapshotStore := snapshotpg.New(db)
	snapshotService, err := snapshot.NewService(snapshotStore, auditLogger, log)
	if err != nil {
		return err
	}

	// Kafka: outbox relay out, materializing consumer in.
	producer, err := kafkaproducer.New(cfg.Kafka.Brokers)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()
	if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 3, 1); err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	relay := audit.NewRelay(auditStore, producer, cfg.Kafka.AuditTopic, log,
		audit.WithRelayMetrics(auditMetrics))

	materializer := auditconsumer.NewHandler(auditStore, log)
	consumer, err := kafkaconsumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.AuditTopic}, materializer, log)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		AuditHandler:    audithandler.New(auditStore, log),
		SnapshotHandler: snapshothandler.New(snapshotService, log),
		Validator:       middleware.NewHMACValidator(cfg.Server.JWTSigningKey),
		Logger:          log,
		Metrics:         platformMetrics,
		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Health(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return alerter.Run(gctx) })
	g.Go(func() error {
		log.Info("starting equitrail governance core", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
