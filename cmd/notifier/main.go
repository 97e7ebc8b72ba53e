package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/config"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/housekeeping"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/consumer"
	eventhandler "github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/event"
	examhandler "github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/exam"
	sessionhandler "github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/session"
	streakhandler "github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/streak"
	userhandler "github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/user"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/queue"
	notifrepo "github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/notification"
	userrepo "github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/user"
	notifsvc "github.com/edgargavioli/pi5-app-estudo-sub001/internal/service/notification"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/worker"
	"github.com/edgargavioli/pi5-app-estudo-sub001/pkg/push"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	broker, err := queue.NewBroker(ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to declare broker topology")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	notifications := notifrepo.NewRepository(db)
	users := userrepo.NewRepository(db)
	service := notifsvc.NewService(notifications, users, rdb)

	exams := examhandler.NewHandler(service, val, cfg.Retry)
	events := eventhandler.NewHandler(service, val, cfg.Retry)
	sessions := sessionhandler.NewHandler(service, val, cfg.Retry)
	streaks := streakhandler.NewHandler(service, val, cfg.Retry)
	registrations := userhandler.NewHandler(service, val)

	dispatcher := consumer.NewDispatcher(broker, cfg.Consumer.MaxAttempts)
	dispatcher.Handle(queue.EventUserCreated, registrations.HandleCreated)
	dispatcher.Handle(queue.EventExamCreated, exams.HandleCreated)
	dispatcher.Handle(queue.EventExamUpdated, exams.HandleUpdated)
	dispatcher.Handle(queue.EventExamDeleted, exams.HandleDeleted)
	dispatcher.Handle(queue.EventEventCreated, events.HandleCreated)
	dispatcher.Handle(queue.EventSessionCreated, sessions.HandleCreated)
	dispatcher.Handle(queue.EventSessionFinished, sessions.HandleFinished)
	dispatcher.Handle(queue.EventStreakCreated, streaks.HandleCreated)

	gateway := push.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	scheduler := worker.NewScheduler(service, gateway, cfg.Worker.PollInterval, cfg.Gateway.Timeout, cfg.Retry)

	cleaner := housekeeping.NewCleaner(service, cfg.Housekeeping.CronSpec, cfg.Housekeeping.Retention())
	if err := cleaner.Start(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to start housekeeping")
	}

	go dispatcher.Run(ctx, cfg.Retry, cfg.Consumer.Count)
	go scheduler.Run(ctx)

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	cleaner.Stop()

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
