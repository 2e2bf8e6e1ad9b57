package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	. "github.com/DrGermanius/bookstore/internal"
)

const shutdownTimeout = 15 * time.Second

func main() {
	//decimals at json as numbers
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer z.Sync() //nolint:errcheck
	sugaredLogger := z.Sugar()

	cfg, err := NewConfig(os.Args[1:])
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	if cfg.InsecureJWTSecret() {
		sugaredLogger.Warn("JWT_SECRET is not set, auth tokens are signed with the built-in secret")
	}

	repository, err := NewRepository(cfg.DatabaseURI, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	defer repository.Close()

	hub := NewHub(sugaredLogger)
	broadcaster := MultiBroadcaster{hub}
	if cfg.AMQPURL != "" {
		amqpBroadcaster, err := NewAMQPBroadcaster(cfg.AMQPURL, cfg.AMQPExchange, sugaredLogger)
		if err != nil {
			sugaredLogger.Fatal(err)
		}
		defer amqpBroadcaster.Close()
		broadcaster = append(broadcaster, amqpBroadcaster)
	}

	var mailer IMailer = NewLogMailer(sugaredLogger)
	if cfg.SMTP.Host != "" {
		mailer, err = NewSMTPMailer(cfg.SMTP)
		if err != nil {
			sugaredLogger.Fatal(err)
		}
	}

	service := NewService(repository, mailer, broadcaster, cfg.JWTSecret, sugaredLogger)
	handlers := NewHandlers(service, repository, sugaredLogger)
	dispatcher := NewDispatcher(repository, broadcaster, sugaredLogger, cfg.DispatchInterval)

	app := NewApp(handlers, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})

	g.Go(func() error {
		sugaredLogger.Infof("listening on %s", cfg.RunAddress)
		return app.Listen(cfg.RunAddress)
	})

	g.Go(func() error {
		<-gctx.Done()
		sugaredLogger.Info("Shutting down service...")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err = g.Wait(); err != nil {
		sugaredLogger.Errorf("service stopped with error: %s", err.Error())
	}
}
