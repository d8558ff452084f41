package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/favorite-places/backend/internal/config"
	"github.com/zhouzirui/favorite-places/backend/internal/dataset"
	"github.com/zhouzirui/favorite-places/backend/internal/events"
	"github.com/zhouzirui/favorite-places/backend/internal/handler"
	"github.com/zhouzirui/favorite-places/backend/internal/handler/feed"
	"github.com/zhouzirui/favorite-places/backend/internal/lifecycle"
	"github.com/zhouzirui/favorite-places/backend/internal/service/catalog"
)

const eventQueueSize = 256

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	source, err := datasetSource(cfg.Dataset)
	if err != nil {
		log.Fatalf("failed to configure places dataset: %v", err)
	}
	if cfg.Dataset.Verify {
		if err := verifyDataset(ctx, source); err != nil {
			log.Fatalf("places dataset failed verification: %v", err)
		}
		log.Printf("[dataset] %s checksum verified", source.Name())
	}

	// Change-event sinks
	var sinks []events.Sink
	if cfg.Events.KafkaEnabled() {
		kafkaSink := events.NewKafkaSink(cfg.Events.KafkaBroker, cfg.Events.KafkaTopic)
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				log.Printf("failed to close kafka writer: %v", err)
			}
		}()
		sinks = append(sinks, kafkaSink)
	}
	if cfg.Events.ElasticsearchEnabled() {
		if sink, err := elasticSink(ctx, cfg.Events); err != nil {
			log.Printf("warning: elasticsearch mirror disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	var hub *feed.Hub
	if cfg.Feed.Addr != "" {
		hub = feed.NewHub()
		sinks = append(sinks, hub)
	}

	var publisher events.Publisher = events.Discard
	if len(sinks) > 0 {
		bus := events.NewBus(eventQueueSize, sinks...)
		go bus.Run(ctx)
		publisher = bus
	}

	catalogSvc, err := catalog.NewService(ctx, source, publisher)
	if err != nil {
		log.Fatalf("failed to load places catalog: %v", err)
	}
	// Seed the mirrors with the initial catalog.
	publisher.Publish(events.CatalogReset(catalogSvc.List(ctx)))

	router := handler.NewRouter(catalogSvc, cfg.Server.Identity)
	controller := lifecycle.NewController(cfg.Server, router, nil)

	if hub != nil {
		go startFeed(ctx, cfg.Feed.Addr, hub)
	}

	if err := controller.Start(ctx); err != nil {
		log.Fatalf("failed to start places service: %v", err)
	}
	running, err := controller.IsRunning(ctx, true, cfg.Probe.RetryCount, cfg.Probe.RetryDelay)
	if err != nil {
		log.Fatalf("places service readiness check failed: %v", err)
	}
	if !running {
		log.Fatalf("places service did not become ready at %s", cfg.Server.BaseURL)
	}
	log.Printf("Favorite places backend ready at %s", cfg.Server.BaseURL)

	select {
	case <-ctx.Done():
	case err := <-controller.Done():
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func datasetSource(cfg config.DatasetConfig) (dataset.Source, error) {
	switch {
	case cfg.S3.Enabled():
		return dataset.NewS3Source(dataset.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
		})
	case cfg.Path != "":
		return dataset.FileSource{Path: cfg.Path}, nil
	default:
		return dataset.Embedded(), nil
	}
}

func verifyDataset(ctx context.Context, source dataset.Source) error {
	rc, err := source.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return dataset.Verify(rc)
}

func elasticSink(ctx context.Context, cfg config.EventsConfig) (*events.ElasticSink, error) {
	client, err := events.NewElasticClient(cfg.ElasticsearchURL)
	if err != nil {
		return nil, err
	}
	sink := events.NewElasticSink(client, cfg.ElasticsearchIndex)
	if err := sink.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func startFeed(ctx context.Context, addr string, hub *feed.Hub) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           feed.NewRouter(hub),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("[feed] live feed listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("[feed] server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
