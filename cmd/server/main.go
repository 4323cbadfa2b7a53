package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"blog/pkg/accesslog"
	"blog/pkg/api"
	"blog/pkg/blog"
	"blog/pkg/config"
	"blog/pkg/datefmt"
	"blog/pkg/prismic"
	"blog/pkg/ratelimit"
	"blog/pkg/storage/memdb"
)

const regenerateTimeout = 30 * time.Second

func main() {
	var (
		confPath   string
		httpAddr   string
		logLevel   string
		kafkaAddr  string
		kafkaTopic string
		kafkaBatch int
	)

	flag.StringVar(&confPath, "servconf", "cmd/server/config.toml", "Path to TOML config file.")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka broker address for access logs, e.g. 'localhost:9092'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic for access logs.")
	flag.IntVar(&kafkaBatch, "batch", 0, "Kafka writer batch size.")
	flag.Parse()

	conf, err := config.Load(confPath)
	if err != nil {
		log.Fatalf("[server] failed to load config: %v", err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		conf.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if kafkaAddr != "" {
		conf.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		conf.KafkaTopic = kafkaTopic
	}
	if kafkaBatch > 0 {
		conf.KafkaBatch = kafkaBatch
	}

	if err := conf.Validate(); err != nil {
		log.Fatalf("[server] invalid config: %v", err)
	}
	if !strings.Contains(conf.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	switch strings.ToLower(conf.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}
	log.Infof("[server] config: %s", conf)

	loc, err := conf.Location()
	if err != nil {
		log.Fatalf("[server] invalid time zone %q: %v", conf.TimeZone, err)
	}
	df, err := datefmt.New(conf.Locale, loc)
	if err != nil {
		log.Fatalf("[server] failed to create date formatter: %v", err)
	}
	norm, err := blog.NewNormalizer(df)
	if err != nil {
		log.Fatal(err)
	}

	client := prismic.New(conf.ContentEndpoint, conf.ContentTimeout.Duration)
	loader, err := blog.NewLoader(client, norm, conf.DocumentType, conf.PageSize)
	if err != nil {
		log.Fatal(err)
	}
	fetcher, err := blog.NewFetcher(client, norm)
	if err != nil {
		log.Fatal(err)
	}
	snap := blog.NewSnapshot(loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := memdb.New(memdb.WithIdleTTL(conf.SessionTTL.Duration))
	db.StartJanitor(ctx)

	limiter := ratelimit.NewStore(conf.LoadMoreRPS, conf.LoadMoreBurst)
	limiter.StartJanitor(ctx)

	opts := []api.Option{api.WithLimiter(limiter)}
	if conf.KafkaEnabled() {
		topicCtx, topicCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := accesslog.CreateTopic(topicCtx, conf.KafkaAddr, conf.KafkaTopic); err != nil {
			log.Warnf("[server] failed to create Kafka topic %s: %v", conf.KafkaTopic, err)
		}
		topicCancel()

		sink := accesslog.NewKafkaSink(conf.KafkaAddr, conf.KafkaTopic, conf.KafkaBatch)
		defer sink.Close()
		opts = append(opts, api.WithSink(sink))
		log.Infof("[server] access logs go to Kafka %s topic %s", sink.Addr(), sink.Topic())
	}

	srv, err := api.New(conf.ServiceName, snap, db, fetcher, opts...)
	if err != nil {
		log.Fatal(err)
	}

	// A failed first regeneration is not fatal: the index answers 503
	// until a later run succeeds.
	regenerate := func() {
		rctx, rcancel := context.WithTimeout(ctx, regenerateTimeout)
		defer rcancel()
		if err := snap.Regenerate(rctx); err != nil {
			log.Errorf("[server] failed to regenerate first page: %v", err)
		}
	}
	regenerate()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		ticker := time.NewTicker(conf.Revalidate.Duration)

		defer func() {
			ticker.Stop()
			log.Info("[server] regeneration stopped")
			wg.Done()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				regenerate()
			}
		}
	}()

	server := &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: srv.Router,
	}

	go func() {
		log.Infof("[server] starting on %v", conf.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] HTTP server error: %v", err)
		}
		log.Info("[server] stopped serving new connections")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()
	wg.Wait()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP shutdown error: %v", err)
		return
	}
	log.Info("[server] server stopped")
}
