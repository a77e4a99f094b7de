// cmd/server is the single long-running binary for the medical
// education request coordination core: it wires storage/transport
// clients bottom-up, registers the Gin routes, starts the behavior
// pipeline's background consumer, blocks on signal, and shuts down in
// reverse order — the same lifespan shape as the teacher's original
// cmd/server/main.go, generalized from a KV-store node to this
// service's dependency graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medschool-core/internal/api"
	"medschool-core/internal/behavior"
	"medschool-core/internal/chat"
	"medschool-core/internal/config"
	"medschool-core/internal/course"
	"medschool-core/internal/idempotency"
	"medschool-core/internal/idgen"
	"medschool-core/internal/keyedstore"
	"medschool-core/internal/listcache"
	"medschool-core/internal/order"
	"medschool-core/internal/payment"
	"medschool-core/internal/recommend"
	"medschool-core/internal/session"
	"medschool-core/internal/user"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (env vars always win)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
		os.Exit(1)
	}

	store, closeStore, err := buildKeyedStore(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("connect keyed store")
		os.Exit(3)
	}
	defer closeStore()

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		log.Error().Err(err).Msg("connect relational database")
		os.Exit(3)
	}
	defer pool.Close()

	queueConn, queueCh, err := buildQueue(cfg)
	if err != nil {
		log.Error().Err(err).Msg("connect queue")
		os.Exit(3)
	}
	defer queueCh.Close()
	defer queueConn.Close()

	docColl, docClient, err := buildDocStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("connect doc store")
		os.Exit(3)
	}
	defer docClient.Disconnect(context.Background())

	// ── Domain components, bottom-up ──────────────────────────────────────
	courses := course.NewPGRepository(pool)
	snapshots := &course.SnapshotAdapter{Repo: courses}

	cache := listcache.New(store, log, listcache.Config{
		TTL:          cfg.Cache.TTL,
		LockTTL:      cfg.Cache.LockTTL,
		FollowMax:    cfg.Cache.FollowMax,
		PollMinDelay: cfg.Cache.PollMinDelay,
		PollMaxDelay: cfg.Cache.PollMaxDelay,
	})
	idemGate := idempotency.New(store, log, cfg.Idempotency.TTL)
	sessions := session.New(log)

	queue, err := behavior.NewQueue(queueCh, cfg.Queue.Queue, log)
	if err != nil {
		log.Error().Err(err).Msg("declare behavior queue")
		os.Exit(3)
	}
	behaviorPublisher := behavior.NewPublisher(queue, snapshots, log)
	behaviorSink := behavior.NewMongoSink(docColl)
	if err := behaviorSink.EnsureIndexes(context.Background()); err != nil {
		log.Error().Err(err).Msg("ensure behavior log indexes")
		os.Exit(3)
	}

	recommender := recommend.New(behaviorSink, courses, log)

	chatStore := chat.NewStore(store, log)
	embedder := chat.NewOpenAIEmbedder(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, log)
	vectorStore := chat.NewPGVectorStore(pool, cfg.VectorStore.Namespace, embedder, log)
	chatModel := chat.NewOpenAIChatModel(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, log)
	chatEngine := chat.NewEngine(chatStore, chatModel, vectorStore, log)

	paymentDispatcher := payment.NewDispatcher(payment.Dependencies{})
	orderRepo := order.NewPGRepository(pool)
	orderService := order.NewService(orderRepo, courses, paymentDispatcher, idgen.New)

	verifier := user.NewVerifier(cfg.JWT.Secret)

	handler := api.NewHandler(log, cache, idemGate, sessions, behaviorPublisher, recommender, chatEngine, chatStore, orderService, courses, verifier, cfg.JWT.AccessTTL, cfg.Admin.Token)

	// ── Background consumer (C5) ──────────────────────────────────────────
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	deliveries, err := queue.Consume("medschool-core-consumer")
	if err != nil {
		log.Error().Err(err).Msg("start behavior queue consumer")
		os.Exit(3)
	}
	go behavior.NewConsumer(behaviorSink, log).Run(consumerCtx, deliveries)

	// ── HTTP server ────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(log), api.Recovery(log), api.ErrorHandler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(router)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // long enough to cover C7's SSE stream
	}

	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			os.Exit(2)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancelConsumer()
	sessions.CloseAll(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func buildKeyedStore(cfg *config.Config, log zerolog.Logger) (keyedstore.Store, func(), error) {
	if cfg.KeyedStore.Driver == "local" {
		store, err := keyedstore.NewLocal("")
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.KeyedStore.Addr,
		Password: cfg.KeyedStore.Password,
		DB:       cfg.KeyedStore.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	store := keyedstore.NewRedis(rdb)
	return store, func() { _ = store.Close() }, nil
}

func buildQueue(cfg *config.Config) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.Queue.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return conn, ch, nil
}

func buildDocStore(cfg *config.Config) (*mongo.Collection, *mongo.Client, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.DocStore.URL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	coll := client.Database(cfg.DocStore.Database).Collection(cfg.DocStore.Collection)
	return coll, client, nil
}
