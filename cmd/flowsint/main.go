// Command flowsint runs the platform: "serve" exposes the HTTP API, "worker"
// drains the task queue. Both modes share the same configuration, read from
// the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/flowsint/flowsint/enricher"
	_ "github.com/flowsint/flowsint/enrichers"
	"github.com/flowsint/flowsint/graph"
	"github.com/flowsint/flowsint/log"
	"github.com/flowsint/flowsint/server"
	"github.com/flowsint/flowsint/store"
	"github.com/flowsint/flowsint/task"
)

type config struct {
	addr      string
	dbPath    string
	redisAddr string
	neo4jURI  string
	neo4jUser string
	neo4jPass string
	poolSize  int
}

func loadConfig() config {
	return config{
		addr:      envOr("FLOWSINT_ADDR", ":8000"),
		dbPath:    envOr("FLOWSINT_DB", "flowsint.db"),
		redisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		neo4jURI:  envOr("NEO4J_URI", "bolt://localhost:7687"),
		neo4jUser: envOr("NEO4J_USERNAME", "neo4j"),
		neo4jPass: os.Getenv("NEO4J_PASSWORD"),
		poolSize:  task.DefaultPoolSize,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		log.SetLevel(lvl)
	}

	mode := flag.Arg(0)
	if mode == "" {
		mode = "serve"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	db, err := store.Open(ctx, cfg.dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	defer rdb.Close()

	switch mode {
	case "serve":
		runServer(ctx, cfg, db, rdb)
	case "worker":
		runWorker(ctx, cfg, db, rdb)
	default:
		log.Fatalf("unknown mode %q (want serve or worker)", mode)
	}
}

func runServer(ctx context.Context, cfg config, db *store.Store, rdb *redis.Client) {
	queue := task.NewQueue(rdb, db)
	srv := server.New(db, queue, enricher.Default)
	httpServer := &http.Server{Addr: cfg.addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	log.Infof("http server listening on %s", cfg.addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}

func runWorker(ctx context.Context, cfg config, db *store.Store, rdb *redis.Client) {
	gs, err := graph.NewNeo4jStore(ctx, cfg.neo4jURI, cfg.neo4jUser, cfg.neo4jPass)
	if err != nil {
		log.Fatalf("connect graph store: %v", err)
	}
	defer gs.Close(ctx)

	w, err := task.NewWorker(rdb, db, gs, enricher.Default, cfg.poolSize)
	if err != nil {
		log.Fatalf("create worker: %v", err)
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
}
