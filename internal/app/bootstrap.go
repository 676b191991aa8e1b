package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	wstore "softarchitect/apps/ingest/internal/adapter/weaviate"
	"softarchitect/apps/ingest/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	VectorStore VectorStore
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

// Bootstrap connects every backing service the server needs.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	vecStore, err := OpenVectorStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	producer, err := OpenProducer(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Dependencies{
		DB:          db,
		VectorStore: vecStore,
		NSQProducer: producer,
	}, nil
}

// OpenDatabase connects to postgres, waiting for it to come up, and applies
// pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	retryDelay := cfg.RetryDelay()
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	return db, nil
}

// OpenVectorStore builds the Weaviate store and makes sure its class exists.
func OpenVectorStore(ctx context.Context, cfg *config.Config) (*wstore.Store, error) {
	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	vecStore := wstore.NewStore(wClient, cfg.WeaviateClass)

	if err := EnsureSchemaWithRetry(ctx, vecStore, cfg.BootstrapRetryAttempts, cfg.RetryDelay()); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}
	return vecStore, nil
}

// OpenProducer creates the NSQ producer and pre-creates the embedding topic.
func OpenProducer(cfg *config.Config) (*nsq.Producer, error) {
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)

	createTopics(cfg.NSQDHTTP)
	return producer, nil
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestEmbed)
	}()
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// EnsureSchemaWithRetry delegates schema check to a helper with retry logic.
func EnsureSchemaWithRetry(ctx context.Context, store schemaEnsurer, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
