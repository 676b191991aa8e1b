package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"softarchitect/apps/ingest/internal/config"
)

const (
	testDBName = "softarchitect_test"
	testDBUser = "test"
	testDBPass = "test"
)

// IntegrationSuite starts postgres, Weaviate and nsqd in containers.
type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer

	dbHost       string
	dbPort       int
	weaviateHost string
	nsqdTCP      string
	nsqdHTTP     string

	// Containers
	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	s.dbHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.dbPort = pgPort.Int()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	// Run Migrations
	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	// 2. Weaviate
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:1.33.6",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":                 "none",
			"PERSISTENCE_DATA_PATH":                     "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)
	s.weaviateHost = fmt.Sprintf("%s:%s", host, port.Port())

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{Host: s.weaviateHost, Scheme: "http"})
	require.NoError(s.T, err)

	// 3. NSQ
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	nsqHTTPPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)
	s.nsqdTCP = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())
	s.nsqdHTTP = fmt.Sprintf("%s:%s", nsqHost, nsqHTTPPort.Port())

	s.NSQ, err = nsq.NewProducer(s.nsqdTCP, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a configuration pointing at the suite's containers.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		KBRoot:                     s.T.TempDir(),
		MaxChunkSize:               2000,
		MinChunkSize:               0,
		ValidateSecurity:           true,
		MaxFileSizeBytes:           1 << 20,
		MaxDepth:                   10,
		DBHost:                     s.dbHost,
		DBPort:                     s.dbPort,
		DBUser:                     testDBUser,
		DBPass:                     testDBPass,
		DBName:                     testDBName,
		WeaviateHost:               s.weaviateHost,
		WeaviateScheme:             "http",
		WeaviateClass:              "KnowledgeChunk",
		SearchAlpha:                0.5,
		NSQDHost:                   s.nsqdTCP,
		NSQDHTTP:                   s.nsqdHTTP,
		IngestMode:                 config.IngestModeDirect,
		IngestionConcurrency:       2,
		MigrationPath:              MigrationPath(),
		WatchDebounceMS:            50,
		QueryLogPath:               filepath.Join(s.T.TempDir(), "query.log"),
		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

// MigrationPath is the file:// URL of the repository's migrations.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

// WriteFile creates a file under root, making parent directories as needed.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
