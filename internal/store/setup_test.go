package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")

	host, err := postgres.Host(ctx)
	require.NoError(t, err)

	port, err := postgres.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, runMigrations(db))

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	return db
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

type fixture struct {
	db     *sql.DB
	store  *store.Store
	client *models.User
	agent  *models.User
	staff  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t)
	s := store.New(db)
	q := s.Reader()

	client, err := q.CreateUser(ctx, "client@example.com", "Client", models.RoleClient)
	require.NoError(t, err)
	agent, err := q.CreateUser(ctx, "agent@example.com", "Agent", models.RoleAgent)
	require.NoError(t, err)
	staff, err := q.CreateUser(ctx, "staff@example.com", "Staff", models.RoleStaff)
	require.NoError(t, err)

	return &fixture{db: db, store: s, client: client, agent: agent, staff: staff}
}

func (f *fixture) product(t *testing.T, name string, price int64, categoryIDs ...int64) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:        name,
		Price:       decimal.NewFromInt(price),
		CategoryIDs: categoryIDs,
	}
	require.NoError(t, f.store.Reader().CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) order(t *testing.T, userID int64, total int64) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:      userID,
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.NewFromInt(total),
	}
	require.NoError(t, f.store.Reader().InsertOrder(context.Background(), o))
	return o
}
