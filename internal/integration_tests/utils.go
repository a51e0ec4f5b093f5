package integrationtests

import (
	"bytes"
	"chat-backend/internal/database"
	"chat-backend/pkg/api"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	uri := setupPostgresContainer(t, context.Background())
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	return connStr
}

// rpc calls a procedure on the handler and decodes the result data into dest.
// Queries are sent as GET with the input JSON encoded in the query string.
func rpc(handler http.Handler, method, procedure string, input any, dest any) error {
	endpoint := "/trpc/" + procedure

	var body io.Reader
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return err
		}
		if method == http.MethodGet {
			endpoint += "?input=" + url.QueryEscape(string(data))
		} else {
			body = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var env api.Envelope[json.RawMessage]
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		return fmt.Errorf("failed to unmarshal response (status %d): %w", rr.Code, err)
	}

	if env.Error != nil {
		return &rpcError{status: rr.Code, shape: *env.Error}
	}

	if rr.Code != http.StatusOK || env.Result == nil {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(env.Result.Data, dest); err != nil {
			return fmt.Errorf("failed to unmarshal result data: %w", err)
		}
	}

	return nil
}

type rpcError struct {
	status int
	shape  api.ErrorShape
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.shape.Code, e.shape.Message)
}
