package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/dispatchd/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := postgres.NewPool(context.Background(), "://not-a-dsn")
	require.Error(t, err)
}

func TestNewPool_UnreachableReportsTransient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := postgres.NewPool(ctx, "postgres://u:p@127.0.0.1:1/dispatchd?sslmode=disable")
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrTransient)
}
