package core

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSetup provides a strategy over two mock members
type TestSetup struct {
	A        *MockMember
	B        *MockMember
	Strategy *PoolStrategy
}

// NewTestSetup creates a standard two-member test setup
func NewTestSetup(t *testing.T, options ...Option) *TestSetup {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
	options = append([]Option{WithLogger(logger)}, options...)

	a := NewMockMember("server-a:11300")
	b := NewMockMember("server-b:11300")
	s, err := NewPoolStrategy("mock", []Member{a, b}, options...)
	require.NoError(t, err)

	return &TestSetup{A: a, B: b, Strategy: s}
}

// ContextWithTimeout creates a context with standard timeout for tests
func ContextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Second)
}
