package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServing(t *testing.T) {
	s, err := NewServer(&Config{Addr: "127.0.0.1:0", Logger: zap.NewNop()})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, service := range []string{"", ServiceName} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus(), "service %q", service)
	}

	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestNewServerBindFailure(t *testing.T) {
	first, err := NewServer(&Config{Addr: "127.0.0.1:0", Logger: zap.NewNop()})
	require.NoError(t, err)
	defer first.listener.Close()

	_, err = NewServer(&Config{Addr: first.Addr(), Logger: zap.NewNop()})
	assert.Error(t, err)
}
