package health

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Report is the result of probing a running client.
type Report struct {
	Overall  string `json:"overall"`
	Realtime string `json:"realtime"`
}

// Probe dials the health socket and checks overall and realtime status.
func Probe(ctx context.Context, socketPath string) (*Report, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial health socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)
	overall, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return nil, fmt.Errorf("check overall: %w", err)
	}
	rt, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: RealtimeService})
	if err != nil {
		return nil, fmt.Errorf("check realtime: %w", err)
	}
	return &Report{
		Overall:  overall.GetStatus().String(),
		Realtime: rt.GetStatus().String(),
	}, nil
}
