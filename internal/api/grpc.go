package api

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/gastroguide/internal/authattach"
	"github.com/and161185/gastroguide/internal/session"
)

// GRPCConfig describes the optional gRPC endpoint of the remote API.
type GRPCConfig struct {
	Addr string
	// Insecure dials without TLS; the bearer token then travels in clear text.
	Insecure bool
	Attach   []authattach.Option
	Dial     []grpc.DialOption
}

// GRPC is a connection to the remote gRPC endpoint carrying the session token on every call.
type GRPC struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// DialGRPC prepares a connection to cfg.Addr. The token comes from BearerCredentials; the
// interceptor clears the session when the server answers Unauthenticated.
func DialGRPC(cfg GRPCConfig, sess *session.Session) (*GRPC, error) {
	transport := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		transport = insecure.NewCredentials()
	}
	attach := append(append([]authattach.Option{}, cfg.Attach...), authattach.CredentialsAttached())
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithPerRPCCredentials(authattach.NewBearerCredentials(sess, !cfg.Insecure)),
		grpc.WithChainUnaryInterceptor(authattach.UnaryClientInterceptor(sess, attach...)),
	}, cfg.Dial...)

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", cfg.Addr, err)
	}
	return &GRPC{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Check asks the standard health service about service ("" means the whole server)
// and returns its serving status, e.g. "SERVING".
func (g *GRPC) Check(ctx context.Context, service string) (string, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}

// Close releases the connection.
func (g *GRPC) Close() error { return g.conn.Close() }
