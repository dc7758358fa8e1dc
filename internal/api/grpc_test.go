package api

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/gastroguide/internal/authattach"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/storage"
)

// healthServer serves grpc health over an in-memory listener and reports the
// authorization metadata of every call.
func healthServer(t *testing.T) (grpc.DialOption, <-chan []string) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	auth := make(chan []string, 16)
	s := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		got := md.Get("authorization")
		auth <- got
		if len(got) == 1 && got[0] == "Bearer expired" {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return next(ctx, req)
	}))
	healthpb.RegisterHealthServer(s, health.NewServer())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return dialer, auth
}

func TestGRPC_HealthCarriesToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dialer, auth := healthServer(t)

	sess := session.New(ctx, storage.NewMemory(), session.WithLogger(zaptest.NewLogger(t)))
	g, err := DialGRPC(GRPCConfig{Addr: "passthrough:///bufnet", Insecure: true, Dial: []grpc.DialOption{dialer}}, sess)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	st, err := g.Check(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "SERVING", st)
	require.Empty(t, <-auth)

	require.NoError(t, sess.Tokens().Save(ctx, "tok"))
	_, err = g.Check(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"Bearer tok"}, <-auth)
}

func TestGRPC_UnauthenticatedClearsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dialer, auth := healthServer(t)

	sess := session.New(ctx, storage.NewMemory(), session.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, sess.Tokens().Save(ctx, "expired"))
	sess.PersistUser(ctx, model.Patch{"email": "a@b.com"})

	var redirect string
	g, err := DialGRPC(GRPCConfig{
		Addr:     "passthrough:///bufnet",
		Insecure: true,
		Attach:   []authattach.Option{authattach.OnUnauthorized(func(r string) { redirect = r })},
		Dial:     []grpc.DialOption{dialer},
	}, sess)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	_, err = g.Check(ctx, "")
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Equal(t, []string{"Bearer expired"}, <-auth)
	require.Nil(t, sess.Snapshot())
	require.Empty(t, sess.Token(ctx))
	require.Equal(t, "/login?expired=1", redirect)
}
