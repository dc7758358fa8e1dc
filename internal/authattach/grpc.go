package authattach

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// BearerCredentials supplies the current session token as gRPC per-RPC credentials.
type BearerCredentials struct {
	sess   Session
	secure bool
}

// NewBearerCredentials returns credentials reading the token from sess on every call.
// secure requires a TLS transport, as production endpoints do.
func NewBearerCredentials(sess Session, secure bool) BearerCredentials {
	return BearerCredentials{sess: sess, secure: secure}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (b BearerCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	tok := b.sess.Token(ctx)
	if tok == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + tok}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (b BearerCredentials) RequireTransportSecurity() bool { return b.secure }

// UnaryClientInterceptor attaches the bearer token to calls outside the authentication
// service and clears the session when the server answers codes.Unauthenticated.
// The auth prefix is matched against the full method name, e.g. "/gastroguide.auth.".
func UnaryClientInterceptor(sess Session, opts ...Option) grpc.UnaryClientInterceptor {
	o := newOptions(opts)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		start := time.Now()
		md, _ := metadata.FromOutgoingContext(ctx)
		if !o.viaCredentials && len(md.Get("authorization")) == 0 && !strings.Contains(method, o.authPrefix) {
			if tok := sess.Token(ctx); tok != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
			}
		}

		err := invoker(ctx, method, req, reply, cc, callOpts...)
		code := status.Code(err)
		o.log.Debug("grpc",
			zap.String("method", method),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
		)
		if code == codes.Unauthenticated {
			o.unauthorized(ctx, sess, method)
		}
		return err
	}
}
