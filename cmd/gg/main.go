// Command gg is a CLI client for the GastroGuide API that keeps its session and local
// collections between invocations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/gastroguide/internal/api"
	"github.com/and161185/gastroguide/internal/app"
	"github.com/and161185/gastroguide/internal/config"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage marks bad invocations; they exit with status 2.
var errUsage = errors.New("usage")

const usageText = `gg CLI
Usage:
  gg [-api URL] [-grpc ADDR] [-storage file|memory|postgres|redis] [-passphrase P] <cmd> [args]

Commands:
  version
  login      -email <email> -password <password>
  register   -u <username> -email <email> -password <password> [-role STUDENT|CREATOR]
  logout
  whoami                                  (cached profile and effective role)
  refresh                                 (reload the profile from the server)
  profile    -set key=value [-set ...]    (optimistic update, reconciled with the server)
  promote    -email <email>
  forgot     -email <email>
  reset      -token <token> -password <password>
  courses
  decode     [-token <jwt>]               (unverified claims of the current token)
  guard      -path <path> [-roles A,B]
  ping       [-service NAME]              (gRPC health check with the session token)
  cart       list | add -id -title -price | rm -id | clear | total | checkout | buy -id -title -price
  library    list | add -id -title | progress -id -value | rm -id | has -id
  reels      list | add -title -author -src | reload
  users      list | add -name -email | reload
  stats      view|like|comment -id | totals | top [-n N]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load("gg", args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, usageText)
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}
	if rest[0] == "version" {
		fmt.Fprintf(stdout, "gg %s (%s)\n", version, buildDate)
		return 0
	}

	logger := newLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.OnSessionExpired(func(redirect string) {
		fmt.Fprintf(stderr, "session expired, sign in again (%s)\n", redirect)
	}))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.Close()

	c := &cli{app: a, out: stdout}
	if err := c.dispatch(ctx, rest[0], rest[1:]); err != nil {
		fmt.Fprintln(stderr, describe(err))
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usageText)
			return 2
		}
		return 1
	}
	return 0
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// describe renders an error for a human; server messages are shown as sent.
func describe(err error) string {
	var se *api.StatusError
	switch {
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	case api.IsUnauthorized(err):
		return "not authorized: " + err.Error()
	default:
		return err.Error()
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
