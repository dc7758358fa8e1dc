package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/and161185/gastroguide/internal/api"
	"github.com/and161185/gastroguide/internal/app"
	"github.com/and161185/gastroguide/internal/claims"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/store"
)

type cli struct {
	app *app.App
	out io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		c.app.API.Logout(ctx)
		fmt.Fprintln(c.out, "ok")
		return nil
	case "whoami":
		return c.whoami(ctx)
	case "refresh":
		p, err := c.app.Session.Refresh(ctx)
		if err != nil {
			return err
		}
		printJSON(c.out, p)
		return nil
	case "profile":
		return c.profile(ctx, args)
	case "promote":
		return c.promote(ctx, args)
	case "forgot":
		return c.forgot(ctx, args)
	case "reset":
		return c.reset(ctx, args)
	case "courses":
		list, err := c.app.API.Courses(ctx)
		if err != nil {
			return err
		}
		printJSON(c.out, list)
		return nil
	case "decode":
		return c.decode(ctx, args)
	case "ping":
		return c.ping(ctx, args)
	case "guard":
		return c.guard(ctx, args)
	case "cart":
		return c.cart(ctx, args)
	case "library":
		return c.library(ctx, args)
	case "reels":
		return c.reels(ctx, args)
	case "users":
		return c.users(ctx, args)
	case "stats":
		return c.stats(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// parse parses args into fs and checks the required string flags are non-empty.
func parse(fs *flag.FlagSet, args []string, required map[string]*string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	var missing []string
	for name, v := range required {
		if strings.TrimSpace(*v) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", errUsage, fs.Name(), strings.Join(missing, " "))
	}
	return nil
}

func sub(args []string) (string, []string) {
	if len(args) == 0 {
		return "list", nil
	}
	return args[0], args[1:]
}

// ---- session ----

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	pass := fs.String("password", "", "password")
	if err := parse(fs, args, map[string]*string{"email": email, "password": pass}); err != nil {
		return err
	}
	res, err := c.app.API.Login(ctx, *email, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "ok %s (%s)\n", res.Profile.Email, c.app.Session.GetRole(ctx, nil))
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	user := fs.String("u", "", "username")
	email := fs.String("email", "", "email")
	pass := fs.String("password", "", "password")
	role := fs.String("role", "STUDENT", "STUDENT or CREATOR")
	if err := parse(fs, args, map[string]*string{"u": user, "email": email, "password": pass}); err != nil {
		return err
	}
	p, err := c.app.API.Register(ctx, api.Registration{Username: *user, Email: *email, Password: *pass, Role: *role})
	if err != nil {
		return err
	}
	printJSON(c.out, p)
	return nil
}

type whoami struct {
	Profile  *model.Profile `json:"profile"`
	Role     string         `json:"role,omitempty"`
	HasToken bool           `json:"hasToken"`
}

func (c *cli) whoami(ctx context.Context) error {
	p := c.app.Session.EnsureProfileLoaded(ctx)
	printJSON(c.out, whoami{
		Profile:  p,
		Role:     c.app.Session.GetRole(ctx, p),
		HasToken: c.app.Session.Tokens().Has(ctx),
	})
	return nil
}

type kvFlags map[string]any

func (k kvFlags) String() string { return fmt.Sprint(map[string]any(k)) }

// Set accepts key=value; a value that parses as JSON is kept typed.
func (k kvFlags) Set(s string) error {
	key, val, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	var typed any
	if err := json.Unmarshal([]byte(val), &typed); err == nil {
		k[key] = typed
	} else {
		k[key] = val
	}
	return nil
}

func (c *cli) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	patch := kvFlags{}
	fs.Var(patch, "set", "key=value (repeatable)")
	if err := parse(fs, args, nil); err != nil {
		return err
	}
	if len(patch) == 0 {
		return fmt.Errorf("%w: profile needs -set", errUsage)
	}
	p, err := c.app.Session.UpdateProfile(ctx, model.Patch(patch))
	if err != nil {
		printJSON(c.out, p)
		return fmt.Errorf("kept locally: %w", err)
	}
	printJSON(c.out, p)
	return nil
}

func (c *cli) promote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	email := fs.String("email", "", "email of the account to promote")
	if err := parse(fs, args, map[string]*string{"email": email}); err != nil {
		return err
	}
	res, err := c.app.API.PromoteToCreator(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is now %s\n", or(res.Username, *email), api.RoleCreator)
	return nil
}

func (c *cli) forgot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	if err := parse(fs, args, map[string]*string{"email": email}); err != nil {
		return err
	}
	msg, err := c.app.API.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

func (c *cli) reset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	tok := fs.String("token", "", "reset token from the email")
	pass := fs.String("password", "", "new password")
	if err := parse(fs, args, map[string]*string{"token": tok, "password": pass}); err != nil {
		return err
	}
	msg, err := c.app.API.ResetPassword(ctx, *tok, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

type decoded struct {
	Role    string         `json:"role,omitempty"`
	Expires *time.Time     `json:"expires,omitempty"`
	Claims  map[string]any `json:"claims"`
}

func (c *cli) decode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	tok := fs.String("token", "", "token (defaults to the stored one)")
	if err := parse(fs, args, nil); err != nil {
		return err
	}
	if *tok == "" {
		*tok = c.app.Session.Token(ctx)
	}
	out := decoded{Role: claims.ExtractRole(*tok), Claims: claims.Payload(*tok)}
	if exp, ok := claims.Expiry(*tok); ok {
		t := exp.Time.UTC()
		out.Expires = &t
	}
	printJSON(c.out, out)
	return nil
}

// ping checks the gRPC endpoint with the session token attached.
func (c *cli) ping(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	service := fs.String("service", "", "health service name")
	if err := parse(fs, args, nil); err != nil {
		return err
	}
	if c.app.GRPC == nil {
		return fmt.Errorf("%w: ping needs -grpc or GG_GRPC_ADDR", errUsage)
	}
	st, err := c.app.GRPC.Check(ctx, *service)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, st)
	return nil
}

func (c *cli) guard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("guard", flag.ContinueOnError)
	path := fs.String("path", "", "requested path")
	roles := fs.String("roles", "", "comma-separated allow-list")
	if err := parse(fs, args, map[string]*string{"path": path}); err != nil {
		return err
	}
	d := c.app.Guard.RequireSession(ctx, *path)
	if d.Allow && *roles != "" {
		d = c.app.Guard.RequireRole(ctx, strings.Split(*roles, ",")...)
	}
	printJSON(c.out, d)
	return nil
}

// ---- local collections ----

func courseFlags(fs *flag.FlagSet) (*string, *string, *float64) {
	return fs.String("id", "", "course id"), fs.String("title", "", "title"), fs.Float64("price", 0, "price")
}

func (c *cli) cart(ctx context.Context, args []string) error {
	op, args := sub(args)
	cart := c.app.Cart
	switch op {
	case "list":
		printJSON(c.out, cart.Items())
	case "add", "buy":
		fs := flag.NewFlagSet("cart "+op, flag.ContinueOnError)
		id, title, price := courseFlags(fs)
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		course := model.Course{ID: model.ID(*id), Title: *title, Price: *price}
		var ok bool
		if op == "add" {
			ok = cart.Add(ctx, course)
		} else {
			ok = cart.BuyNow(ctx, course)
		}
		if !ok {
			fmt.Fprintf(c.out, "course %s is already there\n", *id)
			return nil
		}
		fmt.Fprintln(c.out, "ok")
	case "rm":
		fs := flag.NewFlagSet("cart rm", flag.ContinueOnError)
		id := fs.String("id", "", "course id")
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		cart.Remove(ctx, model.ID(*id))
		fmt.Fprintln(c.out, "ok")
	case "clear":
		cart.Clear(ctx)
		fmt.Fprintln(c.out, "ok")
	case "total":
		fmt.Fprintf(c.out, "%.2f\n", cart.Total())
	case "checkout":
		order, bought := cart.Checkout(ctx)
		printJSON(c.out, map[string]any{"order": order, "courses": bought})
	case "purchases":
		printJSON(c.out, cart.Purchases())
	default:
		return fmt.Errorf("%w: cart %s", errUsage, op)
	}
	return nil
}

func (c *cli) library(ctx context.Context, args []string) error {
	op, args := sub(args)
	lib := c.app.Purchased
	fs := flag.NewFlagSet("library "+op, flag.ContinueOnError)
	id := fs.String("id", "", "course id")
	switch op {
	case "list":
		printJSON(c.out, lib.Items())
		return nil
	case "add":
		title := fs.String("title", "", "title")
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		lib.Add(ctx, model.PurchasedCourse{
			ID:           model.ID(*id),
			Title:        *title,
			PurchaseDate: time.Now().UTC().Format(time.RFC3339),
		})
	case "progress":
		value := fs.Float64("value", 0, "progress percentage")
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		if !lib.UpdateProgress(ctx, model.ID(*id), *value) {
			return fmt.Errorf("course %s not in library", *id)
		}
	case "rm":
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		lib.Remove(ctx, *id)
	case "has":
		if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
			return err
		}
		fmt.Fprintln(c.out, lib.Has(*id))
		return nil
	default:
		return fmt.Errorf("%w: library %s", errUsage, op)
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *cli) reels(ctx context.Context, args []string) error {
	op, args := sub(args)
	switch op {
	case "list":
		printJSON(c.out, c.app.Reels.Items())
	case "add":
		fs := flag.NewFlagSet("reels add", flag.ContinueOnError)
		in := store.NewReel{}
		fs.StringVar(&in.Title, "title", "", "title")
		fs.StringVar(&in.Author, "author", "", "author")
		fs.StringVar(&in.Src, "src", "", "video source")
		fs.StringVar(&in.Thumbnail, "thumbnail", "", "thumbnail url")
		if err := parse(fs, args, map[string]*string{"src": &in.Src}); err != nil {
			return err
		}
		printJSON(c.out, c.app.Reels.Add(ctx, in))
	case "reload":
		c.app.Reels.Reload(ctx)
		printJSON(c.out, c.app.Reels.Items())
	default:
		return fmt.Errorf("%w: reels %s", errUsage, op)
	}
	return nil
}

func (c *cli) users(ctx context.Context, args []string) error {
	op, args := sub(args)
	switch op {
	case "list":
		printJSON(c.out, c.app.Users.Items())
	case "add":
		fs := flag.NewFlagSet("users add", flag.ContinueOnError)
		name := fs.String("name", "", "name")
		email := fs.String("email", "", "email")
		if err := parse(fs, args, nil); err != nil {
			return err
		}
		printJSON(c.out, c.app.Users.Add(ctx, model.AppUser{Name: *name, Email: *email}))
	case "reload":
		c.app.Users.Reload(ctx)
		printJSON(c.out, c.app.Users.Items())
	default:
		return fmt.Errorf("%w: users %s", errUsage, op)
	}
	return nil
}

func (c *cli) stats(ctx context.Context, args []string) error {
	op, args := sub(args)
	st := c.app.Stats
	switch op {
	case "list":
		printJSON(c.out, st.PerReel())
	case "totals":
		printJSON(c.out, st.Totals())
	case "top":
		fs := flag.NewFlagSet("stats top", flag.ContinueOnError)
		n := fs.Int("n", 5, "how many")
		if err := parse(fs, args, nil); err != nil {
			return err
		}
		printJSON(c.out, st.Top(*n))
	case "view", "like", "comment":
		fs := flag.NewFlagSet("stats "+op, flag.ContinueOnError)
		id := fs.Int64("id", 0, "reel id")
		if err := parse(fs, args, nil); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("%w: stats %s needs -id", errUsage, op)
		}
		var m model.ReelMetric
		switch op {
		case "view":
			m = st.RegisterView(ctx, *id)
		case "like":
			m = st.RegisterLike(ctx, *id)
		default:
			m = st.RegisterComment(ctx, *id)
		}
		printJSON(c.out, m)
	default:
		return fmt.Errorf("%w: stats %s", errUsage, op)
	}
	return nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
