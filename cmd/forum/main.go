// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the operator CLI for the forum backend. It loads
// configuration, connects to PostgreSQL and Valkey, and runs maintenance
// commands against the forum database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"forum/internal/access"
	"forum/internal/accounts"
	"forum/internal/cache"
	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/forum"
	"forum/internal/models"
	"forum/internal/session"
	"forum/internal/store"
	"forum/internal/token"
	"forum/internal/views"
)

const usage = `usage: forum <command> [args]

commands:
  migrate                    apply pending migrations
  seed                       create the admin user and default category
  repair-stats               recompute every denormalized counter
  status                     show schema version and cache health
  verify <token>             redeem an email verification token
  resend-verification <login> mail a verification token again
  login <login> <password>   start a session and print its token
  token <login> <password>   print a signed access token
  whoami <token>             show who a session or access token belongs to
  users <token> [page]       list accounts (admin)
  profile <username>         show a public profile
  update-profile <token> [avatar_url=..] [location=..] [signature=..]
                             edit your own profile; an empty value clears it
  set-role <token> <user-id> <role>
                             change a user's role (admin)
  set-status <token> <user-id> <status>
                             change a user's status (admin)
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// newLogger builds the slog logger selected by LOG_FORMAT and LOG_LEVEL.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	switch cmd {
	case "migrate":
		return database.Migrate(db)
	case "seed":
		if err := database.Migrate(db); err != nil {
			return err
		}
		return database.Seed(db, cfg.SeedAdminPassword)
	case "repair-stats":
		stats, err := store.RecountAll(ctx, db)
		if err != nil {
			return err
		}
		slog.Info("counters recomputed",
			"categories", stats.Categories,
			"threads", stats.Threads,
			"posts", stats.Posts,
		)
		return nil
	}

	a, err := newApp(cfg, db)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "status":
		return a.status(ctx)
	case "verify":
		if len(args) != 1 {
			return fmt.Errorf("verify needs exactly one token")
		}
		u, err := a.accounts.Verify(ctx, args[0])
		if err != nil {
			return err
		}
		slog.Info("account active", "user_id", u.ID, "username", u.Username)
		return nil
	case "resend-verification":
		if len(args) != 1 {
			return fmt.Errorf("resend-verification needs a username or email")
		}
		return a.accounts.ResendVerification(ctx, args[0])
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("login needs a username or email and a password")
		}
		p, err := a.accounts.Authenticate(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		sid, err := a.sessions.Create(ctx, p)
		if err != nil {
			return err
		}
		fmt.Println(sid)
		return nil
	case "token":
		if len(args) != 2 {
			return fmt.Errorf("token needs a username or email and a password")
		}
		p, err := a.accounts.Authenticate(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		signed, err := a.tokens.Issue(p)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	case "whoami":
		if len(args) != 1 {
			return fmt.Errorf("whoami needs a session or access token")
		}
		p, err := a.principal(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println("guest")
			return nil
		}
		fmt.Printf("%s (%s, %s)\n", p.Username, p.Role, p.Status)
		return nil
	case "users":
		return a.listUsers(ctx, args)
	case "profile":
		if len(args) != 1 {
			return fmt.Errorf("profile needs a username")
		}
		profile, err := a.accounts.Profile(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(profile)
	case "update-profile":
		return a.updateProfile(ctx, args)
	case "set-role", "set-status":
		return a.setAccess(ctx, cmd, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app holds the services that need the cache.
type app struct {
	db       *sql.DB
	valkey   *redis.Client
	cache    *cache.Store
	views    *views.Tracker
	forum    *forum.Service
	accounts *accounts.Service
	sessions *session.Store
	tokens   *token.Issuer
}

func newApp(cfg *config.Config, db *sql.DB) (*app, error) {
	client, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	cs := cache.NewStore(client, cfg.CacheNamespace, cache.DefaultBreakerSettings())
	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	tracker := views.NewTracker(cs, store.NewThreadStore(db), cfg.ViewUniquenessTTL)

	return &app{
		db:     db,
		valkey: client,
		cache:  cs,
		views:  tracker,
		forum:  forum.New(db, tracker, forum.Options{}),
		accounts: accounts.New(store.NewUserStore(db), cs, accounts.LogMailer{}, accounts.Options{
			RegistrationLimit: cfg.RegistrationLimitPerDay,
			TokenTTL:          cfg.VerificationTokenTTL,
		}),
		sessions: session.NewStore(cs, cfg.SessionTTL),
		tokens:   issuer,
	}, nil
}

// principal resolves a signed access token or, failing the JWT shape, a
// session token.
func (a *app) principal(ctx context.Context, raw string) (*access.Principal, error) {
	if strings.Count(raw, ".") == 2 {
		return a.tokens.Principal(raw)
	}
	return a.sessions.Principal(ctx, raw)
}

// close drains background work before releasing the cache connection.
func (a *app) close() {
	a.views.Wait()
	a.accounts.Wait()
	a.valkey.Close()
}

func (a *app) status(ctx context.Context) error {
	version, err := database.Version(a.db)
	if err != nil {
		return err
	}
	roots, err := a.forum.CategoryTree(ctx, nil)
	if err != nil {
		return err
	}
	slog.Info("forum status",
		"schema_version", version,
		"public_root_categories", len(roots),
		"cache_breaker", a.cache.State(),
	)
	return nil
}

func (a *app) listUsers(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("users needs a token and an optional page")
	}
	p, err := a.principal(ctx, args[0])
	if err != nil {
		return err
	}
	page := 1
	if len(args) == 2 {
		if page, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("page %q is not a number", args[1])
		}
	}
	users, err := a.accounts.ListUsers(ctx, p, page, 0)
	if err != nil {
		return err
	}
	for _, u := range users.Items {
		fmt.Printf("%s  %-20s %-10s %s\n", u.ID, u.Username, u.Role, u.Status)
	}
	fmt.Printf("page %d of %d (%d users)\n", users.Page, users.TotalPages(), users.Total)
	return nil
}

func (a *app) updateProfile(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("update-profile needs a token and at least one field=value")
	}
	p, err := a.principal(ctx, args[0])
	if err != nil {
		return err
	}
	var in accounts.ProfileInput
	for _, arg := range args[1:] {
		field, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", arg)
		}
		switch field {
		case "avatar_url":
			in.AvatarURL = &value
		case "location":
			in.Location = &value
		case "signature":
			in.Signature = &value
		default:
			return fmt.Errorf("unknown profile field %q", field)
		}
	}
	u, err := a.accounts.UpdateProfile(ctx, p, in)
	if err != nil {
		return err
	}
	return printJSON(u.Profile())
}

func (a *app) setAccess(ctx context.Context, cmd string, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%s needs a token, a user id and a value", cmd)
	}
	p, err := a.principal(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("user id %q is not a uuid", args[1])
	}
	var in accounts.AccessInput
	if cmd == "set-role" {
		role := models.Role(args[2])
		in.Role = &role
	} else {
		status := models.UserStatus(args[2])
		in.Status = &status
	}
	u, err := a.accounts.SetAccess(ctx, p, id, in)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s, %s)\n", u.Username, u.Role, u.Status)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
