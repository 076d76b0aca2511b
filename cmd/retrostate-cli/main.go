package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/database"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
)

// Set via -ldflags at build time.
var version = "dev"

type command struct {
	usage string
	help  []string
	run   func(args []string) int
}

var commands = map[string]command{
	"migrate": {
		usage: "retrostate-cli migrate [--down]",
		help: []string{
			"Run database migrations from the migrations/ directory.",
			"",
			"Environment:",
			"  DATABASE_URL  PostgreSQL connection string (required)",
		},
		run: runMigrate,
	},
	"seed": {
		usage: "retrostate-cli seed",
		help: []string{
			"Seed the database with demo data: 3 users, 4 channels and messages.",
			"",
			"Environment:",
			"  DATABASE_URL  PostgreSQL connection string (required)",
		},
		run: runSeed,
	},
	"token": {
		usage: "retrostate-cli token <user-id> [ttl]",
		help: []string{
			"Print a signed session token for a user. ttl defaults to 24h.",
			"",
			"Environment:",
			"  TOKEN_SECRET  HMAC secret shared with the server (required)",
		},
		run: runToken,
	},
	"resolve": {
		usage: "retrostate-cli resolve <user-id> <snapshot.json>",
		help: []string{
			"Load a JSON snapshot {users, channels, preferences, messages} as the",
			"given user and print what the session would hold.",
		},
		run: runResolve,
	},
	"health": {
		usage: "retrostate-cli health",
		help: []string{
			"Check if the retrostate server is running.",
			"",
			"Environment:",
			"  SERVER_URL  Server base URL (default: http://localhost:8090)",
		},
		run: func([]string) int { return runHealth() },
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name, args := os.Args[1], os.Args[2:]
	switch name {
	case "version":
		fmt.Printf("retrostate-cli %s\n", version)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}
	if hasFlag("--help", args) {
		fmt.Println("Usage: " + cmd.usage)
		fmt.Println()
		for _, line := range cmd.help {
			fmt.Println(line)
		}
		return
	}
	os.Exit(cmd.run(args))
}

func printUsage() {
	fmt.Println("Usage: retrostate-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Run database migrations")
	fmt.Println("  seed     Seed demo data (users, channels, messages)")
	fmt.Println("  token    Issue a session token")
	fmt.Println("  resolve  Load a snapshot and print the resulting session")
	fmt.Println("  health   Check if the server is running")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'retrostate-cli <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	return slices.Contains(args, flag)
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- migrate ---

func runMigrate(args []string) int {
	dbURL := requireEnv("DATABASE_URL")

	fmt.Println("connecting to database...")
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: migration init failed: %v\n", err)
		return 1
	}
	defer m.Close()

	if hasFlag("--down", args) {
		fmt.Println("reverting migrations...")
		err = m.Down()
	} else {
		fmt.Println("running migrations...")
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stderr, "error: migration failed: %v\n", err)
		return 1
	}

	v, dirty, _ := m.Version()
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Printf("no new migrations (current version: %d)\n", v)
	} else {
		fmt.Printf("migrations applied (version: %d, dirty: %v)\n", v, dirty)
	}
	return 0
}

// --- seed ---

func runSeed([]string) int {
	dbURL := requireEnv("DATABASE_URL")
	ctx := context.Background()

	fmt.Println("connecting to database...")
	pool, err := database.NewPostgresPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()
	catalog := database.NewCatalog(pool)

	sf, err := snowflake.NewGenerator(0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: snowflake init failed: %v\n", err)
		return 1
	}
	id := func() int64 { return sf.Generate().Int64() }

	alice, bob, carol := id(), id(), id()
	general, notes, team, direct := id(), id(), id(), id()

	fmt.Println("creating users...")
	for _, u := range []models.User{
		{ID: alice, Username: "alice", DisplayName: "Alice", Status: models.StatusAvailable},
		{ID: bob, Username: "bob", DisplayName: "Bob", Status: models.StatusAway},
		{ID: carol, Username: "carol", DisplayName: "Carol", Status: models.StatusOffline},
	} {
		if err := catalog.Users.Create(ctx, &u); err != nil {
			fmt.Fprintf(os.Stderr, "error: creating user %s: %v\n", u.Username, err)
			return 1
		}
	}

	fmt.Println("creating channels...")
	for _, ch := range []models.Channel{
		{ID: general, Name: "general", Access: models.AccessPublic, OwnerID: &alice, Members: []int64{alice, bob}},
		{ID: notes, Name: "notes", Access: models.AccessProtected, OwnerID: &bob, Members: []int64{bob, alice}},
		{ID: team, Name: "team", Access: models.AccessPrivate, OwnerID: &carol, Members: []int64{carol, alice}},
		{ID: direct, Access: models.AccessPrivate, Members: []int64{alice, bob}},
	} {
		if err := catalog.Channels.Create(ctx, &ch); err != nil {
			fmt.Fprintf(os.Stderr, "error: creating channel %d: %v\n", ch.ID, err)
			return 1
		}
	}

	fmt.Println("creating messages...")
	now := time.Now().UTC()
	for i, m := range []models.Message{
		{ChannelID: general, AuthorID: alice, Content: "Welcome to general!"},
		{ChannelID: general, AuthorID: alice, Content: "Say hi when you are around."},
		{ChannelID: general, AuthorID: bob, Content: "Hey Alice, glad to be here!"},
		{ChannelID: direct, AuthorID: bob, Content: "Lunch later?"},
	} {
		m.ID = id()
		m.Timestamp = now.Add(time.Duration(i-4) * time.Minute)
		if err := catalog.SaveMessage(ctx, &m); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	if err := catalog.SavePreference(ctx, alice, team, models.Preference{Sidebar: true}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Println()
	fmt.Println("seed complete:")
	fmt.Printf("  users:    alice (%d), bob (%d), carol (%d)\n", alice, bob, carol)
	fmt.Printf("  channels: #general (public), #notes (protected), #team (private), alice<->bob (direct)\n")
	fmt.Printf("  messages: 3 in #general, 1 in the direct channel\n")
	return 0
}

// --- token ---

func runToken(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "error: user id is required")
		return 1
	}
	userID, err := snowflake.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		if ttl, err = time.ParseDuration(args[1]); err != nil || ttl <= 0 {
			fmt.Fprintf(os.Stderr, "error: invalid ttl %q\n", args[1])
			return 1
		}
	}

	token, err := auth.IssueToken(requireEnv("TOKEN_SECRET"), userID, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(token)
	return 0
}

// --- health ---

func runHealth() int {
	serverURL := envOr("SERVER_URL", "http://localhost:8090")
	url := serverURL + "/health"

	fmt.Printf("checking %s ...\n", url)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status: %d\n", resp.StatusCode)
	if len(body) > 0 {
		fmt.Printf("body:   %s\n", string(body))
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("server is healthy")
		return 0
	}
	fmt.Fprintln(os.Stderr, "server returned non-200 status")
	return 1
}
