package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"listou/internal/app"
	"listou/internal/auth"
	"listou/internal/config"
	"listou/internal/database"
	"listou/internal/export"
	"listou/internal/history"
	"listou/internal/kvstore"
	"listou/internal/logger"
	"listou/internal/metrics"
	"listou/internal/notify"
	"listou/internal/remote"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogEnv)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.NewDB(cfg.DatabasePath, zl)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	kv := kvstore.NewStore(db.SQL, zl)
	authService := auth.NewService(
		auth.NewUserRepository(db.SQL),
		auth.NewTokenManager(cfg.JWTSecret, auth.DefaultSessionTTL),
		kv,
		zl,
	)

	// Without Redis the list stays on this machine and history lives in SQLite.
	var (
		rdb       *redis.Client
		docs      remote.DocumentStore
		histStore history.Store = history.NewSQLiteStore(db.SQL, zl)
		inbox     *notify.Inbox
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		docs = remote.NewRedisStore(rdb, zl)
		histStore = history.NewRedisStore(rdb, zl)
		inbox = notify.NewInbox(rdb, zl)
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(zl)}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, zl)
		if err != nil {
			zl.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	activity := metrics.NewStore(db.SQL, zl)

	ctx := context.Background()
	session, err := app.Open(ctx, app.Deps{
		KV:       kv,
		Auth:     authService,
		Remote:   docs,
		History:  histStore,
		Notifier: notifiers,
		Activity: activity,
		Log:      zl,
	})
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	c := &cli{
		session:     session,
		kv:          kv,
		exporter:    export.NewExporter(cfg.ExportDir, zl),
		inbox:       inbox,
		notifier:    notifiers,
		activity:    activity,
		dbPath:      cfg.DatabasePath,
		syncTimeout: cfg.SyncTimeout,
		log:         zl,
	}
	cmdErr := c.run(ctx, os.Args[1], os.Args[2:])

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Close(closeCtx); err != nil {
		zl.Warn("shared list not fully flushed", zap.Error(err))
	}

	if cmdErr != nil {
		fail(cmdErr)
	}
}

func printUsage() {
	fmt.Println("Usage: listou <command> [arguments]")
	fmt.Println("\nList:")
	fmt.Println("  add <name>         Add an item (-qty, -unit, -category, -price)")
	fmt.Println("  basket             Add the basic basket")
	fmt.Println("  ls                 Show the list grouped by category")
	fmt.Println("  toggle <item>      Mark an item bought or not bought")
	fmt.Println("  edit <item>        Change an item (-name, -qty, -unit, -category, -price, -clear-price)")
	fmt.Println("  rm <item>          Remove an item")
	fmt.Println("  clear              Remove every item")
	fmt.Println("  complete           Save the finished list to history and clear it")
	fmt.Println("\nAccount:")
	fmt.Println("  signup             Create an account (-email, -password)")
	fmt.Println("  login              Log in (-email, -password)")
	fmt.Println("  logout             Log out")
	fmt.Println("  whoami             Show the user and the pairing state")
	fmt.Println("\nSharing:")
	fmt.Println("  pair [code]        Join a shared list, or create one when no code is given")
	fmt.Println("  unpair             Leave the shared list")
	fmt.Println("  watch              Follow the list and notifications until interrupted")
	fmt.Println("  push               Send a notification to the pair (-title, -body)")
	fmt.Println("\nHistory and files:")
	fmt.Println("  history [ls]       Show saved lists")
	fmt.Println("  history rm <id>    Delete a saved list (-yes skips the prompt)")
	fmt.Println("  export             Print the list as HTML (-save writes it to the export directory)")
	fmt.Println("  export -entry <id> Print a saved list as HTML with its stored total")
	fmt.Println("  import <file>      Add the items of an exported HTML list")
	fmt.Println("  theme [dark|light] Show or set the theme")
	fmt.Println("\nMaintenance:")
	fmt.Println("  stats              Show list activity per day (-days)")
	fmt.Println("  status             Show sync state and process health")
	fmt.Println("  metrics-cleanup    Remove old activity records (-days)")
	fmt.Println("\n<item> is the number shown by ls or an item ID.")
}
