package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/katanos/katanos/internal/auth"
	"github.com/katanos/katanos/internal/backup"
	"github.com/katanos/katanos/internal/backup/filestore"
	"github.com/katanos/katanos/internal/cli"
	"github.com/katanos/katanos/internal/crypto"
	"github.com/katanos/katanos/internal/diag"
	"github.com/katanos/katanos/internal/iocli"
	"github.com/katanos/katanos/internal/notify"
	"github.com/katanos/katanos/internal/records"
	snapsqlite "github.com/katanos/katanos/internal/snapshot/sqlite"
	"github.com/katanos/katanos/internal/storage/boltdb"
	"github.com/katanos/katanos/internal/vault"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	dbPath := flag.String("db", "katanos.db", "Path to the local database")
	journalPath := flag.String("journal", "katanos-journal.db", "Path to the snapshot journal database")
	keyPath := flag.String("key", "katanos.key", "Path to the secret encryption key file")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		newCLIWithoutServices().PrintUsage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	kv, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	journal, err := snapsqlite.New(ctx, *journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open snapshot journal: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("failed to close snapshot journal", "error", err)
		}
	}()

	reporter := diag.NewLogReporter(logger)

	// Отсутствие ключа не фатально: vault деградирует до plaintext
	var cipher vault.Cipher
	key, err := crypto.LoadOrCreateKey(*keyPath)
	if err != nil {
		logger.Warn("secret key unavailable, storing secrets unencrypted", "error", err)
	} else {
		cipher = vault.NewAESCipher(key)
	}

	notifier := notify.NewChannelNotifier(16, logger)
	go drainNotifications(notifier, logger)

	store := records.NewStore(kv, journal, notifier, logger, reporter)
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize store: %v\n", err)
		os.Exit(1)
	}

	secrets := vault.New(cipher, logger, reporter)
	sessions := auth.NewSessionManager(kv, sessionSecret(key), logger)
	creds := auth.NewService(store, secrets, auth.PBKDF2Hasher{}, sessions, logger, reporter)

	if err := sessions.Restore(ctx, creds.FindByID); err != nil {
		logger.Warn("failed to restore session", "error", err)
	}

	files := filestore.NewLocal(logger)
	builder := backup.NewBuilder(store, Version)
	retention := backup.NewRetentionPolicy(files, logger, reporter)
	runner := backup.NewRunner(builder, files, retention, creds, notifier, logger)
	restore := backup.NewRestoreEngine(store, sessions, logger)
	scheduler := backup.NewScheduler(runner, logger)
	defer scheduler.Stop()

	app := cli.New(iocli.NewStdio(), creds, builder, runner, restore, scheduler)

	if err := run(ctx, app, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *cli.CLI, command string, args []string) error {
	switch command {
	case "register":
		return app.RunRegister(ctx)
	case "login":
		return app.RunLogin(ctx)
	case "logout":
		return app.RunLogout(ctx)
	case "status":
		return app.RunStatus(ctx)
	case "backup":
		return app.RunBackup(ctx)
	case "export":
		return app.RunExport(ctx, args)
	case "restore":
		return app.RunRestore(ctx, args)
	case "erase":
		return app.RunErase(ctx)
	default:
		app.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// sessionSecret derives the session signing secret from the vault key so a
// single key file protects both. A missing key still yields a stable-enough
// secret for the lifetime of the database.
func sessionSecret(key []byte) []byte {
	sum := sha256.Sum256(append([]byte("katanos-session:"), key...))
	return sum[:]
}

func drainNotifications(notifier *notify.ChannelNotifier, logger *slog.Logger) {
	for n := range notifier.C() {
		logger.Info("notification", "title", n.Title, "message", n.Message, "type", n.Type)
	}
}

func newCLIWithoutServices() *cli.CLI {
	return cli.New(iocli.NewStdio(), nil, nil, nil, nil, nil)
}

func printVersion() {
	fmt.Printf("Katanos\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
