package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ZapDesk/ZapDesk/internal/api"
	"github.com/ZapDesk/ZapDesk/internal/flow"
	"github.com/ZapDesk/ZapDesk/internal/genai"
	"github.com/ZapDesk/ZapDesk/internal/lockfile"
	"github.com/ZapDesk/ZapDesk/internal/messaging"
	"github.com/ZapDesk/ZapDesk/internal/store"
	"github.com/ZapDesk/ZapDesk/internal/twiliowhatsapp"
	"github.com/ZapDesk/ZapDesk/internal/util"
	"github.com/ZapDesk/ZapDesk/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ZapDesk state data
	DefaultStateDir = "/var/lib/zapdesk"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "zapdesk.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Another ZapDesk instance appears to be running", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("ZapDesk failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("ZapDesk exited successfully")
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	settings, err := st.GetSettings()
	if err != nil {
		return err
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	sink := messaging.NewServiceSink(msgService)
	sink.SetTypingDelay(settings.TypingDelayMs)

	engine := flow.NewEngine(st, sink, timer, st, settings)
	defer engine.Stop()

	recovered, err := engine.RecoverSessions(st)
	if err != nil {
		slog.Warn("Session recovery failed, continuing without recovered sessions", "error", err)
	} else if recovered > 0 {
		slog.Info("Recovered in-flight conversations", "count", recovered)
	}

	handler := messaging.NewResponseHandler(msgService, engine, st)
	handler.Start(ctx)

	return api.NewServer(msgService, engine, st, buildDrafter(), *flags.apiAddr).Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DBDSN      string
	StateDir   string
	OpenAIKey  string
	APIAddr    string
	UseTwilio  bool
	WhatsAppDB string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	dbDSN      *string
	whatsappDB *string
	apiAddr    *string
	useTwilio  *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DBDSN:      os.Getenv("DATABASE_URL"),
		StateDir:   os.Getenv("ZAPDESK_STATE_DIR"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		APIAddr:    os.Getenv("API_ADDR"),
		UseTwilio:  util.ParseBoolEnv("USE_TWILIO", false),
		WhatsAppDB: os.Getenv("WHATSAPP_DB_DSN"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ZAPDESK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DBDSN == "" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DBDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DBDSN != "",
		"ZAPDESK_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"USE_TWILIO", config.UseTwilio)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for ZapDesk data (overrides $ZAPDESK_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DBDSN, "database DSN for the ZapDesk store (overrides $DATABASE_URL)"),
		whatsappDB: flag.String("whatsapp-db-dsn", config.WhatsAppDB, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		useTwilio:  flag.Bool("use-twilio", config.UseTwilio, "send through the Twilio WhatsApp API instead of a linked device (overrides $USE_TWILIO)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"useTwilio", *flags.useTwilio)

	if *flags.stateDir != config.StateDir && *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(*flags.dbDSN), 0755); err != nil {
			return err
		}
	}
	return nil
}

// openStore picks the store backend from the DSN.
func openStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildMessagingService selects the WhatsApp transport.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.useTwilio {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		slog.Info("Using Twilio WhatsApp transport")
		return messaging.NewTwilioService(client), nil
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDB != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDB))
	} else {
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	slog.Info("Using linked-device WhatsApp transport")
	return messaging.NewWhatsAppService(client), nil
}

// buildDrafter wires the GenAI drafter when an API key is configured.
// Drafting stays disabled otherwise and the API reports it as such.
func buildDrafter() *genai.Drafter {
	client, err := genai.NewClient()
	if err != nil {
		slog.Info("GenAI drafting disabled", "reason", err)
		return nil
	}
	return genai.NewDrafter(client)
}
