package main

import (
	"context"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
	"github.com/medcircle/medresident/internal/ai"
	"github.com/medcircle/medresident/internal/broker"
	"github.com/medcircle/medresident/internal/debrief"
	"github.com/medcircle/medresident/internal/envstruct"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/events"
	"github.com/medcircle/medresident/internal/logging"
	"github.com/medcircle/medresident/internal/metrics"
	"github.com/medcircle/medresident/internal/pprofserver"
	"github.com/medcircle/medresident/internal/repositories"
	"github.com/medcircle/medresident/internal/sessionstore"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/medcircle/medresident/internal/sqlite"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type application struct {
	logger         *slog.Logger
	catalog        *simulation.Catalog
	simulations    *sessionstore.Store
	attempts       *repositories.AttemptRepository
	debriefs       *debrief.Service
	streams        *broker.Hub[string, simulation.Event]
	publisher      *events.Publisher
	metrics        *metrics.Metrics
	sessionManager *scs.SessionManager
	htmx           *htmx.HTMX
}

type config struct {
	// Addr is the address the HTTP server listens on. Port 0 picks a free port.
	Addr string `env:"MEDRESIDENT_ADDR" envDefault:"localhost:4000"`
	// PprofAddr is the loopback address of the pprof server. Empty disables it.
	PprofAddr string `env:"MEDRESIDENT_PPROF_ADDR" envDefault:""`
	// SqliteURL is the path to the attempt history database or ":memory:".
	SqliteURL string `env:"MEDRESIDENT_SQLITE_URL" envDefault:"./medresident.sqlite"`
	// MaxLiveSessions bounds the simulations kept in memory.
	MaxLiveSessions int           `env:"MEDRESIDENT_MAX_LIVE_SESSIONS" envDefault:"1024"`
	SessionLifetime time.Duration `env:"MEDRESIDENT_SESSION_LIFETIME" envDefault:"12h"`
	// AMQPURL enables publishing lifecycle events to RabbitMQ when set.
	AMQPURL      string `env:"MEDRESIDENT_AMQP_URL" envDefault:""`
	AMQPExchange string `env:"MEDRESIDENT_AMQP_EXCHANGE" envDefault:"medresident.events"`
	// OpenAIAPIKey enables generated debriefs when set.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel  string `env:"MEDRESIDENT_OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	DebriefRPS   int    `env:"MEDRESIDENT_DEBRIEF_RPS" envDefault:"1"`
}

const streamBufferSize = 16

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cfg config
		err error
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.PprofAddr != "" {
		if _, err = pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	var catalog *simulation.Catalog
	if catalog, err = simulation.LoadCatalog(); err != nil {
		return errors.Wrap(err, "load scenario catalog")
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open sqlite database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database failed", errors.SlogError(closeErr))
		}
	}()

	var publisher *events.Publisher
	if publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger); err != nil {
		return errors.Wrap(err, "connect event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close event publisher failed", errors.SlogError(closeErr))
		}
	}()

	// A nil completer makes every debrief fall back to the built-in report.
	var completer debrief.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	streams := broker.NewHub[string, simulation.Event](streamBufferSize)
	go streams.Start()
	defer streams.Stop()

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 24*time.Hour) //nolint:mnd // daily
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	app := application{
		logger:         logger,
		catalog:        catalog,
		simulations:    nil,
		attempts:       repositories.NewAttemptRepository(db, logger),
		debriefs:       debrief.NewService(completer, float64(cfg.DebriefRPS), logger),
		streams:        streams,
		publisher:      publisher,
		metrics:        metrics.New(),
		sessionManager: sessionManager,
		htmx:           htmx.New(),
	}
	if app.simulations, err = sessionstore.New(cfg.MaxLiveSessions, app.newSimulation, logger); err != nil {
		return errors.Wrap(err, "create live session store")
	}
	// Stops every countdown before the database and the hub go away.
	defer app.simulations.Purge()

	return app.configureAndStartServer(ctx, cfg.Addr)
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger(os.Stdout, true)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
