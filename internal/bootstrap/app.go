package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"casedocs-backend/internal/cases"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/notify"
	"casedocs-backend/internal/pipeline"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/reconciler"
	"casedocs-backend/internal/shared/config"
	"casedocs-backend/internal/shared/storage/db"
	"casedocs-backend/internal/shared/storage/object"
	memorystore "casedocs-backend/internal/shared/storage/object/memory"
	s3store "casedocs-backend/internal/shared/storage/object/s3"
	"casedocs-backend/internal/shared/storage/router"
)

// App holds shared dependencies wired once at process start.
type App struct {
	Config config.Config
	DB     *sql.DB
	Store  object.Store
	Router *router.Router
	Queue  queue.Client

	DocsRepo  documents.Repo
	CasesRepo cases.Repo

	Producer   *queue.Producer
	Documents  *documents.Service
	Pipeline   *pipeline.Service
	Notifier   *notify.Notifier
	Reconciler *reconciler.Reconciler
}

// Build prepares shared dependencies for any of the process entrypoints.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt, err := buildRouter(cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Router: rt,
		Queue:  queueClient,
	}
	buildServices(app)
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	if isDevLike(cfg.Env) && strings.TrimSpace(cfg.AWSRegion) == "" {
		log.Printf("bootstrap: AWS_REGION empty; using in-memory object store")
		return memorystore.New(cfg.PresignMaxTTL), nil
	}
	return s3store.New(ctx, cfg.PresignMaxTTL)
}

func buildRouter(cfg config.Config) (*router.Router, error) {
	routes := make(map[string]router.Route, len(cfg.RegionRoutes))
	for tag, rr := range cfg.RegionRoutes {
		routes[tag] = router.Route{Bucket: rr.Bucket, Region: rr.Region, Prefix: rr.Prefix}
	}
	return router.New(router.Config{
		Routes:        routes,
		DefaultRegion: cfg.DefaultRegion,
		ArchivePrefix: cfg.ArchivePrefix,
	})
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		if isDevLike(cfg.Env) {
			return queue.NewMemoryClient(), nil
		}
		return nil, fmt.Errorf("CD_SQS_QUEUE_URL is required")
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) {
	var docsRepo documents.Repo
	var casesRepo cases.Repo
	if app.DB != nil {
		docsRepo = &documents.PGRepo{DB: app.DB}
		casesRepo = &cases.PGRepo{DB: app.DB}
	} else {
		docsRepo = documents.NewMemoryRepo()
		casesRepo = cases.NewMemoryRepo()
	}

	producer := &queue.Producer{Client: app.Queue}

	app.DocsRepo = docsRepo
	app.CasesRepo = casesRepo
	app.Producer = producer
	app.Documents = &documents.Service{
		Repo:   docsRepo,
		Store:  app.Store,
		Router: app.Router,
	}
	app.Pipeline = &pipeline.Service{
		Docs:           docsRepo,
		Store:          app.Store,
		Producer:       producer,
		FetchRetries:   app.Config.MaxAttempts,
		RetryBaseDelay: app.Config.RetryBaseDelay,
		Timeout:        app.Config.ProcessingTimeout,
	}
	app.Notifier = &notify.Notifier{
		Docs:     docsRepo,
		Cases:    casesRepo,
		Sender:   notify.LogSender{},
		Fallback: app.Config.FallbackRecipient,
	}
	app.Reconciler = &reconciler.Reconciler{
		Docs:             docsRepo,
		Cases:            casesRepo,
		Store:            app.Store,
		Router:           app.Router,
		Producer:         producer,
		ArchiveRetention: app.Config.ArchiveRetention,
		StallThreshold:   app.Config.StallThreshold,
	}
}
