package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"autopost/domain/repository"
	"autopost/infrastructure/cache"
	"autopost/infrastructure/clients/linkedin"
	"autopost/infrastructure/configuration"
	"autopost/infrastructure/logger"
	"autopost/infrastructure/persistence"
	"autopost/infrastructure/pubsub"
	"autopost/infrastructure/realtime"
	"autopost/infrastructure/scheduler"
	"autopost/infrastructure/servicebus"
	"autopost/infrastructure/telemetry"
	httpHandler "autopost/interfaces/http"
	"autopost/server"
	"autopost/usecase"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

// stores groups the repositories of the selected database driver.
type stores struct {
	posts     repository.IPost
	users     repository.IUser
	plans     repository.IPlan
	campaigns repository.ICampaign
	calendar  repository.ICalendar
	close     func(ctx context.Context)
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// Load env from files (non-destructive; OS env still has precedence)
	if loaded := configuration.LoadEnvFromFile("config.env", ".env"); len(loaded) > 0 {
		logger.GetLogger().WithField("files", loaded).Info("Loaded env files")
		configuration.Reload()
	}
	cfg := configuration.C

	st, err := initiateStores(ctx, cfg.Database)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		st.close(closeCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	var engagementCache repository.IEngagementCache
	if redisClient := cache.NewRedisClient(cfg.RedisClient); redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - engagement cache disabled")
		} else {
			engagementCache = cache.NewEngagementCache(redisClient, cfg.RedisClient.TTL)
			logger.GetLogger().Info("Redis client initialized successfully.")
		}
		defer closeRedis(redisClient)
	}

	sinks, closeSinks := initiateEventSinks(ctx, cfg)
	defer closeSinks()

	linkedInClient := linkedin.NewClient(linkedin.Config{
		BaseURL:           cfg.LinkedIn.BaseURL,
		APIVersion:        cfg.LinkedIn.APIVersion,
		RequestTimeout:    cfg.LinkedIn.RequestTimeout,
		RequestsPerSecond: cfg.LinkedIn.RequestsPerSecond,
		Burst:             cfg.LinkedIn.Burst,
		CommentPageSize:   cfg.LinkedIn.CommentPageSize,
		Metrics:           metrics,
	})

	hub := realtime.NewPostHub()
	creds := usecase.NewCredentialProvider(st.users, configuration.LinkedInOAuth2Config(cfg.LinkedIn))
	admission := usecase.NewAdmission(st.users, st.plans, st.posts)
	dispatcher := usecase.NewDispatcher(st.posts, creds, linkedInClient, usecase.DispatcherConfig{
		BatchSize:      cfg.Scheduler.BatchSize,
		Concurrency:    cfg.Scheduler.Concurrency,
		PublishTimeout: cfg.LinkedIn.PublishTimeout,
		ClaimLease:     cfg.Scheduler.ClaimLease,
	}).
		WithEvents(sinks...).
		WithBroadcaster(hub.BroadcastPostEvent).
		WithMetrics(metrics)
	postUsecase := usecase.NewPostUsecase(st.posts, dispatcher, creds, linkedInClient, engagementCache)

	sched := initiateScheduler(cfg.Scheduler, metrics, st, dispatcher, admission, creds, linkedInClient, engagementCache)

	router := server.InitiateRouter(
		httpHandler.NewPostHandler(postUsecase),
		st.users,
		cfg.App.SecretKey,
		cfg.App.AllowedOrigins,
		hub.Serve,
		registry,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.App.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.GetLogger().WithField("port", cfg.App.Port).WithField("tasks", sched.Tasks()).Info("Serving HTTP")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
	logger.GetLogger().Info("Application stopped")
}

func initiateStores(ctx context.Context, db configuration.Database) (*stores, error) {
	switch strings.ToLower(db.Driver) {
	case "postgres", "postgresql", "psql":
		psqlDb, err := persistence.NewPostgreSQLDB()
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := persistence.EnsurePostSchema(psqlDb); err != nil {
			return nil, fmt.Errorf("ensure post schema: %w", err)
		}
		logger.GetLogger().Info("PostgreSQL connected successfully")
		return &stores{
			posts: persistence.NewPostRepository(psqlDb),
			users: persistence.NewUserRepository(psqlDb),
			plans: persistence.NewPlanRepository(psqlDb),
			close: func(context.Context) { _ = psqlDb.Close() },
		}, nil
	default:
		m := db.Mongo
		client, err := persistence.NewMongoDb(m.Host, m.Port, m.User, m.Password, m.Name)
		if err != nil {
			return nil, err
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		database := client.Database(m.Name)
		if err := persistence.EnsurePostIndexes(pingCtx, database); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Post indexes not ensured")
		}
		logger.GetLogger().Info("MongoDB connected successfully")
		return &stores{
			posts:     persistence.NewPostRepositoryMongo(database),
			users:     persistence.NewUserRepositoryMongo(database),
			plans:     persistence.NewPlanRepositoryMongo(database),
			campaigns: persistence.NewCampaignRepositoryMongo(database),
			calendar:  persistence.NewCalendarRepositoryMongo(database),
			close:     func(ctx context.Context) { disconnectMongo(ctx, client) },
		}, nil
	}
}

func disconnectMongo(ctx context.Context, client *mongo.Client) {
	if err := client.Disconnect(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB disconnect failed")
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis close failed")
	}
}

// initiateEventSinks builds the configured lifecycle event sinks. A sink
// that cannot be set up is logged and left out.
func initiateEventSinks(ctx context.Context, cfg configuration.Config) ([]repository.IPostEventPublisher, func()) {
	var (
		sinks   []repository.IPostEventPublisher
		closers []func()
	)
	for _, name := range cfg.Events.Sinks {
		switch strings.ToLower(name) {
		case "pubsub":
			client, err := gpubsub.NewClient(ctx, cfg.Pubsub.ProjectID)
			if err != nil {
				logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
				continue
			}
			publisher := pubsub.NewPostEventPublisher(client, cfg.Events.Topic)
			sinks = append(sinks, publisher)
			closers = append(closers, func() {
				publisher.Stop()
				_ = client.Close()
			})
		case "servicebus":
			client, err := servicebus.NewClient(cfg.ServiceBus.Namespace)
			if err != nil {
				logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
				continue
			}
			sender := servicebus.NewPostEventSender(client, cfg.Events.Queue)
			sinks = append(sinks, sender)
			closers = append(closers, func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer closeCancel()
				sender.Close(closeCtx)
				_ = client.Close(closeCtx)
			})
		default:
			logger.GetLogger().WithField("sink", name).Warn("Unknown event sink ignored")
		}
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func initiateScheduler(
	cfg configuration.Scheduler,
	metrics *telemetry.Metrics,
	st *stores,
	dispatcher *usecase.Dispatcher,
	admission usecase.IAdmission,
	creds usecase.ICredentialProvider,
	linkedInClient *linkedin.Client,
	engagementCache repository.IEngagementCache,
) *scheduler.Scheduler {
	sched := scheduler.New(metrics)
	sched.Add(scheduler.Task{
		Name:         "dispatch",
		Interval:     cfg.SweepInterval,
		Timeout:      cfg.RunTimeout,
		Immediate:    true,
		AllowOverlap: cfg.AllowOverlap,
		Run: func(ctx context.Context) error {
			_, err := dispatcher.Sweep(ctx)
			return err
		},
	})

	if st.campaigns != nil {
		campaigns := usecase.NewCampaignDriver(st.campaigns, st.posts, admission, cfg.BatchSize)
		sched.Add(scheduler.Task{Name: "campaign", Interval: cfg.CampaignInterval, Timeout: cfg.RunTimeout, Run: runDriver("campaign", campaigns.Run)})
	} else {
		logger.GetLogger().Info("Campaign driver disabled for this database driver")
	}
	if st.calendar != nil {
		calendar := usecase.NewCalendarDriver(st.calendar, st.posts, admission, cfg.BatchSize)
		sched.Add(scheduler.Task{Name: "calendar", Interval: cfg.CalendarInterval, Timeout: cfg.RunTimeout, Run: runDriver("calendar", calendar.Run)})
	} else {
		logger.GetLogger().Info("Calendar driver disabled for this database driver")
	}

	engagement := usecase.NewEngagementSync(st.posts, creds, linkedInClient, engagementCache, cfg.EngagementWindow, cfg.BatchSize, cfg.Concurrency)
	sched.Add(scheduler.Task{Name: "engagement", Interval: cfg.EngagementInterval, Timeout: cfg.RunTimeout, Run: runDriver("engagement", engagement.Run)})
	return sched
}

func runDriver(name string, run func(context.Context) (usecase.DriverResult, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := run(ctx)
		if err != nil {
			return err
		}
		if res.Processed > 0 {
			logger.GetLogger().WithField("driver", name).WithField("result", res).Info("Driver run finished")
		}
		return nil
	}
}
