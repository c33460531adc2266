package boot

import (
	"connectwork/src/common"
	"connectwork/src/config"
	"connectwork/src/controllers"
	"connectwork/src/db"
	"connectwork/src/lib"
	awslib "connectwork/src/lib/aws"
	"connectwork/src/lib/mpesa"
	"connectwork/src/types"
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-co-op/gocron/v2"
)

// App holds every long-lived component of the payments service.
type App struct {
	Config *config.Config

	Store      db.Store
	Mpesa      *mpesa.Client
	Reconciler *common.Reconciler
	Sessions   *common.Sessions
	Sweeper    *common.Sweeper
	Publisher  common.FanOut

	Payments *controllers.PaymentsController
	MpesaAPI *controllers.MpesaController

	scheduler gocron.Scheduler
	closers   []func()
}

// Deps are the pieces New builds from the environment; tests pass their own.
type Deps struct {
	Store      db.Store
	Proxy      *mpesa.Proxy
	Cache      mpesa.TokenCache
	Publishers common.FanOut
	Archive    controllers.Archiver
	Locker     controllers.Locker
}

// Assemble wires the components around the given dependencies.
func Assemble(cfg *config.Config, deps Deps) *App {
	app := &App{Config: cfg, Store: deps.Store, Publisher: deps.Publishers}

	app.Reconciler = common.NewReconciler(deps.Store, deps.Publishers, cfg.Mpesa.StrictPersistence)
	app.Mpesa = mpesa.NewClient(cfg.Mpesa, deps.Proxy, mpesa.Options{
		Cache:      deps.Cache,
		Recorder:   deps.Store,
		Reconciler: app.Reconciler,
	})
	app.Sessions = common.NewSessions(&common.Poller{
		Checker:  app.Mpesa,
		Interval: cfg.Mpesa.PollInterval,
		Attempts: cfg.Mpesa.PollAttempts,
	})
	app.Sweeper = &common.Sweeper{
		Store:      deps.Store,
		Checker:    app.Mpesa,
		Reconciler: app.Reconciler,
		Sessions:   app.Sessions,
		Age:        cfg.Mpesa.SweepAge,
	}
	app.Payments = controllers.NewPaymentsController(deps.Store, app.Mpesa, app.Sessions, deps.Locker, cfg.Mpesa.CountryCode)
	app.MpesaAPI = controllers.NewMpesaController(deps.Store, app.Mpesa, app.Reconciler, deps.Archive)
	return app
}

// New connects to everything configured in cfg. Optional services that are not
// configured are skipped.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var closers []func()

	awsCfg, hasAWS := InitAWS(ctx, cfg)
	if hasAWS && cfg.AWS.MpesaSecretID != "" {
		sm := lib.AWSGetSecretsManagerClient(awsCfg)
		if err := awslib.LoadMpesaSecret(ctx, sm, cfg.AWS.MpesaSecretID, &cfg.Mpesa); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := InitDb(cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() {
		if sqlDB, err := store.DB().DB(); err == nil {
			sqlDB.Close()
		}
	})

	deps := Deps{Store: store}
	if cfg.RedisURL != "" {
		rdb, err := lib.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		deps.Cache = lib.NewRedisTokenCache(rdb)
		deps.Locker = lib.NewRedisLocker(rdb)
		closers = append(closers, func() { rdb.Close() })
	}

	publishers, pubClosers := InitBroker(ctx, cfg, awsCfg, hasAWS)
	deps.Publishers = publishers
	closers = append(closers, pubClosers...)

	if hasAWS && cfg.AWS.CallbackBucket != "" {
		deps.Archive = awslib.NewCallbackArchive(lib.AWSGetS3Client(awsCfg), cfg.AWS.CallbackBucket)
	}

	app := Assemble(cfg, deps)
	app.closers = closers
	return app, nil
}

func InitDb(cfg *config.Config) (*db.GormStore, error) {
	gdb, err := db.Open(cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	store := db.NewStore(gdb)
	if err := store.AutoMigrate(); err != nil {
		log.Printf("error migration: %s", err.Error())
		return nil, err
	}
	return store, nil
}

func InitAWS(ctx context.Context, cfg *config.Config) (aws.Config, bool) {
	if cfg.AWS.Region == "" {
		return aws.Config{}, false
	}
	awsCfg, err := lib.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.IAMRoleArn)
	if err != nil {
		log.Printf("AWS disabled: %s\n", err.Error())
		return aws.Config{}, false
	}
	return awsCfg, true
}

// InitBroker picks where payment events go: SQS outside local, Kafka locally.
// SNS and pusher are added when configured.
func InitBroker(ctx context.Context, cfg *config.Config, awsCfg aws.Config, hasAWS bool) (common.FanOut, []func()) {
	var (
		publishers common.FanOut
		closers    []func()
	)
	switch {
	case cfg.APIEnv != types.Local && hasAWS:
		publishers = append(publishers, awslib.NewSQSPublisher(lib.AWSGetSQSClient(awsCfg), cfg.AWS.SQSQueue))
	case cfg.KafkaBroker != "":
		if _, err := lib.KafkaCreateTopics(ctx, cfg.KafkaBroker, types.PAYMENT_EVENTS_TOPIC); err != nil {
			log.Printf("[kafka] topic setup: %s\n", err.Error())
		}
		kp, err := lib.NewKafkaPublisher(cfg.KafkaBroker, "connectwork-payments", types.PAYMENT_EVENTS_TOPIC)
		if err != nil {
			log.Printf("[kafka] events disabled: %s\n", err.Error())
			break
		}
		publishers = append(publishers, kp)
		closers = append(closers, kp.Close)
	}
	if hasAWS && cfg.AWS.SNSTopicArn != "" {
		publishers = append(publishers, awslib.NewSNSPublisher(lib.AWSGetSNSClient(awsCfg), cfg.AWS.SNSTopicArn))
	}
	if cfg.Pusher.Enabled() {
		publishers = append(publishers, lib.NewPusherNotifier(lib.NewPusherClient(cfg.Pusher)))
	}
	for _, p := range publishers {
		log.Printf("Payment events -> %s\n", p.Name())
	}
	return publishers, closers
}

// InitScheduler starts the stale-pending sweeper.
func (app *App) InitScheduler() error {
	sched, err := lib.NewScheduler()
	if err != nil {
		return err
	}
	if err := app.Sweeper.Schedule(sched, app.Config.Mpesa.SweepInterval); err != nil {
		return err
	}
	sched.Start()
	log.Println("Jobs in queue:", len(sched.Jobs()))
	app.scheduler = sched
	return nil
}

// Close stops background work first, then releases connections.
func (app *App) Close() {
	if app.scheduler != nil {
		if err := app.scheduler.Shutdown(); err != nil {
			log.Printf("An error has occurred while stopping Scheduler: %s\n", err.Error())
		}
	}
	app.Sessions.CancelAll()
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
}
