package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"google.golang.org/api/iterator"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/metrics"
	"github.com/trezcool/shule/services/ratelimit"
	"github.com/trezcool/shule/storage"
	"github.com/trezcool/shule/storage/database"
	firestorerepos "github.com/trezcool/shule/storage/database/firestore"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
	"github.com/trezcool/shule/storage/files"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Database holds the repositories of the configured engine.
type Database struct {
	dig.Out
	Users         user.Repository
	Classes       class.Repository
	Attendance    attendance.Repository
	Results       result.Repository
	Notifications notification.Repository
	Conn          *Conn
}

// Conn checks and closes the underlying database connection.
type Conn struct {
	Engine string
	Ping   func(ctx context.Context) error
	Close  func() error
}

type FileStorage struct {
	dig.Out
	Store    report.FileStore
	MediaDir string `name:"mediaDir"`
}

// FirebaseAppFunc initializes the firebase app once, on first use.
type FirebaseAppFunc func() (*firebase.App, error)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)
	result.RegisterValidators(validate, translator)
	notification.RegisterValidators(validate, translator)
	return validate, translator
}

func newFirebaseAppFunc(conf *core.Config) FirebaseAppFunc {
	var (
		once sync.Once
		app  *firebase.App
		err  error
	)
	return func() (*firebase.App, error) {
		once.Do(func() {
			app, err = storage.NewFirebaseApp(context.Background(), conf)
		})
		return app, err
	}
}

func newDatabase(conf *core.Config, loggerParam DBLoggerParam, firebaseApp FirebaseAppFunc) (Database, error) {
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case "postgres", "pgx":
		if err := database.CreateIfNotExist(conf); err != nil {
			return Database{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return Database{}, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return Database{}, err
		}
		logger.Info(fmt.Sprintf("connected to %s at %s", conf.Database.Engine, conf.Database.Address()))
		return Database{
			Users:         sqlxrepos.NewUserRepository(db),
			Classes:       sqlxrepos.NewClassRepository(db),
			Attendance:    sqlxrepos.NewAttendanceRepository(db),
			Results:       sqlxrepos.NewResultRepository(db),
			Notifications: sqlxrepos.NewNotificationRepository(db),
			Conn:          &Conn{Engine: conf.Database.Engine, Ping: db.PingContext, Close: db.Close},
		}, nil

	case "firestore":
		app, err := firebaseApp()
		if err != nil {
			return Database{}, err
		}
		client, err := firestorerepos.NewClient(context.Background(), app)
		if err != nil {
			return Database{}, err
		}
		logger.Info("connected to firestore project " + conf.Database.FirestoreProject)
		return Database{
			Users:         firestorerepos.NewUserRepository(client),
			Classes:       firestorerepos.NewClassRepository(client),
			Attendance:    firestorerepos.NewAttendanceRepository(client),
			Results:       firestorerepos.NewResultRepository(client),
			Notifications: firestorerepos.NewNotificationRepository(client),
			Conn:          &Conn{Engine: conf.Database.Engine, Ping: firestorePing(client), Close: client.Close},
		}, nil

	case "memory":
		logger.Warn("using the in-memory database: nothing will be persisted")
		db := inmemdb.NewDB()
		return Database{
			Users:         inmemdb.NewUserRepository(db),
			Classes:       inmemdb.NewClassRepository(db),
			Attendance:    inmemdb.NewAttendanceRepository(db),
			Results:       inmemdb.NewResultRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Conn: &Conn{
				Engine: conf.Database.Engine,
				Ping:   func(context.Context) error { return nil },
				Close:  func() error { return nil },
			},
		}, nil
	}
	return Database{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func firestorePing(client *firestore.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := client.Collection("users").Limit(1).Documents(ctx).Next()
		if err != nil && err != iterator.Done {
			return err
		}
		return nil
	}
}

func newFileStorage(conf *core.Config, logger core.Logger, firebaseApp FirebaseAppFunc) (FileStorage, error) {
	if conf.Storage.Backend == "firebase" {
		app, err := firebaseApp()
		if err != nil {
			return FileStorage{}, err
		}
		store, err := files.NewFirebaseStore(context.Background(), app, conf, logger)
		if err != nil {
			return FileStorage{}, err
		}
		return FileStorage{Store: store}, nil
	}
	store := files.NewDiskStore(conf)
	return FileStorage{Store: store, MediaDir: store.Dir()}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newMetrics() *metrics.Metrics {
	return metrics.New("shule")
}

// newLimiter shares the rate limits between instances through redis, when configured.
func newLimiter(conf *core.Config, logger core.Logger) ratelimit.Limiter {
	if conf.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(context.Background(), conf.RedisAddr)
		if err == nil {
			return ratelimit.NewRedisWindow(client, conf.Server.RateLimitPerMin)
		}
		logger.Warn("redis unavailable, rate limiting per instance", err)
	}
	return ratelimit.NewTokenBucket(conf.Server.RateLimitPerMin)
}

func newShutdownChannel() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Shutdown   chan os.Signal
	Validate   *validator.Validate
	Translator ut.Translator
	Conn       *Conn
	MediaDir   string `name:"mediaDir"`

	UserSvc         user.Service
	ClassSvc        class.Service
	AttendanceSvc   attendance.Service
	ResultSvc       result.Service
	NotificationSvc notification.Service
	ReportSvc       report.Service
	Metrics         *metrics.Metrics
	Limiter         ratelimit.Limiter
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, p.Shutdown, &echoapi.Deps{
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		ClassSvc:        p.ClassSvc,
		AttendanceSvc:   p.AttendanceSvc,
		ResultSvc:       p.ResultSvc,
		NotificationSvc: p.NotificationSvc,
		ReportSvc:       p.ReportSvc,
		Metrics:         p.Metrics,
		Limiter:         p.Limiter,
		MediaDir:        p.MediaDir,
		Health:          p.Conn.Ping,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newValidator))
	must(c.Provide(newMetrics))
	must(c.Provide(newLimiter))
	must(c.Provide(newShutdownChannel))

	// storage
	must(c.Provide(newFirebaseAppFunc))
	must(c.Provide(newDatabase))
	must(c.Provide(newFileStorage))
	must(c.Provide(newEmailService))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(result.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(report.NewService))

	must(c.Provide(newServer))
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
