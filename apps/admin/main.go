package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage"
	"github.com/trezcool/shule/storage/database"
	firestorerepos "github.com/trezcool/shule/storage/database/firestore"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	db, usrRepo, closeFunc, err := openUserRepository(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	cli := &commandLine{conf: conf, db: db, usrRepo: usrRepo, out: os.Stdout}
	err = cli.run(os.Args)
	if cerr := closeFunc(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

// openUserRepository connects to the configured engine. db is only set for SQL engines.
func openUserRepository(conf *core.Config) (*sql.DB, user.Repository, func() error, error) {
	switch conf.Database.Engine {
	case "postgres", "pgx":
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, nil, err
		}
		return db.DB, sqlxrepos.NewUserRepository(db), db.Close, nil

	case "firestore":
		ctx := context.Background()
		app, err := storage.NewFirebaseApp(ctx, conf)
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := firestorerepos.NewClient(ctx, app)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, firestorerepos.NewUserRepository(client), client.Close, nil
	}
	return nil, nil, nil, errors.Errorf("the admin commands cannot run on the %q database engine", conf.Database.Engine)
}
