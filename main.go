package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/inboxkit/mailsync/internal/config"
	"github.com/inboxkit/mailsync/internal/database"
	"github.com/inboxkit/mailsync/internal/repository"
	"github.com/inboxkit/mailsync/server"
)

func main() {
	app := &cli.App{
		Name:  "mailsync",
		Usage: "email ingestion and synchronization service",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *database.DatabaseConfig, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}

	dbConfig := &database.DatabaseConfig{
		DBName:          cfg.DatabaseConfig.DBName,
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	}

	return cfg, dbConfig, nil
}

func runMigrate(c *cli.Context) error {
	cfg, dbConfig, err := setup()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return err
	}

	log.Println("Database migration completed successfully")
	return nil
}

func runServer(c *cli.Context) error {
	cfg, dbConfig, err := setup()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailsync starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return err
	}

	return srv.Run()
}
