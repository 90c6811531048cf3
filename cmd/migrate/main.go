package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/db"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands never open a database connection.
var offline = map[string]func(opts options) (string, error){
	"create": func(opts options) (string, error) {
		if opts.name == "" {
			return "", fmt.Errorf("-name is required for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return "", err
		}
		return "created " + path, nil
	},
	"validate": func(opts options) (string, error) {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return "", err
		}
		return "migrations ok", nil
	},
}

func online(ctx context.Context, sqlDB *sql.DB, cmd string, opts options) ([]string, error) {
	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, cmd)
	case "version":
		if opts.version == "" {
			return nil, fmt.Errorf("-version is required for version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func main() {
	var opts options
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; empty uses the embedded set")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for version")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		fail(context.Background(), logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": opts.dir,
	})

	if run, ok := offline[*cmd]; ok {
		out, err := run(opts)
		if err != nil {
			fail(ctx, logg, *cmd, err)
		}
		fmt.Println(out)
		return
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		fail(ctx, logg, "unwrap sql.DB", err)
	}

	report, err := online(ctx, sqlDB, *cmd, opts)
	if err != nil {
		fail(ctx, logg, "goose "+*cmd, err)
	}
	for _, line := range report {
		fmt.Println(line)
	}
}

func fail(ctx context.Context, logg *logger.Logger, step string, err error) {
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
