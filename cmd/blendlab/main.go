package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/blendlab/blendlab/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{ConfigPath: *configPath}
	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, opts); errMigrate != nil {
			log.Fatalf("migrate: %v", errMigrate)
		}
		return
	}
	if errRun := app.RunServer(ctx, opts); errRun != nil {
		log.Fatalf("server: %v", errRun)
	}
}
