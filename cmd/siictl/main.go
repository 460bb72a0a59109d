package main

import (
	"context"
	"log"
	"os"

	"github.com/mfuentesc/siidte/internal/cli"
	"github.com/mfuentesc/siidte/internal/cli/config"
	"github.com/mfuentesc/siidte/internal/flagx"
)

func main() {
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	args := flagx.Positionals(os.Args[1:], []string{"-a", "-k", "-t", "-c", "-config"})

	if err := app.Run(context.Background(), args); err != nil {
		log.Fatalf("%v", err)
	}
}
