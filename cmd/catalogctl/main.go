package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/objcatalog/internal/ctl"
	"github.com/dmitrijs2005/objcatalog/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := ctl.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, ctl.ErrUsage) {
			log.Printf("%v", err)
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}

}
