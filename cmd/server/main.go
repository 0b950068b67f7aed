package main

import (
	"context"
	"log"

	"github.com/car2chain/inspections/internal/server"
	"github.com/car2chain/inspections/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
