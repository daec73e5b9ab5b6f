// Command server runs the PDF signing service.
package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/pdfsigner/internal/server"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("server setup failed: %v", err)
	}
	app.Run(context.Background())
}
