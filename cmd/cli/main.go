// Command cli is an interactive client for the PDF signing service.
package main

import (
	"context"

	"github.com/dmitrijs2005/pdfsigner/internal/client/cli"
	"github.com/dmitrijs2005/pdfsigner/internal/client/config"
)

func main() {
	app := cli.NewApp(config.LoadConfig())
	app.Run(context.Background())
}
