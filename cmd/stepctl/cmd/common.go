package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stepwise-app/stepwise/internal/app"
	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/logger"
)

func InitLogging(verbose bool) {
	logger.InitCLI(verbose)
}

// withApp loads the configuration, builds the application and closes it
// after fn returns.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg := config.Load()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := a.Close()
		if closeErr != nil {
			fmt.Fprintln(os.Stderr, "close:", closeErr)
		}
	}()

	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
