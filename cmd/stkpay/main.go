package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stkpay/pkg/client"
	applog "stkpay/pkg/log"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	var (
		apiURL  string
		verbose bool
	)
	rootCmd := &cobra.Command{
		Use:     "stkpay",
		Short:   "Pay and check payments against an stkpay server",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			applog.Init("stkpay-cli", applog.WithConsoleLogger(), applog.WithLogLevel(level))
		},
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("STKPAY_API", "http://localhost:8099"), "stkpay server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each poll attempt")

	newClient := func() *client.Client {
		return client.New(apiURL, &http.Client{Timeout: 2 * time.Minute})
	}
	rootCmd.AddCommand(payCmd(newClient))
	rootCmd.AddCommand(statusCmd(newClient))
	rootCmd.AddCommand(manualCmd(newClient))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
