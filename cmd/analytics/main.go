// Package main runs one analytics request from the command line and prints
// the result as JSON. With -set-wallet it records a secondary wallet
// override instead (requires POSTGRES_ENABLED).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/creator-analytics/internal/app"
	"github.com/creator-analytics/internal/config"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/service"
	"github.com/creator-analytics/internal/storage"
	"github.com/creator-analytics/internal/types"
)

func main() {
	var (
		mode      = flag.String("mode", "standard", "Fetch mode: initial, standard, full")
		limit     = flag.Int("limit", 0, "Maximum created assets to enrich (0 uses the default)")
		skipCache = flag.Bool("skip-cache", false, "Ignore a cached result")
		setWallet = flag.String("set-wallet", "", "Store this address as the creator's secondary wallet")
		note      = flag.String("note", "", "Note stored with -set-wallet")
		timeout   = flag.Duration("timeout", 2*time.Minute, "Overall deadline")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <handle-or-address>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	identifier := flag.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs go to stderr so stdout stays valid JSON
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.SetOutput(os.Stderr)

	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logger), *timeout)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	if *setWallet != "" {
		if err := storeOverride(ctx, application, identifier, *setWallet, *note); err != nil {
			logger.WithError(err).Error("Failed to store wallet override")
			os.Exit(1)
		}
		logger.WithFields(map[string]interface{}{
			"handle": identifier,
			"wallet": *setWallet,
		}).Info("Wallet override stored")
		return
	}

	parsed, ok := types.ParseMode(*mode)
	if !ok {
		logger.WithField("mode", *mode).Error("Unknown mode")
		os.Exit(2)
	}

	result, err := application.Analytics.GetCreatorAnalytics(ctx, &service.AnalyticsInput{
		Identifier: identifier,
		Mode:       parsed,
		Limit:      *limit,
		SkipCache:  *skipCache,
	})
	if err != nil {
		logger.WithError(err).Error("Analytics request failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.WithError(err).Error("Failed to encode result")
		os.Exit(1)
	}
}

func storeOverride(ctx context.Context, a *app.App, handle, wallet, note string) error {
	if a.Overrides == nil {
		return fmt.Errorf("wallet overrides need POSTGRES_ENABLED=true")
	}
	return a.Overrides.Upsert(ctx, &storage.WalletOverride{
		Handle:          handle,
		SecondaryWallet: wallet,
		Note:            note,
	})
}
