// botrelay serves many Telegram bots behind one webhook endpoint.
//
// Configuration comes from an optional YAML file (--config) overlaid with
// BOTRELAY_* environment variables; a few common settings can also be
// given as flags.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/xraph/botrelay/server"
	"github.com/xraph/botrelay/signature"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		domain      string
		addr        string
		storeDriver string
		storeDSN    string
		busDriver   string
		logLevel    string
		generateKey bool
	)

	flagSet := pflag.NewFlagSet("botrelay", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("BOTRELAY_CONFIG"), "path to YAML config file")
	flagSet.StringVar(&domain, "webhook-domain", "", "public base URL used for setWebhook")
	flagSet.StringVar(&addr, "addr", "", "HTTP listen address")
	flagSet.StringVar(&storeDriver, "store", "", "store driver: memory, sqlite, postgres, redis, mongo")
	flagSet.StringVar(&storeDSN, "store-dsn", "", "store DSN or URI")
	flagSet.StringVar(&busDriver, "bus", "", "bus driver: memory, redis, kafka")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&generateKey, "generate-key", false, "print a new secret key and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: botrelay [flags]\n\n%s", flagSet.FlagUsages())
		return nil
	}
	if generateKey {
		fmt.Println(signature.GenerateKey())
		return nil
	}

	cfg, err := server.Read(configPath)
	if err != nil {
		return err
	}
	if domain != "" {
		cfg.WebhookDomain = domain
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if storeDSN != "" {
		cfg.Store.DSN = storeDSN
	}
	if busDriver != "" {
		cfg.Bus.Driver = busDriver
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := server.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	app := fx.New(server.Module(cfg, logger))
	app.Run()
	return app.Err()
}
