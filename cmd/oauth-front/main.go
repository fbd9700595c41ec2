package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/oauth-front/internal/app"
	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/log"
)

var BuildVersion = "dev"

func validateConfig() error {
	cfg, err := config.Parse(nil)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}
	result := config.Validate(&cfg)

	fmt.Println("Validating environment")

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Printf("  - %s\n", err.Error())
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			fmt.Printf("  - %s\n", warn.Error())
		}
	}

	fmt.Println()
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Println("Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Println("Result: FAIL (warnings present)")
	} else {
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func main() {
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	validate := flag.Bool("validate", false, "validate environment configuration and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}

	if *validate {
		if err := validateConfig(); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting oauth-front", map[string]any{
		"version":  BuildVersion,
		"provider": cfg.Provider.Type,
	})

	ctx := context.Background()
	oauthFront, err := app.New(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create oauth-front: %v", err)
		os.Exit(1)
	}

	if err := oauthFront.Run(ctx); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
