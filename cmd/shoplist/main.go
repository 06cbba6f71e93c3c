package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"smart-shopping-list/internal/app"
	"smart-shopping-list/internal/config"
	"smart-shopping-list/internal/session"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	app.ConfigureLogging(cfg)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil && !errors.Is(err, session.ErrBackendUnavailable) {
		logrus.WithError(err).Warn("Failed to load data")
	}

	cli := &cli{app: application, out: os.Stdout, locale: cfg.Locale}
	if err := cli.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printUsage()
		} else {
			fmt.Fprintln(os.Stderr, cli.describe(err))
		}
		application.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: shoplist <command> [arguments]")
	fmt.Println("\nAccount:")
	fmt.Println("  register           Create an account (-email, -password, -confirm)")
	fmt.Println("  login              Sign in (-email, -password)")
	fmt.Println("  logout             Sign out and forget the stored session")
	fmt.Println("  whoami             Show the signed-in user")
	fmt.Println("\nProducts:")
	fmt.Println("  products           List your products")
	fmt.Println("  product-add        Add a product (-name, -description, -image, -suggest)")
	fmt.Println("  product-edit       Edit a product (-id, -name, -description, -image)")
	fmt.Println("  product-delete     Delete a product and remove it from every list (-id)")
	fmt.Println("  suggest            Suggest a name and description for a photo (-image)")
	fmt.Println("\nShopping lists:")
	fmt.Println("  lists              List your shopping lists with their progress")
	fmt.Println("  list-show          Show the items of a list (-id)")
	fmt.Println("  list-create        Create a list (-name)")
	fmt.Println("  list-rename        Rename a list (-id, -name)")
	fmt.Println("  list-delete        Delete a list (-id)")
	fmt.Println("  item-add           Add a product to a list (-list, -product, -qty)")
	fmt.Println("  item-qty           Change the quantity of an item (-list, -product, -qty)")
	fmt.Println("  item-toggle        Mark an item as purchased or pending (-list, -product)")
	fmt.Println("  item-remove        Remove an item from a list (-list, -product)")
	fmt.Println("\nMaintenance:")
	fmt.Println("  usage              Show suggestion usage per day (-days)")
	fmt.Println("  metrics-cleanup    Remove old metric records (-days)")
}
