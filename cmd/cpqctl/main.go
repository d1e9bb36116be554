// Command cpqctl is the operational CLI for the CPQ engine: it migrates
// collection schema, seeds fixture actors, runs a smoke check against a live
// deployment, prints the resolved configuration, and diagnoses readiness.
// It sits at the boundary like the HTTP server, never in the core: none of
// its subcommands import the constraint, pricing, or policy engines
// directly, only the application service that already wraps them.
//
// Usage:
//
//	cpqctl migrate [-mongo-uri=...] [-mongo-db=...]
//	cpqctl seed [-mongo-uri=...] [-mongo-db=...]
//	cpqctl smoke [-mongo-uri=...] [-mongo-db=...]
//	cpqctl config
//	cpqctl diagnose [-mongo-uri=...] [-mongo-db=...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"cpq-engine-api/internal/bootstrap"
	"cpq-engine-api/internal/config"
	"cpq-engine-api/internal/model"
	"cpq-engine-api/internal/quoteservice"
	"cpq-engine-api/internal/service"
)

// Exit codes, per the operational CLI contract: 0 success, 2 config error,
// 3 runtime init failure, 4 database connectivity failure, 5 migration
// failure, 6 smoke check failure.
const (
	exitOK                 = 0
	exitConfigError        = 2
	exitRuntimeInitFailure = 3
	exitDBConnectivity     = 4
	exitMigrationFailure   = 5
	exitSmokeFailure       = 6
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitConfigError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "migrate":
		os.Exit(runMigrate(args))
	case "seed":
		os.Exit(runSeed(args))
	case "smoke":
		os.Exit(runSmoke(args))
	case "config":
		os.Exit(runConfig(args))
	case "diagnose":
		os.Exit(runDiagnose(args))
	case "help", "-h", "--help":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(exitConfigError)
	}
}

func printUsage() {
	fmt.Println("cpqctl - CPQ engine operational CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate    ensure collection indexes exist")
	fmt.Println("  seed       create fixture actors for local/staging use")
	fmt.Println("  smoke      run a live create-and-price round trip")
	fmt.Println("  config     print the resolved configuration")
	fmt.Println("  diagnose   report config, database, and collection readiness")
}

// loadConfig applies flag overrides for mongo-uri/mongo-db on top of the
// environment-resolved config, matching the layering the environment surface
// requires: defaults, then file/env (config.Load), then CLI overrides last.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	cfg := config.Load()

	mongoURI := fs.String("mongo-uri", cfg.MongoURI, "MongoDB connection URI")
	mongoDB := fs.String("mongo-db", cfg.MongoDB, "MongoDB database name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.MongoURI = *mongoURI
	cfg.MongoDB = *mongoDB

	if err := cfg.ValidateEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConfig(args []string) int {
	cfg := config.Load()
	if err := flag.NewFlagSet("config", flag.ContinueOnError).Parse(args); err != nil {
		return exitConfigError
	}
	if err := cfg.ValidateEnvironment(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		return exitConfigError
	}
	fmt.Print(cfg.Summary())
	return exitOK
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime init failed: %v\n", err)
		return exitRuntimeInitFailure
	}
	defer func() { _ = logger.Sync() }()

	// Wire connects and constructs every store; each store's constructor
	// ensures its own indexes as a side effect, so a clean Wire is the
	// migration.
	app, err := bootstrap.Wire(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connectivity failed: %v\n", err)
		return exitDBConnectivity
	}
	defer closeApp(app)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := app.Mongo.DB().ListCollectionNames(ctx, bson.M{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed listing collections: %v\n", err)
		return exitMigrationFailure
	}

	fmt.Printf("migration complete: %d collection(s) present\n", len(names))
	for _, n := range names {
		fmt.Printf("  - %s\n", n)
	}
	return exitOK
}

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime init failed: %v\n", err)
		return exitRuntimeInitFailure
	}
	defer func() { _ = logger.Sync() }()

	app, err := bootstrap.Wire(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connectivity failed: %v\n", err)
		return exitDBConnectivity
	}
	defer closeApp(app)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fixtures := []struct {
		email string
		role  string
	}{
		{"rep@cpq.local", model.RoleRep},
		{"manager@cpq.local", model.RoleManager},
		{"desk@cpq.local", model.RoleDesk},
		{"vp@cpq.local", model.RoleVP},
		{"admin@cpq.local", model.RoleAdmin},
	}

	for _, f := range fixtures {
		existing, err := app.ActorRepo.GetByEmail(ctx, f.email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration failed checking actor %s: %v\n", f.email, err)
			return exitMigrationFailure
		}
		if existing != nil {
			fmt.Printf("skip %s: already seeded\n", f.email)
			continue
		}

		hash, err := service.HashPassword("cpq-fixture-password")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed hashing fixture password: %v\n", err)
			return exitMigrationFailure
		}

		actor := &model.Actor{
			Email:        f.email,
			PasswordHash: hash,
			DisplayName:  f.role + " fixture",
			Role:         f.role,
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := app.ActorRepo.Create(ctx, actor); err != nil {
			fmt.Fprintf(os.Stderr, "failed seeding actor %s: %v\n", f.email, err)
			return exitMigrationFailure
		}
		fmt.Printf("seeded %s (role=%s, password=cpq-fixture-password)\n", f.email, f.role)
	}

	return exitOK
}

func runSmoke(args []string) int {
	fs := flag.NewFlagSet("smoke", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime init failed: %v\n", err)
		return exitRuntimeInitFailure
	}
	defer func() { _ = logger.Sync() }()

	app, err := bootstrap.Wire(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connectivity failed: %v\n", err)
		return exitDBConnectivity
	}
	defer closeApp(app)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	listPrice, err := model.MoneyFromString("100.00")
	if err != nil {
		fmt.Fprintf(os.Stderr, "smoke check failed building fixture price: %v\n", err)
		return exitSmokeFailure
	}

	lines := []model.QuoteLine{
		{ID: "smoke-line-1", ProductId: "smoke-product", ConfigurationKey: "base", Quantity: 1, Attributes: map[string]string{}},
	}

	quote, err := app.QuoteService.CreateQuote(ctx, "smoke-customer", "USD", lines, "cpqctl-smoke")
	if err != nil {
		fmt.Fprintf(os.Stderr, "smoke check failed creating quote: %v\n", err)
		return exitSmokeFailure
	}
	fmt.Printf("created smoke quote %s\n", quote.ID)

	pricing := quoteservice.PricingContext{
		Currency:        "USD",
		CustomerSegment: "smoke",
		Region:          "smoke",
		PriceBooks: []model.PriceBook{{
			ID:              "smoke-book",
			CustomerSegment: "smoke",
			Region:          "smoke",
			Currency:        "USD",
			Entries:         []model.PriceBookEntry{{ProductId: "smoke-product", ListPrice: listPrice}},
		}},
	}

	outcome, err := app.QuoteService.Evaluate(ctx, quote.ID, "cpqctl-smoke", model.RuleSet{RuleSetVersion: "smoke"}, model.PolicySet{PolicyVersion: "smoke"}, pricing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "smoke check failed evaluating quote: %v\n", err)
		return exitSmokeFailure
	}

	fmt.Printf("smoke check passed: quote %s reached status %s\n", quote.ID, outcome.Quote.Status)
	return exitOK
}

func runDiagnose(args []string) int {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		return exitConfigError
	}
	fmt.Println("[ok] config resolved and validated")

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[fail] logger init: %v\n", err)
		return exitRuntimeInitFailure
	}
	defer func() { _ = logger.Sync() }()
	fmt.Println("[ok] logger initialized")

	app, err := bootstrap.Wire(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[fail] database connectivity: %v\n", err)
		return exitDBConnectivity
	}
	defer closeApp(app)
	fmt.Println("[ok] database reachable")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := app.Mongo.DB().ListCollectionNames(ctx, bson.M{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[fail] collection listing: %v\n", err)
		return exitDBConnectivity
	}
	fmt.Printf("[ok] %d collection(s) present\n", len(names))

	fmt.Println("readiness: OK")
	return exitOK
}

func closeApp(app *bootstrap.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: error closing Mongo client: %v\n", err)
	}
}
