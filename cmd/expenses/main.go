package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/developer-mesh/expense-store/pkg/config"
	"github.com/developer-mesh/expense-store/pkg/database"
	"github.com/developer-mesh/expense-store/pkg/ingest"
	"github.com/developer-mesh/expense-store/pkg/models"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

var (
	// Command flags
	initFlag  = flag.Bool("init", false, "Create the expenses table, indexes and vector extension")
	checkFlag = flag.Bool("check", false, "Report which schema objects exist")
	fileFlag  = flag.String("file", "", "Insert expenses from a .csv or .json file")

	// Global flags
	dsn = flag.String("dsn", "", "Database connection string (overrides DATABASE_URL)")
)

func main() {
	flag.Parse()

	if !*initFlag && !*checkFlag && *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -init, -check or -file is required")
		flag.Usage()
		os.Exit(1)
	}

	load := config.Load
	if *dsn != "" {
		load = config.LoadWithoutURL
	}
	cfg, err := load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerWithLevel("expenses-cli", observability.ParseLogLevel(cfg.Logging.Level))

	// Cancel in-flight work on interrupt; the open transaction rolls back
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received termination signal, canceling operations...", nil)
		cancel()
	}()

	if cfg.Database.OperationTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Database.OperationTimeout)
		defer timeoutCancel()
	}

	provider := database.NewProvider(database.Config{
		Driver:         cfg.Database.Driver,
		DatabaseURL:    cfg.Database.URL,
		InsertPageSize: cfg.Database.InsertPageSize,
	}, logger)

	code := run(ctx, provider, *dsn, cfg.Database.InsertPageSize, logger, os.Stdout)
	cancel()
	os.Exit(code)
}

// run executes the requested commands in order and returns the exit code.
// An empty connectionString selects the configured database url.
func run(ctx context.Context, connector database.Connector, connectionString string, pageSize int, logger observability.Logger, out io.Writer) int {
	if *initFlag {
		result := database.NewProvisioner(connector, logger, nil).EnsureSchema(observability.WithOperation(ctx, "init"), connectionString)
		printJSON(out, result)
		if !result.Success() {
			return 1
		}
	}

	if *checkFlag {
		status, err := database.NewSchemaInspector(connector, logger).Inspect(observability.WithOperation(ctx, "check"), connectionString)
		if err != nil {
			logger.Error("Schema check failed", map[string]interface{}{"error": err.Error()})
			return 1
		}
		printJSON(out, status)
		if !status.Ready() {
			return 1
		}
	}

	if *fileFlag != "" {
		expenses, err := loadFile(*fileFlag)
		if err != nil {
			logger.Error("Failed to load expenses", map[string]interface{}{
				"file":  *fileFlag,
				"error": err.Error(),
			})
			return 1
		}

		writer := database.NewBatchWriter(connector, pageSize, logger, nil)
		result, err := writer.InsertBatch(observability.WithOperation(ctx, "insert"), expenses, connectionString)
		if err != nil {
			logger.Error("Insert rejected", map[string]interface{}{"error": err.Error()})
			return 1
		}
		printJSON(out, result)
		if !result.Success() {
			return 1
		}
	}
	return 0
}

func loadFile(path string) ([]models.Expense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.LoadFile(path, f)
}

func printJSON(out io.Writer, v interface{}) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
