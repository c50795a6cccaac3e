// Command seed fills the readings store with a simulated CGM series.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/glucofeed/internal/adapters/repository"
	"github.com/okian/glucofeed/internal/config"
	"github.com/okian/glucofeed/internal/simulate"
	"github.com/okian/glucofeed/pkg/logger"
)

const (
	defaultReadings = 288 // one day at five-minute spacing
	seedTimeout     = time.Minute
)

func main() {
	var (
		count    = flag.Int("n", defaultReadings, "Number of readings to generate")
		dbPath   = flag.String("db", "", "SQLite file to write (default: db_path from config)")
		baseline = flag.Float64("baseline", 120, "Mean glucose in mg/dL")
		swing    = flag.Float64("amplitude", 40, "Glucose swing around the baseline in mg/dL")
		seed     = flag.Uint64("seed", 0, "Random seed (0 picks one)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	if err := run(ctx, log, *dbPath, *count, *baseline, *swing, *seed); err != nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger, dbPath string, n int, baseline, swing float64, seed uint64) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	store, err := repository.Open(ctx, dbPath, repository.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := []simulate.Option{
		simulate.WithBaseline(baseline),
		simulate.WithAmplitude(swing),
		simulate.WithSource(cfg.CollectorDevice),
	}
	if seed != 0 {
		opts = append(opts, simulate.WithSeed(seed))
	}
	readings := simulate.New(opts...).Series(n, time.Now())
	if err := store.Insert(ctx, readings...); err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fields := []logger.Field{
		logger.String("db", dbPath),
		logger.Int("inserted", len(readings)),
		logger.Int("total", total),
	}
	if len(readings) > 0 {
		fields = append(fields,
			logger.String("newest", readings[0].Time().Format(time.RFC3339)),
			logger.String("oldest", readings[len(readings)-1].Time().Format(time.RFC3339)),
		)
	}
	log.Info(ctx, "readings seeded", fields...)
	return nil
}
