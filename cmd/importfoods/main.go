package main

// Load a food catalog file into the configured catalog source:
//   go run ./cmd/importfoods -file data/foods.json
//   go run ./cmd/importfoods -file foods.yaml -target postgres

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"moodfood-backend/internal/bootstrap"
	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/queue"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/storage/db"
	localstore "moodfood-backend/internal/shared/storage/object/local"
	s3store "moodfood-backend/internal/shared/storage/object/s3"
	"moodfood-backend/internal/shared/telemetry"
)

type options struct {
	File   string
	Target string
	Key    string
	DryRun bool
	// Notify announces object-store publishes on the catalog queue.
	Notify queue.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitErr(err)
	}

	var opts options
	flag.StringVar(&opts.File, "file", "", "Path to a JSON or YAML catalog")
	flag.StringVar(&opts.Target, "target", cfg.CatalogSource, "Destination: postgres, local or s3")
	flag.StringVar(&opts.Key, "key", cfg.CatalogKey, "Object key for local and s3 targets")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Validate only")
	flag.Parse()

	ctx := context.Background()
	notify, err := bootstrap.NewCatalogQueue(ctx, cfg)
	if err != nil {
		exitErr(err)
	}
	if notify != nil {
		opts.Notify = notify
	}

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		exitErr(err)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer) error {
	if strings.TrimSpace(opts.File) == "" {
		return errors.New("-file is required")
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := catalog.Decode(f, filepath.Base(opts.File))
	if err != nil {
		return err
	}
	if err := catalog.Validate(doc); err != nil {
		return err
	}
	if opts.DryRun {
		fmt.Fprintf(out, "valid catalog: %d foods, version %s\n", len(doc.Foods), doc.Metadata.Version)
		return nil
	}

	switch opts.Target {
	case "postgres":
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, bootstrap.PoolOptions(cfg, db.DefaultMigrateOptions()))
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		repo := &catalog.PGRepo{DB: sqlDB}
		if err := repo.ReplaceAll(ctx, doc); err != nil {
			return err
		}
	case "local":
		n, err := catalog.Publish(ctx, localstore.New(cfg.LocalStoreDir), opts.Key, doc)
		if err != nil {
			return err
		}
		telemetry.Info("importfoods.published", map[string]any{"key": opts.Key, "bytes": n})
		if err := announce(ctx, opts, doc); err != nil {
			return err
		}
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return err
		}
		n, err := catalog.Publish(ctx, store, opts.Key, doc)
		if err != nil {
			return err
		}
		telemetry.Info("importfoods.published", map[string]any{"key": opts.Key, "bytes": n})
		if err := announce(ctx, opts, doc); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target %q", opts.Target)
	}

	fmt.Fprintf(out, "imported %d foods into %s\n", len(doc.Foods), opts.Target)
	return nil
}

func announce(ctx context.Context, opts options, doc catalog.Document) error {
	if opts.Notify == nil {
		return nil
	}
	msg := queue.NewMessage(opts.Key, doc.Metadata.Version, len(doc.Foods), uuid.NewString(), time.Now())
	if err := opts.Notify.Send(ctx, msg); err != nil {
		return fmt.Errorf("announce catalog: %w", err)
	}
	telemetry.Info("importfoods.announced", map[string]any{"key": msg.Key, "request_id": msg.RequestID})
	return nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
