package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/boot"
	"github.com/memohai/stowbot/internal/config"
	"github.com/memohai/stowbot/internal/server"
	"github.com/memohai/stowbot/internal/storage"
	"github.com/memohai/stowbot/internal/storage/localfs"
	"github.com/memohai/stowbot/internal/storage/s3store"
)

var StorageModule = fx.Module(
	"storage",
	fx.Provide(
		provideStorage,
		provideServerHandler(provideStaticFiles),
	),
)

type storageResult struct {
	fx.Out

	Provider   storage.Provider
	LocalRoot  localRoot
	LinkExpiry linkExpiry
}

type (
	localRoot  string
	linkExpiry time.Duration
)

func provideStorage(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (storageResult, error) {
	sc := cfg.Storage
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "local", "localfs":
		store, err := localfs.New(sc.LocalRoot, sc.PublicBaseURL)
		if err != nil {
			return storageResult{}, fmt.Errorf("local storage: %w", err)
		}
		log.Info("storage backend", slog.String("backend", "local"), slog.String("root", store.Root()))
		return storageResult{Provider: store, LocalRoot: localRoot(store.Root())}, nil
	case "", "s3", "minio":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := s3store.New(ctx, log, s3store.Config{
			Endpoint:         sc.Endpoint,
			ExternalEndpoint: sc.ExternalEndpoint,
			AccessKey:        sc.AccessKey,
			SecretKey:        sc.SecretKey,
			UseSSL:           sc.UseSSL,
			Bucket:           sc.Bucket,
			Region:           sc.Region,
			Prefix:           sc.Prefix,
			URLExpiry:        rc.URLExpiry,
		})
		if err != nil {
			return storageResult{}, fmt.Errorf("s3 storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return storageResult{}, fmt.Errorf("ensure bucket: %w", err)
		}
		log.Info("storage backend", slog.String("backend", "s3"), slog.String("bucket", sc.Bucket))
		return storageResult{Provider: store, LinkExpiry: linkExpiry(store.Expiry())}, nil
	default:
		return storageResult{}, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

func provideStaticFiles(root localRoot) server.StaticFiles {
	return server.StaticFiles{Root: string(root)}
}
