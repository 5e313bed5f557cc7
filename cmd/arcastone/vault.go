package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arcastone/vault/internal/adapters/driven/ai"
	"github.com/arcastone/vault/internal/adapters/driven/config/file"
	"github.com/arcastone/vault/internal/adapters/driven/storage/blob"
	"github.com/arcastone/vault/internal/adapters/driven/storage/checkpoint"
	"github.com/arcastone/vault/internal/adapters/driven/storage/sqlite"
	"github.com/arcastone/vault/internal/adapters/driven/storage/tlog"
	"github.com/arcastone/vault/internal/adapters/driving/cli"
	"github.com/arcastone/vault/internal/core/services"
	"github.com/arcastone/vault/internal/logger"
	"github.com/arcastone/vault/internal/normalisers/pdf"
	"github.com/arcastone/vault/internal/postprocessors/chunker"
)

// Vault root layout.
const (
	objectsDir     = "objects"
	indexDir       = "index"
	tmpDir         = "tmp"
	tlogFile       = "tlog"
	checkpointFile = "manifest.ckpt"
)

// vault is an opened vault root. manifest is nil in settings mode.
type vault struct {
	svc      *cli.Services
	manifest *services.Manifest
}

// openVault builds the adapter graph for the vault at root. Settings-only
// commands get the config store alone so they work on a damaged vault.
func openVault(ctx context.Context, root string, mode cli.OpenMode) (*cli.Services, error) {
	v, err := openRoot(ctx, root, mode)
	if err != nil {
		return nil, err
	}
	return v.svc, nil
}

func openRoot(ctx context.Context, root string, mode cli.OpenMode) (*vault, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating vault root: %w", err)
	}

	configStore, err := file.NewConfigStore(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	if mode == cli.OpenSettings {
		return &vault{svc: &cli.Services{
			Settings: settingsService,
			Close:    func() error { return nil },
		}}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*vault, error) {
		_ = closeAll()
		return nil, err
	}

	tmp := filepath.Join(root, tmpDir)
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return nil, fmt.Errorf("creating tmp directory: %w", err)
	}

	blobs, err := blob.NewStore(filepath.Join(root, objectsDir))
	if err != nil {
		return nil, err
	}

	log, err := tlog.Open(filepath.Join(root, tlogFile))
	if err != nil {
		return nil, err
	}
	ckpt, err := checkpoint.NewStore(filepath.Join(root, checkpointFile), settings.Manifest.Compression)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	manifest, err := services.OpenManifest(log, ckpt, services.WithCheckpointEvery(settings.Manifest.CheckpointEvery))
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("recovering manifest: %w", err)
	}
	closers = append(closers, manifest.Close)
	logger.Debug("manifest recovered: %d documents at seq %d", manifest.Len(), manifest.LastSeq())

	store, err := sqlite.NewStore(filepath.Join(root, indexDir))
	if err != nil {
		return fail(err)
	}
	index, err := store.VectorIndex(ctx)
	if err != nil {
		_ = store.Close()
		return fail(fmt.Errorf("opening index: %w", err))
	}
	closers = append(closers, index.Close)

	aiResult, err := ai.Init(ctx, settings)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() error {
		aiResult.Close()
		return nil
	})

	extractor, err := pdf.NewExtractor(settings.Extraction, nil, tmp)
	if err != nil {
		return fail(err)
	}
	chunks := chunker.New(
		chunker.WithChunkSize(settings.Chunk.MaxChars),
		chunker.WithOverlap(settings.Chunk.Overlap),
	)

	ingest := services.NewIngestService(manifest, blobs, extractor, chunks, aiResult.EmbeddingService, index,
		services.WithIngestSettings(settings.Ingest),
		services.WithEmbeddingBatch(settings.Embedding.BatchSize, settings.Embedding.RateLimit),
	)
	search := services.NewSearchService(manifest, index, aiResult.EmbeddingService)
	prompts := file.NewPromptStore(filepath.Join(root, file.PromptDir))

	svc := &cli.Services{
		Ingest:      ingest,
		Search:      search,
		Answer:      services.NewAnswerService(search, aiResult.LLMService, prompts),
		Document:    services.NewDocumentService(manifest, index),
		Export:      services.NewExportService(manifest, blobs),
		Maintenance: services.NewMaintenanceService(root, manifest, blobs, index, ingest),
		Settings:    settingsService,
		Warnings:    aiResult.Warnings,
		Close:       closeAll,
	}
	return &vault{svc: svc, manifest: manifest}, nil
}
