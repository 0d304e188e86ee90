package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"govhub/api/internal/app"
	"govhub/api/internal/archive"
	"govhub/api/internal/cache"
	"govhub/api/internal/config"
	"govhub/api/internal/proposal"
	"govhub/api/internal/repo"
	"govhub/api/internal/search"
	"govhub/api/internal/store"
	"govhub/api/internal/tenant"
	"govhub/api/internal/votes"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolLimits{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	liveStore := store.NewLiveStore(db)

	var snapshotCache *cache.RedisCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		snapshotCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer snapshotCache.Close()
	}

	var archiveClient *archive.Client
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archiveClient, err = archive.New(ctx, archive.Options{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Fatalf("archive store connection failed: %v", err)
		}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgSearch(liveStore))
	go seedSearchIndex(liveStore, searchService)

	registry := proposal.DefaultRegistry()
	factory := proposal.NewFactory(registry)

	repos := repo.NewFactory(func(tc tenant.Config) (repo.Repository, error) {
		if tc.Archived {
			if archiveClient == nil {
				return nil, fmt.Errorf("tenant %s is archived but no archive store is configured", tc.Slug)
			}
			var snapCache repo.SnapshotCache
			if snapshotCache != nil {
				snapCache = snapshotCache
			}
			return repo.NewArchiveRepository(archiveClient, snapCache, factory, tc), nil
		}
		return repo.NewLiveRepository(liveStore, factory, tc), nil
	})

	var archiveVotes votes.ArchiveVotes
	if archiveClient != nil {
		archiveVotes = archiveClient
	}
	reconciler := votes.NewReconciler(liveStore, archiveVotes, repos, factory)

	var archiveNonVoters app.ArchiveNonVoters
	if archiveClient != nil {
		archiveNonVoters = archiveClient
	}
	service := app.NewService(app.ServiceDeps{
		Repos:            repos,
		Votes:            reconciler,
		NonVoters:        liveStore,
		ArchiveNonVoters: archiveNonVoters,
		Search:           searchService,
		DB:               db,
		AdminToken:       cfg.AdminToken,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("GovHub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

const seedBatchLimit = 1000

// seedSearchIndex pushes each live tenant's proposals into the search
// index on boot so Meilisearch catches up after downtime. Failures are
// logged only: the Postgres fallback keeps search usable.
func seedSearchIndex(liveStore *store.LiveStore, searchService *search.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, tc := range tenant.All() {
		if tc.Archived {
			continue
		}
		payloads, err := liveStore.ListProposals(ctx, tc.Slug, store.ProposalFilter{Limit: seedBatchLimit})
		if err != nil {
			log.Printf("search seed for %s: %v", tc.Slug, err)
			continue
		}
		records := make([]search.ProposalRecord, 0, len(payloads))
		for _, p := range payloads {
			records = append(records, search.ProposalRecord{
				Key:         search.RecordKey(tc.Slug, p.ID),
				ID:          p.ID,
				Tenant:      tc.Slug,
				Title:       proposal.DeriveTitle(p.Title, p.Description),
				Description: p.Description,
				Type:        string(p.Type),
			})
		}
		searchService.IndexProposals(records)
	}
}
