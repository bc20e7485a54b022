package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/emrgen/plm/internal/cache"
	"github.com/emrgen/plm/internal/compress"
	"github.com/emrgen/plm/internal/config"
	"github.com/emrgen/plm/internal/jobs"
	"github.com/emrgen/plm/internal/queue"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/service"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/store"
	"github.com/gobuffalo/packr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const shutdownTimeout = 10 * time.Second

// NewHandler builds the routed, CORS enabled HTTP handler over the services.
func NewHandler(svc Services) http.Handler {
	h := &handlers{
		parts:     svc.Parts,
		revisions: svc.Revisions,
		bom:       svc.Bom,
		accounts:  svc.Accounts,
		activity:  svc.Activity,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.health)

	mux.HandleFunc("POST /codici/{$}", h.requireAccount(h.createPart))
	mux.HandleFunc("GET /codici/{$}", h.listParts)
	mux.HandleFunc("GET /codici/{code}", h.getPart)
	mux.HandleFunc("GET /codici/{code}/dettaglio", h.getPart)

	mux.HandleFunc("POST /distinte/{$}", h.requireAccount(h.mergeComponent))
	mux.HandleFunc("GET /distinte/{code}", h.listComponents)

	mux.HandleFunc("POST /revisioni/{$}", h.requireAccount(h.createRevision))
	mux.HandleFunc("GET /revisioni/{code}", h.listRevisions)
	mux.HandleFunc("POST /revisioni/{code}/{index}/rilascio", h.requireAccount(h.releaseRevision))
	mux.HandleFunc("POST /revisioni/{code}/{index}/stato", h.requireAccount(h.changeState))
	mux.HandleFunc("GET /revisioni/{code}/{index}/certificazione", h.getCertification)
	mux.HandleFunc("POST /revisioni/{code}/{index}/certificazione", h.requireAccount(h.saveCertification))
	mux.HandleFunc("GET /revisioni/{code}/{index}/files", h.listRevisionFiles)
	mux.HandleFunc("POST /revisioni/{code}/{index}/files", h.requireAccount(h.uploadRevisionFiles))
	mux.HandleFunc("GET /revisioni/{code}/{index}/files/{name}", h.downloadRevisionFile)

	mux.HandleFunc("POST /files/upload", h.requireAccount(h.uploadPartFile))
	mux.HandleFunc("GET /files/{code}", h.listPartFiles)

	mux.HandleFunc("GET /stati/{$}", h.listStates)
	mux.HandleFunc("GET /form/campi", h.listFormFields)

	mux.HandleFunc("GET /auth/accounts", h.accountHierarchy)
	mux.HandleFunc("POST /auth/accounts", h.createAccount)
	mux.HandleFunc("GET /auth/policy", h.passwordPolicy)
	mux.HandleFunc("POST /auth/login", h.login)

	mux.HandleFunc("GET /attivita/{$}", h.listActivities)

	mux.Handle("GET /metrics", promhttp.Handler())
	openapiDocs := packr.NewBox("../../docs/v1")
	docsPath := "/docs/"
	mux.Handle("GET "+docsPath, http.StripPrefix(docsPath, http.FileServer(openapiDocs)))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"}, // All origins are allowed
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", service.AccountHeader},
	})

	return c.Handler(RequestTimeMiddleware(mux))
}

// Start wires storage, caches, publishers, services and jobs from cfg and
// serves HTTP until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx := context.Background()
	cfg.ConfigureLogging()

	db, err := config.GetDb(cfg)
	if err != nil {
		return err
	}
	plmStore := store.NewGormStore(db)
	if err := plmStore.Migrate(); err != nil {
		return err
	}

	reg, err := registry.New(cfg.Registry.Dir)
	if err != nil {
		return err
	}
	directory, err := registry.NewDirectory(filepath.Join(cfg.Registry.Dir, registry.AccountsFile))
	if err != nil {
		return err
	}

	blobs, err := storage.Open(ctx, storage.Config{
		Driver: storage.Driver(cfg.Storage.Driver),
		Root:   cfg.Storage.Root,
		S3: storage.S3Config{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			PathStyle: cfg.Storage.S3.PathStyle,
			Prefix:    cfg.Storage.S3.Prefix,
		},
	})
	if err != nil {
		return err
	}
	encoder, err := compress.New(cfg.Storage.Compression)
	if err != nil {
		return err
	}

	var components cache.ComponentCache = cache.NewNop()
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		components = cache.NewRedis(client)
		logrus.Infof("bom component cache on redis %s", cfg.Redis.Addr)
	}

	var publisher queue.ActivityPublisher = queue.NewNop()
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		kafka, err := queue.NewKafka(strings.Join(brokers, ","), cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		publisher = kafka
		logrus.Infof("publishing activity to kafka topic %s", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	files := service.NewFileStore(blobs, encoder)
	activity := service.NewActivityService(plmStore, publisher)
	revisions := service.NewRevisionService(plmStore, reg, files, activity, cfg.States.Strict)
	handler := NewHandler(Services{
		Parts:     service.NewPartService(plmStore, revisions, files, activity),
		Revisions: revisions,
		Bom:       service.NewBomService(plmStore, components, activity),
		Accounts:  service.NewAccountService(plmStore, directory, reg),
		Activity:  activity,
	})

	executor := jobs.NewTaskExecutor(
		jobs.NewReloadTask(cfg.Jobs.Reload, reg, directory),
		jobs.NewSweepTask(cfg.Jobs.Sweep, cfg.Jobs.SweepGrace, plmStore, blobs),
	)
	if err := executor.Start(); err != nil {
		return err
	}
	defer executor.Stop()

	httpAddr := cfg.HTTPAddr()
	rl, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}

	restServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// make sure to wait for the server to stop before exiting
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting plm server on: ", httpAddr)
		logrus.Info("click on the following link to view the API documentation: http://localhost", httpAddr, "/docs/")
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting plm server: %v", err)
			}
		}
		logrus.Infof("plm server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error stopping plm server: %v", err)
	}

	wg.Wait()

	return nil
}
