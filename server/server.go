package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/nudgelabs/nudged/server/auth"
	"github.com/nudgelabs/nudged/server/auth/key"
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/dispatch"
	"github.com/nudgelabs/nudged/server/gstorage"
	"github.com/nudgelabs/nudged/server/logger"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/query"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/server/session"
	"github.com/nudgelabs/nudged/server/twilio"
	"github.com/nudgelabs/nudged/server/work"
	"github.com/nudgelabs/nudged/shared"
	"gorm.io/gorm"
)

var logg = logger.NewLogger()

type app struct {
	db           *gorm.DB
	registry     *repos.Registry
	queries      *query.Bindings
	authService  *auth.Service
	sessions     *session.Manager
	workerPool   *work.WorkerPoolAdapter
	dispatcher   *dispatch.Scheduler
	twilioClient *twilio.ClientWrapper
	imageStore   *gstorage.ImageStore
	authKeyPair  *key.KeyPair
	validate     *validator.Validate
}

// Start brings up the whole nudged server: database, worker pool,
// dispatch scheduler & the HTTP API. Blocks until SIGINT/SIGTERM.
func Start(config *shared.ServerConfig, devMode bool) {
	validate := validator.New()
	fatalOnError(RegisterValidators(validate))
	fatalOnError(validate.Struct(config))

	db, err := models.Open(config.Postgres.Dsn)
	fatalOnError(err)

	authKeyPair, err := keyPairFromConfig(config, devMode)
	fatalOnError(err)

	registry := repos.NewRegistry(db)
	queries := query.NewBindings(registry, cache.NewStore())
	authService := auth.NewService(registry.Profiles, authKeyPair)
	sessions := session.NewManager(authService, registry.Profiles, logg)
	workerPool := work.NewWorkerAdapter(db, config.Nudged.Cron.TimeZone)
	twilioClient := twilio.NewClient(config.Twilio, config.Nudged.AppURL)

	dispatcher, err := dispatch.NewScheduler(registry, queries, workerPool, twilioClient, logg)
	fatalOnError(err)

	var imageStore *gstorage.ImageStore
	if fmt.Sprintf("%v", config.Google.Storage.EnableImageUploads) == "true" {
		imageStore, err = gstorage.NewImageStore(
			config.Google.ApplicationCredentials,
			config.Google.Storage.Bucket,
			config.Google.Storage.Prefix,
		)
		fatalOnError(err)
	}

	app := &app{
		db:           db,
		registry:     registry,
		queries:      queries,
		authService:  authService,
		sessions:     sessions,
		workerPool:   workerPool,
		dispatcher:   dispatcher,
		twilioClient: twilioClient,
		imageStore:   imageStore,
		authKeyPair:  authKeyPair,
		validate:     validate,
	}

	registerJobHandlers(workerPool, dispatcher)
	enqueueJobs(workerPool)

	sessions.Start()
	workerPool.Start()
	fatalOnError(dispatcher.ScheduleAllRecurringNudges())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", config.Nudged.Listener.Port),
		Handler: app.router(),
	}
	go serve(httpServer)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	cleanup(app, httpServer)
}

func (app *app) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, app.initialContextMiddleware)

	router.HandleFunc("/health", app.healthCheck).Methods("GET")
	router.HandleFunc("/.well-known/jwks.json", app.jwks).Methods("GET")

	router.HandleFunc("/signup", app.signUp).Methods("POST")
	router.HandleFunc("/login", app.logIn).Methods("POST")
	router.HandleFunc("/sms/webhook", app.smsWebhook).Methods("POST")

	protected := router.NewRoute().Subrouter()
	protected.Use(app.protectedRouteMiddleware)

	protected.HandleFunc("/logout", app.logOut).Methods("POST")
	protected.HandleFunc("/session", app.currentSession).Methods("GET")

	protected.HandleFunc("/profile", app.findProfile).Methods("GET")
	protected.HandleFunc("/profile", app.updateProfile).Methods("PUT")

	protected.HandleFunc("/contacts", app.listContacts).Methods("GET")
	protected.HandleFunc("/contacts", app.createContact).Methods("POST")
	protected.HandleFunc("/contacts/{id}", app.findContact).Methods("GET")
	protected.HandleFunc("/contacts/{id}", app.updateContact).Methods("PUT")
	protected.HandleFunc("/contacts/{id}", app.deleteContact).Methods("DELETE")

	protected.HandleFunc("/nudge-targets", app.listNudgeTargets).Methods("GET")
	protected.HandleFunc("/nudge-targets", app.createNudgeTarget).Methods("POST")
	protected.HandleFunc("/nudge-targets/{id}", app.findNudgeTarget).Methods("GET")
	protected.HandleFunc("/nudge-targets/{id}", app.updateNudgeTarget).Methods("PUT")
	protected.HandleFunc("/nudge-targets/{id}", app.deleteNudgeTarget).Methods("DELETE")
	protected.HandleFunc("/nudge-targets/{id}/contacts/{contactID}", app.attachContact).Methods("POST")
	protected.HandleFunc("/nudge-targets/{id}/contacts/{contactID}", app.detachContact).Methods("DELETE")
	protected.HandleFunc("/nudge-targets/{id}/image", app.uploadNudgeTargetImage).Methods("POST")

	protected.HandleFunc("/nudges", app.listNudges).Methods("GET")
	protected.HandleFunc("/nudges", app.createNudge).Methods("POST")
	protected.HandleFunc("/my/nudges", app.listMyNudges).Methods("GET")
	protected.HandleFunc("/nudges/{id}", app.findNudge).Methods("GET")
	protected.HandleFunc("/nudges/{id}", app.updateNudge).Methods("PUT")
	protected.HandleFunc("/nudges/{id}", app.deleteNudge).Methods("DELETE")
	protected.HandleFunc("/nudges/{id}/upvote", app.upvoteNudge).Methods("POST")
	protected.HandleFunc("/nudges/{id}/upvote", app.removeNudgeUpvote).Methods("DELETE")

	protected.HandleFunc("/jobs/stats", app.jobsStats).Methods("GET")

	return router
}

func keyPairFromConfig(config *shared.ServerConfig, devMode bool) (*key.KeyPair, error) {
	pem := strings.TrimSpace(config.Nudged.PrivateKeyPem)
	if pem != "" {
		return key.NewKeyPairFromRSAPrivateKeyPem([]byte(pem))
	}

	if !devMode {
		return nil, fmt.Errorf("nudged.privateKeyPem is required outside of dev mode")
	}

	logg.Warn("No privateKeyPem configured, using an ephemeral key pair. Tokens won't survive a restart")
	return key.NewEphemeralKeyPair()
}

func serve(server *http.Server) {
	logg.Infof("Nudged server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(app *app, server *http.Server) {
	app.workerPool.Stop()
	app.sessions.Stop()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Nudged server shutdown failed: %+s", err)
	}

	logg.Infof("Nudged server stopped properly")
}
