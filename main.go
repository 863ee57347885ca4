package main

import (
	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/config"
	"github.com/cph-cachet/carp-portal/internal/database"
	"github.com/cph-cachet/carp-portal/internal/handlers"
	logger "github.com/cph-cachet/carp-portal/internal/logging"
	"github.com/cph-cachet/carp-portal/internal/participantdata"
	"github.com/cph-cachet/carp-portal/internal/repository"
	"github.com/cph-cachet/carp-portal/internal/router"
	"github.com/cph-cachet/carp-portal/internal/services"

	"go.uber.org/zap"
)

func main() {
	if err := config.Init("."); err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	conf := config.Get()

	// Initialize Logger
	log, err := logger.Init(".", conf.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	config.Watch(log)

	// The audit trail is optional; the portal keeps serving without it.
	var (
		audits services.AuditRecorder
		lister handlers.AuditLister
	)
	if err := database.Init(conf.Database, conf.Logging.Level, log); err != nil {
		log.Warn("Submission audit trail disabled", zap.Error(err))
	} else {
		repo := repository.NewSubmissionAudits(database.DB)
		audits, lister = repo, repo
	}

	registry := participantdata.DefaultRegistry()
	if path := conf.Forms.InputTypes; path != "" {
		registry, err = participantdata.LoadRegistry(path)
		if err != nil {
			log.Fatal("Failed to load input type registry", zap.Error(err), zap.String("path", path))
		}
	}

	api := carp.NewCachedClient(carp.NewClient(conf.Carp, log), conf.Carp.CacheTTL, log)
	interpreter := participantdata.NewInterpreter(log)
	dispatcher := participantdata.NewDispatcher(registry, log)

	r := router.Setup(log, conf.Server, router.Handlers{
		Participants: handlers.NewParticipantHandler(log,
			services.NewParticipantDataService(api, interpreter, audits, log), dispatcher),
		Deployments: handlers.NewDeploymentHandler(log, services.NewDeploymentService(api, log), lister),
		Health:      handlers.NewHealthHandler(log, database.DB),
	})

	// Start the Gin server
	port := ":" + conf.Server.Port
	log.Info("Server listening on http://localhost"+port, zap.String("carp", conf.Carp.BaseURL))
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
