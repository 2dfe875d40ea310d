package router

import (
	"github.com/breadjournal/server/internal/application"
	"github.com/breadjournal/server/internal/container"
	pginfra "github.com/breadjournal/server/internal/infrastructure/postgres"
	handlers "github.com/breadjournal/server/internal/interface/http"
	"github.com/breadjournal/server/internal/router/modules"
)

func buildAuthModule() *modules.AuthModule {
	cfg := container.GetConfig()

	users := pginfra.NewUserRepository(container.GetPGPool())
	codes := pginfra.NewCodeRepository(container.GetPGPool())

	// Keep the interface nil when no publisher exists, so dispatch skips
	// cleanly instead of calling through a typed-nil pointer.
	var pub application.EmailPublisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	codeMgr := application.NewCodeManager(
		codes,
		pub,
		container.GetLogger(),
		cfg.AppName,
		cfg.CodeTTL,
		cfg.ResendCooldown,
		cfg.MailSendEnabled,
	)
	svc := application.NewAuthService(users, codeMgr, container.GetJWT(), container.GetLogger())
	handler := handlers.NewAuthHandler(svc, container.GetLogger())

	return modules.NewAuthModule(handler, container.GetJWT())
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildAuthModule())
}
