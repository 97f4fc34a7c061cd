package main

import (
	"context"
	"os"

	"civil-erp/internal/config"
	"civil-erp/internal/database"
	"civil-erp/internal/logger"
	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/internal/service"
	"civil-erp/pkg/apperror"
)

const (
	adminEmail           = "admin@civilcorp.com"
	defaultAdminPassword = "admin123"
)

// seed creates the demo administrator when missing and installs the system roles.
func main() {
	log := logger.New("info", "text")
	cfg, err := config.Load(log)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditService := service.NewAuditService(repository.NewAuditRepository(db), log)
	resolver := service.NewPermissionResolver(roleRepo)
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	users := service.NewUserService(userRepo, resolver, tokens)
	roles := service.NewRoleService(roleRepo, userRepo, repository.NewTransactionManager(db), auditService, log)

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	_, err = users.Register(ctx, service.RegisterRequest{
		Email:      adminEmail,
		Password:   password,
		Name:       "Administrator",
		Role:       model.UserRoleAdmin,
		Department: "Management",
	})
	switch {
	case err == nil:
		log.WithField("email", adminEmail).Info("admin user created")
	case apperror.KindOf(err) == apperror.Conflict:
		log.WithField("email", adminEmail).Info("admin user already exists")
	default:
		log.WithError(err).Fatal("failed to create admin user")
	}

	admin, err := userRepo.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.WithError(err).Fatal("failed to load admin user")
	}
	res, err := roles.InitSystemRoles(ctx, &admin.ID)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize system roles")
	}
	log.WithField("created", res.Created).Info("system roles initialized")
}
