package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/repository"
	"github.com/noah-isme/timetable-admin/internal/service"
	"github.com/noah-isme/timetable-admin/pkg/cache"
	"github.com/noah-isme/timetable-admin/pkg/config"
	"github.com/noah-isme/timetable-admin/pkg/database"
	"github.com/noah-isme/timetable-admin/pkg/jobs"
	"github.com/noah-isme/timetable-admin/pkg/logger"
	"github.com/noah-isme/timetable-admin/pkg/signer"
)

const mailQueueBuffer = 256

// app holds the process wide resources shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	redis   *redis.Client
	gateway *database.Gateway
	metrics *service.MetricsService

	mailQueue   *jobs.Queue
	auth        *service.AuthService
	subjects    *service.SubjectService
	assignments *service.FacultyAssignmentService
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, db: db, metrics: service.NewMetricsService()}
	a.gateway = database.NewGateway(db, database.WithObserver(a.metrics))

	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.String("addr", cache.Options(cfg.Redis).Addr), zap.Error(err))
		} else {
			a.redis = client
		}
	}

	a.wire()
	return a, nil
}

func (a *app) wire() {
	cfg := a.cfg
	validate := service.NewValidator()

	users := repository.NewUserRepository(a.gateway)
	resets := repository.NewPasswordResetRepository(a.gateway)
	subjectRepo := repository.NewSubjectRepository(a.gateway)
	assignmentRepo := repository.NewFacultyAssignmentRepository(a.gateway)
	audit := repository.NewAuditRepository(a.gateway)

	store := repository.NewCacheRepository(a.redis, "timetable:")
	cacheSvc := service.NewCacheService(store, a.metrics, cfg.Cache.StatisticsTTL, a.logger)

	a.mailQueue = jobs.NewQueue("mail", service.MailJobHandler(service.NewLogMailer(a.logger)), jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		BufferSize: mailQueueBuffer,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     a.logger,
		Observer:   a.metrics,
	})
	mail := service.NewMailService(a.mailQueue, cfg.Mail.From, cfg.Mail.BaseURL, a.logger)

	a.auth = service.NewAuthService(users, resets, a.gateway, audit, mail,
		signer.New(cfg.Auth.TokenSecret, cfg.Auth.VerificationTTL), validate, a.logger,
		service.AuthConfig{
			JWTSecret:            cfg.JWT.Secret,
			JWTExpiry:            cfg.JWT.Expiration,
			Issuer:               cfg.JWT.Issuer,
			ResetTTL:             cfg.Auth.ResetTTL,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
			AllowedEmailDomains:  cfg.Auth.AllowedEmailDomains,
		})
	a.subjects = service.NewSubjectService(subjectRepo, assignmentRepo, a.gateway, audit, cacheSvc, a.metrics, validate, a.logger).
		WithPageSize(cfg.Pagination.DefaultSize)
	a.assignments = service.NewFacultyAssignmentService(assignmentRepo, users, subjectRepo, a.gateway, audit, cacheSvc, a.metrics, validate, a.logger)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
