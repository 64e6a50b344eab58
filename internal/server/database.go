package server

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	repo "github.com/medflow/ocr-service/internal/repository"
)

// ConnectDB opens the result store and checks it responds.
func ConnectDB(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("connecting to database", zap.String("path", path))
	db, err := repo.Open(ctx, path, logger)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return nil, err
	}
	if err := PingDB(ctx, db, logger, 3*time.Second); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *sql.DB, logger *zap.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := repo.HealthCheck(ctx, db, timeout); err != nil {
		logger.Error("database ping failed", zap.Error(err))
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
