package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mlhmz/hubspot-booking-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a deployment does not exist
var ErrNotFound = errors.New("deployment not found")

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
	logger *slog.Logger
}

// New creates a new database connection
func New(dbPath string, log *slog.Logger) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Configure GORM logger to be quiet (we use slog instead)
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Debug("Database connection established", "path", dbPath)

	if err := db.AutoMigrate(&models.Deployment{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate schemas: %w", err)
	}

	return &DB{
		DB:     db,
		logger: log,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DeploymentRepository provides database operations for Deployment
type DeploymentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDeploymentRepository creates a new deployment repository
func NewDeploymentRepository(db *DB) *DeploymentRepository {
	return &DeploymentRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

// Create inserts a new deployment into the database
func (r *DeploymentRepository) Create(d *models.Deployment) error {
	result := r.db.Create(d)
	if result.Error != nil {
		r.logger.Error("Failed to create deployment in database", "error", result.Error)
		return result.Error
	}
	r.logger.Debug("Deployment created in database", "id", d.ID, "image", d.Image)
	return nil
}

// FindByID retrieves a deployment by its ID
func (r *DeploymentRepository) FindByID(id string) (*models.Deployment, error) {
	var d models.Deployment
	result := r.db.First(&d, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to find deployment by ID", "id", id, "error", result.Error)
		return nil, result.Error
	}
	return &d, nil
}

// FindAll retrieves all deployments, newest first
func (r *DeploymentRepository) FindAll() ([]*models.Deployment, error) {
	var deployments []*models.Deployment
	result := r.db.Order("created_at desc").Find(&deployments)
	if result.Error != nil {
		r.logger.Error("Failed to find all deployments", "error", result.Error)
		return nil, result.Error
	}
	return deployments, nil
}

// Update updates a deployment in the database
func (r *DeploymentRepository) Update(d *models.Deployment) error {
	result := r.db.Save(d)
	if result.Error != nil {
		r.logger.Error("Failed to update deployment", "id", d.ID, "error", result.Error)
		return result.Error
	}
	r.logger.Debug("Deployment updated in database", "id", d.ID, "status", d.Status)
	return nil
}
