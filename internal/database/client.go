// Package database provides the GORM connection helper shared by the
// results store and the query surfaces built on top of it.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oceanobs/moorproc/internal/log"
	"go.uber.org/zap"
)

// Client holds the connection to the results database
type Client struct {
	connectionString string
	DB               *gorm.DB // Exported so it can be accessed from other packages
	logger           *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(connectionString string, logger *zap.SugaredLogger) *Client {
	return &Client{
		connectionString: connectionString,
		logger:           logger,
	}
}

// Connect connects to the results database
func (c *Client) Connect() error {
	var err error
	c.DB, err = CreateConnection(c.connectionString)
	return err
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,
		},
	)

	log.Info("connecting to results database...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a results database connection:", err)
		return nil, err
	}

	return db, nil
}
