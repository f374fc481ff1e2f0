package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig is one endpoint of the catalog database. The catalog runs
// behind a writer and an optional read replica; an unset reader host means
// reads go to the writer.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ConnectionPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConnectionPoolConfig() *ConnectionPoolConfig {
	return &ConnectionPoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// loadDatabaseConfig reads POSTGRES_<ROLE>_* variables, taking unset values
// from fallback.
func loadDatabaseConfig(role string, fallback DatabaseConfig) *DatabaseConfig {
	key := func(name string) string { return "POSTGRES_" + role + "_" + name }
	return &DatabaseConfig{
		Host:     getEnvWithDefault(key("HOST"), fallback.Host),
		Port:     getEnvWithDefault(key("PORT"), fallback.Port),
		User:     getEnvWithDefault(key("USER"), fallback.User),
		Password: getEnvWithDefault(key("PASSWORD"), fallback.Password),
		DBName:   getEnvWithDefault(key("DB_NAME"), fallback.DBName),
		SSLMode:  getEnvWithDefault(key("SSL_MODE"), fallback.SSLMode),
	}
}

// WriterConfig exposes the writer settings for tools that open their own
// connection, such as the migrator and the provisioning pool.
func WriterConfig() *DatabaseConfig {
	return getWriterConfig()
}

func getWriterConfig() *DatabaseConfig {
	return loadDatabaseConfig("WRITER", DatabaseConfig{
		Host:    "localhost",
		Port:    "5432",
		User:    "postgres",
		DBName:  "tenant_platform",
		SSLMode: "disable",
	})
}

func getReaderConfig() *DatabaseConfig {
	return loadDatabaseConfig("READER", *getWriterConfig())
}

func getConnectionPoolConfig() *ConnectionPoolConfig {
	defaults := DefaultConnectionPoolConfig()
	return &ConnectionPoolConfig{
		MaxOpenConns:    getEnvIntWithDefault("DB_MAX_OPEN_CONNS", defaults.MaxOpenConns),
		MaxIdleConns:    getEnvIntWithDefault("DB_MAX_IDLE_CONNS", defaults.MaxIdleConns),
		ConnMaxLifetime: getEnvDurationWithDefault("DB_CONN_MAX_LIFETIME", defaults.ConnMaxLifetime),
	}
}

// DSN renders the keyword/value connection string understood by both pgx
// and lib/pq.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// gormLogLevel maps GORM_LOG_LEVEL to a gorm log level. SQL echo is off
// unless asked for.
func gormLogLevel() logger.LogLevel {
	switch getEnvWithDefault("GORM_LOG_LEVEL", "warn") {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func openDatabase(config *DatabaseConfig, pool *ConnectionPoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel()),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%s/%s: %w", config.Host, config.Port, config.DBName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// DatabaseConnections holds the writer and reader handles of the catalog.
type DatabaseConnections struct {
	Writer *gorm.DB
	Reader *gorm.DB
}

func NewDatabaseConnections() (*DatabaseConnections, error) {
	pool := getConnectionPoolConfig()

	writer, err := openDatabase(getWriterConfig(), pool)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	reader, err := openDatabase(getReaderConfig(), pool)
	if err != nil {
		conns := &DatabaseConnections{Writer: writer}
		return nil, multierr.Append(fmt.Errorf("reader: %w", err), conns.Close())
	}

	return &DatabaseConnections{Writer: writer, Reader: reader}, nil
}

func (dc *DatabaseConnections) Close() error {
	var err error
	for name, db := range map[string]*gorm.DB{"writer": dc.Writer, "reader": dc.Reader} {
		if db == nil {
			continue
		}
		sqlDB, dbErr := db.DB()
		if dbErr == nil {
			dbErr = sqlDB.Close()
		}
		if dbErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close %s connection: %w", name, dbErr))
		}
	}
	return err
}
