package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"membersync/internal/config"
	"membersync/internal/constants"
	"membersync/internal/logger"
)

// Connections holds the store clients of the service. Redis is nil when it
// is not configured.
type Connections struct {
	Postgres *sql.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Redis    *redis.Client
}

// OpenConnections connects and pings every configured store. On failure the
// stores opened so far are closed again.
func OpenConnections(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (conns *Connections, err error) {
	conns = &Connections{}
	defer func() {
		if err != nil {
			conns.Close(context.WithoutCancel(ctx))
			conns = nil
		}
	}()

	if conns.Postgres, err = OpenPostgres(ctx, cfg.Postgres); err != nil {
		return conns, err
	}
	log.Infow("PostgreSQL connected", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)

	if conns.Mongo, err = OpenMongo(ctx, cfg.MongoDB); err != nil {
		return conns, err
	}
	name := cfg.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	conns.MongoDB = conns.Mongo.Database(name)
	log.Infow("MongoDB connected", "database", name)

	if cfg.Redis.Host == "" {
		return conns, nil
	}
	if conns.Redis, err = OpenRedis(ctx, cfg.Redis); err != nil {
		return conns, err
	}
	log.Infow("Redis connected", "host", cfg.Redis.Host)
	return conns, nil
}

// Close releases every open client and returns the errors it met.
func (c *Connections) Close(ctx context.Context) []error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}
	return errs
}

// PostgresDSN renders the postgres section as a connection URL.
func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func OpenMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
