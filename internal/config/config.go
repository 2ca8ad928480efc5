package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Supported evaluator providers.
const (
	EvaluatorNone   = "none"
	EvaluatorHTTP   = "http"
	EvaluatorGemini = "gemini"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"challenge-engine"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	StoreDriver             string        `env:"STORE_DRIVER" envDefault:"postgres"`

	Postgres  Postgres
	Redis     Redis
	Schedule  Schedule
	Ranking   Ranking
	Grading   Grading
	Evaluator Evaluator
	Content   Content
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders a pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis is optional. An empty address disables the tick lease and event publishing.
type Redis struct {
	Addr          string `env:"REDIS_ADDR" envDefault:""`
	DB            int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize      int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	EventsChannel string `env:"REDIS_EVENTS_CHANNEL" envDefault:"challenge:events"`
}

// Schedule governs the lifecycle tick and daily window derivation.
type Schedule struct {
	TickInterval      time.Duration `env:"SCHEDULE_TICK_INTERVAL" envDefault:"1m"`
	TickConcurrency   int           `env:"SCHEDULE_TICK_CONCURRENCY" envDefault:"4"`
	TickLeaseTTL      time.Duration `env:"SCHEDULE_TICK_LEASE_TTL" envDefault:"30s"`
	Location          string        `env:"SCHEDULE_LOCATION" envDefault:"UTC"`
	WindowStartOffset time.Duration `env:"SCHEDULE_WINDOW_START_OFFSET" envDefault:"9h"`
	WindowEndOffset   time.Duration `env:"SCHEDULE_WINDOW_END_OFFSET" envDefault:"21h"`
	AutoPost          bool          `env:"SCHEDULE_AUTO_POST" envDefault:"true"`
}

// Ranking holds the time bonus curve for the daily challenge variant.
type Ranking struct {
	MinMinutes int     `env:"RANKING_BONUS_MIN_MINUTES" envDefault:"5"`
	MaxMinutes int     `env:"RANKING_BONUS_MAX_MINUTES" envDefault:"720"`
	MaxBonus   float64 `env:"RANKING_MAX_BONUS" envDefault:"5"`
}

// Grading bounds the external evaluator call.
type Grading struct {
	EvaluatorTimeout time.Duration `env:"GRADING_EVALUATOR_TIMEOUT" envDefault:"8s"`
}

// Evaluator configures the answer evaluator backend.
type Evaluator struct {
	Provider     string        `env:"EVALUATOR_PROVIDER" envDefault:"none"`
	URL          string        `env:"EVALUATOR_URL" envDefault:""`
	APIKey       string        `env:"EVALUATOR_API_KEY" envDefault:""`
	GeminiAPIKey string        `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	HTTPTimeout  time.Duration `env:"EVALUATOR_HTTP_TIMEOUT" envDefault:"10s"`
}

// Content configures the daily content generator.
type Content struct {
	GeneratorURL string        `env:"CONTENT_GENERATOR_URL" envDefault:""`
	GeneratorKey string        `env:"CONTENT_GENERATOR_API_KEY" envDefault:""`
	HTTPTimeout  time.Duration `env:"CONTENT_HTTP_TIMEOUT" envDefault:"6s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgres parses only the Postgres section. The migrator uses it so it
// does not depend on the rest of the service configuration.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.Parse(&pg); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	if err := pg.validate(); err != nil {
		return Postgres{}, err
	}
	return pg, nil
}

func (p Postgres) validate() error {
	if p.User == "" || p.Database == "" {
		return fmt.Errorf("PG_USER and PG_DATABASE must be configured for the postgres store")
	}
	return nil
}

// LoadLocation resolves the configured schedule time zone.
func (s Schedule) LoadLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return nil, fmt.Errorf("load schedule location %q: %w", s.Location, err)
	}
	return loc, nil
}

func (c *App) validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if err := c.Postgres.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Evaluator.Provider {
	case EvaluatorNone:
	case EvaluatorHTTP:
		if c.Evaluator.URL == "" {
			return fmt.Errorf("EVALUATOR_URL must be configured for the http evaluator")
		}
	case EvaluatorGemini:
		if c.Evaluator.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be configured for the gemini evaluator")
		}
	default:
		return fmt.Errorf("unknown EVALUATOR_PROVIDER %q", c.Evaluator.Provider)
	}

	if c.Schedule.WindowEndOffset < c.Schedule.WindowStartOffset {
		return fmt.Errorf("window end offset %s is before start offset %s",
			c.Schedule.WindowEndOffset, c.Schedule.WindowStartOffset)
	}
	if c.Ranking.MaxMinutes <= c.Ranking.MinMinutes {
		return fmt.Errorf("ranking max minutes must exceed min minutes")
	}
	return nil
}
