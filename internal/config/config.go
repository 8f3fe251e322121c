package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds everything the bot reads from the environment. A .env
// file in the working directory is loaded first when present.
type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN,required,notEmpty"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"data/kitasan.db"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Snapshot retention and stream refresh knobs.
	SnapshotRetention time.Duration `env:"SNAPSHOT_RETENTION" envDefault:"168h"`
	RetentionCron     string        `env:"RETENTION_CRON" envDefault:"0 0 */6 * * *"`
	RefreshAttempts   int           `env:"REFRESH_ATTEMPTS" envDefault:"3"`
	RefreshBackoff    time.Duration `env:"REFRESH_BACKOFF" envDefault:"2s"`
}

// Load reads the configuration from the environment, preferring an
// optional .env file.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if cfg.RefreshAttempts < 1 {
		return nil, errors.New("REFRESH_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}
