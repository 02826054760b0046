package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/red-tetris-backend/internal/leaderboard"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
)

const EnvPrefix = "TETRIS"

// LoadDotEnv reads KEY=value pairs from the given files (".env" when none
// are named) into the process environment. Missing files are fine; values
// already in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// BindEnv lets TETRIS_<FLAG_NAME> set any flag the command line left alone.
func BindEnv(flags *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

type Server struct {
	Addr              string
	LogLevel          string
	Dev               bool
	ReadTimeout       time.Duration
	GraceDelay        time.Duration
	LeaderboardDriver string
	SQLitePath        string
	DatabaseURL       string
	RulesPath         string
	ShutdownTimeout   time.Duration
}

func (c *Server) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Addr, "addr", "a", ":8080", "address to listen on (env: TETRIS_ADDR)")
	flags.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: TETRIS_LOG_LEVEL)")
	flags.BoolVar(&c.Dev, "dev", false, "human-readable console logs (env: TETRIS_DEV)")
	flags.DurationVar(&c.ReadTimeout, "read-timeout", 60*time.Second, "drop a socket idle for this long (env: TETRIS_READ_TIMEOUT)")
	flags.DurationVar(&c.GraceDelay, "grace-delay", 5*time.Second, "keep an empty room this long before deleting it (env: TETRIS_GRACE_DELAY)")
	flags.StringVar(&c.LeaderboardDriver, "leaderboard-driver", leaderboard.DriverMemory, "memory, sqlite or postgres (env: TETRIS_LEADERBOARD_DRIVER)")
	flags.StringVar(&c.SQLitePath, "sqlite-path", "~/.red-tetris/leaderboard.db", "sqlite database file (env: TETRIS_SQLITE_PATH)")
	flags.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string (env: TETRIS_DATABASE_URL)")
	flags.StringVar(&c.RulesPath, "rules", "", "YAML file overriding the built-in game rules (env: TETRIS_RULES)")
	flags.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for graceful shutdown (env: TETRIS_SHUTDOWN_TIMEOUT)")
}

func (c *Server) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("--addr must not be empty"))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid --log-level %q", c.LogLevel))
	}
	if c.ReadTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("--read-timeout must be positive, got %s", c.ReadTimeout))
	}
	if c.GraceDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("--grace-delay must not be negative, got %s", c.GraceDelay))
	}
	switch c.LeaderboardDriver {
	case leaderboard.DriverMemory:
	case leaderboard.DriverSQLite:
		if c.SQLitePath == "" {
			err = multierr.Append(err, errors.New("--sqlite-path is required for the sqlite driver"))
		}
	case leaderboard.DriverPostgres:
		if c.DatabaseURL == "" {
			err = multierr.Append(err, errors.New("--database-url is required for the postgres driver"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown --leaderboard-driver %q", c.LeaderboardDriver))
	}
	return err
}

type Bot struct {
	URL        string
	Room       string
	Name       string
	MaxPlayers int
	StartAt    int
	Think      time.Duration
	Seed       uint64
	LogLevel   string
	Dev        bool
	RulesPath  string
}

func (c *Bot) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.URL, "url", "u", "ws://localhost:8080/ws", "server websocket URL (env: TETRIS_URL)")
	flags.StringVarP(&c.Room, "room", "r", "lobby", "room to join (env: TETRIS_ROOM)")
	flags.StringVarP(&c.Name, "name", "n", "bot", "username, 1-12 characters (env: TETRIS_NAME)")
	flags.IntVar(&c.MaxPlayers, "max-players", 0, "room capacity if this bot creates it; 0 uses the server default (env: TETRIS_MAX_PLAYERS)")
	flags.IntVar(&c.StartAt, "start-at", 2, "as host, start once this many players are in the room; 0 never starts (env: TETRIS_START_AT)")
	flags.DurationVar(&c.Think, "think", 120*time.Millisecond, "pause between the bot's key presses (env: TETRIS_THINK)")
	flags.Uint64Var(&c.Seed, "seed", 0, "random seed for garbage holes; 0 picks one (env: TETRIS_SEED)")
	flags.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: TETRIS_LOG_LEVEL)")
	flags.BoolVar(&c.Dev, "dev", false, "human-readable console logs (env: TETRIS_DEV)")
	flags.StringVar(&c.RulesPath, "rules", "", "YAML file overriding the built-in game rules (env: TETRIS_RULES)")
}

func (c *Bot) Validate() error {
	var err error
	u, perr := url.Parse(c.URL)
	if perr != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		err = multierr.Append(err, fmt.Errorf("--url must be a ws:// or wss:// URL, got %q", c.URL))
	}
	if c.Room == "" {
		err = multierr.Append(err, errors.New("--room must not be empty"))
	}
	if _, ok := match.ValidName(c.Name); !ok {
		err = multierr.Append(err, fmt.Errorf("--name must be 1-%d characters, got %q", match.MaxNameLength, c.Name))
	}
	if c.MaxPlayers != 0 && (c.MaxPlayers < match.MinCapacity || c.MaxPlayers > match.MaxCapacity) {
		err = multierr.Append(err, fmt.Errorf("--max-players must be %d-%d, got %d", match.MinCapacity, match.MaxCapacity, c.MaxPlayers))
	}
	if c.StartAt < 0 || c.StartAt > match.MaxCapacity {
		err = multierr.Append(err, fmt.Errorf("--start-at must be 0-%d, got %d", match.MaxCapacity, c.StartAt))
	}
	if c.Think < 0 {
		err = multierr.Append(err, fmt.Errorf("--think must not be negative, got %s", c.Think))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid --log-level %q", c.LogLevel))
	}
	return err
}
