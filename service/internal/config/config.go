// internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/engine"
)

// Config holds the server settings. Every field has a usable default.
type Config struct {
	Addr     string
	LogLevel logrus.Level

	// RedisURL enables the replay sink when set.
	RedisURL    string
	RedisPrefix string

	// DatabaseURL enables the Postgres results store when set.
	DatabaseURL string

	// SeatSecret signs seat tokens. A random key is used when empty.
	SeatSecret   string
	SeatTokenTTL time.Duration

	// BotEnginePath enables engine-backed computer opponents when set.
	BotEnginePath  string
	BotEngineArgs  []string
	BotMoveTimeout time.Duration

	OfferTimeout time.Duration
	// AutoAcceptDelay is how long the pass-and-play opponent waits before
	// accepting an offer.
	AutoAcceptDelay time.Duration
	// BotDrawThreshold is the evaluation at or below which the built-in
	// computer opponent accepts a draw.
	BotDrawThreshold float64

	Game engine.GameConfiguration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:             ":8080",
		LogLevel:         logrus.InfoLevel,
		RedisPrefix:      "wallwars",
		SeatTokenTTL:     24 * time.Hour,
		BotMoveTimeout:   30 * time.Second,
		OfferTimeout:     30 * time.Second,
		AutoAcceptDelay:  500 * time.Millisecond,
		BotDrawThreshold: -0.25,
		Game:             engine.DefaultConfiguration(),
	}
}

// Load reads the given .env files (".env" when none are given), then builds
// the configuration from WALLWARS_* variables. Variables already present in
// the environment win over file values. Malformed values keep their default
// and are logged as warnings.
func Load(log *logrus.Entry, files ...string) Config {
	if log == nil {
		log = logrus.WithField("component", "config")
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debugf("Config: no env file %s", f)
				continue
			}
			log.Warnf("Config: cannot read env file %s: %v", f, err)
		}
	}
	return FromEnv(os.LookupEnv, log)
}

// FromEnv builds the configuration from lookup.
func FromEnv(lookup func(string) (string, bool), log *logrus.Entry) Config {
	c := Default()
	p := parser{lookup: lookup, log: log}

	p.str("WALLWARS_ADDR", &c.Addr)
	if v, ok := p.get("WALLWARS_LOG_LEVEL"); ok {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			c.LogLevel = lvl
		} else {
			p.warn("WALLWARS_LOG_LEVEL", v, err)
		}
	}
	p.str("WALLWARS_REDIS_URL", &c.RedisURL)
	p.str("WALLWARS_REDIS_PREFIX", &c.RedisPrefix)
	p.str("WALLWARS_DATABASE_URL", &c.DatabaseURL)
	p.str("WALLWARS_SEAT_SECRET", &c.SeatSecret)
	p.duration("WALLWARS_SEAT_TOKEN_TTL", &c.SeatTokenTTL)
	p.str("WALLWARS_BOT_ENGINE", &c.BotEnginePath)
	if v, ok := p.get("WALLWARS_BOT_ENGINE_ARGS"); ok {
		c.BotEngineArgs = strings.Fields(v)
	}
	p.duration("WALLWARS_BOT_MOVE_TIMEOUT", &c.BotMoveTimeout)
	p.duration("WALLWARS_OFFER_TIMEOUT", &c.OfferTimeout)
	p.duration("WALLWARS_AUTO_ACCEPT_DELAY", &c.AutoAcceptDelay)
	if v, ok := p.get("WALLWARS_BOT_DRAW_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && (f < -1 || f > 1) {
			err = errors.New("must be within [-1, 1]")
		}
		if err != nil {
			p.warn("WALLWARS_BOT_DRAW_THRESHOLD", v, err)
		} else {
			c.BotDrawThreshold = f
		}
	}

	g := c.Game
	if v, ok := p.get("WALLWARS_VARIANT"); ok {
		g.Variant = engine.Variant(v)
	}
	p.integer("WALLWARS_BOARD_WIDTH", &g.BoardWidth)
	p.integer("WALLWARS_BOARD_HEIGHT", &g.BoardHeight)
	p.integer("WALLWARS_INITIAL_SECONDS", &g.TimeControl.InitialSeconds)
	p.integer("WALLWARS_INCREMENT_SECONDS", &g.TimeControl.IncrementSeconds)
	g, warnings := engine.Sanitize(g)
	for _, w := range warnings {
		log.Warnf("Config: %s", w)
	}
	c.Game = g
	return c
}

type parser struct {
	lookup func(string) (string, bool)
	log    *logrus.Entry
}

func (p parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p parser) warn(key, value string, err error) {
	p.log.WithField("key", key).Warnf("Config: ignoring malformed %s=%q: %v", key, value, err)
}

func (p parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.warn(key, v, err)
		return
	}
	*dst = n
}

func (p parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.warn(key, v, err)
		return
	}
	*dst = d
}
