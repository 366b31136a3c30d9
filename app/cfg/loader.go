package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./rss-poster.db" description:"SQLite database file"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://posts.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for cross-process feed locks (optional)"`

	// Remote collaborators
	FetchTimeout    int     `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"60" description:"Deadline in seconds for image, page, shortener and oembed fetches"`
	FetchRate       float64 `long:"fetch-rate" env:"FETCH_RATE" default:"10" description:"Maximum outbound fetches per second"`
	ShortenerURL    string  `long:"shortener-url" env:"SHORTENER_URL" default:"https://api-ssl.bitly.com/v3/shorten" description:"Link shortener endpoint"`
	ShortenerLogin  string  `long:"shortener-login" env:"SHORTENER_LOGIN" description:"Default link shortener login"`
	ShortenerAPIKey string  `long:"shortener-api-key" env:"SHORTENER_API_KEY" description:"Default link shortener API key"`
	YouTubeOembed   string  `long:"youtube-oembed" env:"YOUTUBE_OEMBED" default:"http://www.youtube.com/oembed" description:"YouTube oembed endpoint"`
	VimeoOembed     string  `long:"vimeo-oembed" env:"VIMEO_OEMBED" default:"http://vimeo.com/api/oembed.json" description:"Vimeo oembed endpoint"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Poster/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		RedisAddr:         raw.RedisAddr,
		FetchTimeout:      raw.FetchTimeout,
		FetchRate:         raw.FetchRate,
		ShortenerURL:      raw.ShortenerURL,
		ShortenerLogin:    raw.ShortenerLogin,
		ShortenerAPIKey:   raw.ShortenerAPIKey,
		YouTubeOembed:     raw.YouTubeOembed,
		VimeoOembed:       raw.VimeoOembed,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Used by tests and embedders that
// build a Cfg without parsing flags.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
