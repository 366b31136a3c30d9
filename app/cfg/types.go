package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	RedisAddr         string

	// Remote collaborators
	FetchTimeout    int
	FetchRate       float64
	ShortenerURL    string
	ShortenerLogin  string
	ShortenerAPIKey string
	YouTubeOembed   string
	VimeoOembed     string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) GetFetchTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.FetchTimeout) * time.Second
}
