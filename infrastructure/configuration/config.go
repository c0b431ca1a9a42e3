package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"autopost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	LinkedIn    LinkedIn    `json:"linkedIn"`
	Scheduler   Scheduler   `json:"scheduler"`
	Events      Events      `json:"events"`
	Logger      Logger      `json:"logger"`
}

type App struct {
	Port           int      `json:"port"`
	SecretKey      string   `json:"secretKey"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	// Driver selects the post store: "mongo" (default) or "postgres".
	Driver string `json:"driver"`
	Psql   Db     `json:"psql"`
	Mongo  Db     `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type RedisClient struct {
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Password string        `json:"password"`
	Username string        `json:"username"`
	TTL      time.Duration `json:"ttl"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
}

type LinkedIn struct {
	BaseURL           string        `json:"baseURL"`
	APIVersion        string        `json:"apiVersion"`
	RequestTimeout    time.Duration `json:"requestTimeout"`
	PublishTimeout    time.Duration `json:"publishTimeout"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	Burst             int           `json:"burst"`
	CommentPageSize   int           `json:"commentPageSize"`
	OAuth             OAuthClient   `json:"oauth"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	TokenURL     string `json:"tokenURL"`
}

type Scheduler struct {
	SweepInterval      time.Duration `json:"sweepInterval"`
	CampaignInterval   time.Duration `json:"campaignInterval"`
	CalendarInterval   time.Duration `json:"calendarInterval"`
	EngagementInterval time.Duration `json:"engagementInterval"`
	EngagementWindow   time.Duration `json:"engagementWindow"`
	RunTimeout         time.Duration `json:"runTimeout"`
	ClaimLease         time.Duration `json:"claimLease"`
	BatchSize          int           `json:"batchSize"`
	Concurrency        int           `json:"concurrency"`
	AllowOverlap       bool          `json:"allowOverlap"`
}

// Events lists the lifecycle event sinks: "pubsub", "servicebus".
type Events struct {
	Sinks []string `json:"sinks"`
	Topic string   `json:"topic"`
	Queue string   `json:"queue"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

var C Config

func init() {
	Reload()
}

// Reload reads the config file and environment again, e.g. after
// LoadEnvFromFile populated the environment.
func Reload() {
	C = Config{}
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	ApplyDefaults(&C)
	logger.Configure(C.Logger.Format, C.Logger.Level)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

// ApplyDefaults fills every unset tunable. Reference intervals are one
// minute per driver.
func ApplyDefaults(c *Config) {
	if c.Database.Driver == "" {
		c.Database.Driver = "mongo"
	}
	if c.Database.Mongo.Name == "" {
		c.Database.Mongo.Name = "autopost"
	}
	if c.Database.Mongo.Port == "" {
		c.Database.Mongo.Port = "27017"
	}
	if c.Database.Psql.SSLMode == "" {
		c.Database.Psql.SSLMode = "disable"
	}
	if c.RedisClient.TTL == 0 {
		c.RedisClient.TTL = 10 * time.Minute
	}
	if c.LinkedIn.BaseURL == "" {
		c.LinkedIn.BaseURL = "https://api.linkedin.com"
	}
	if c.LinkedIn.APIVersion == "" {
		c.LinkedIn.APIVersion = "202405"
	}
	if c.LinkedIn.RequestTimeout == 0 {
		c.LinkedIn.RequestTimeout = 15 * time.Second
	}
	if c.LinkedIn.PublishTimeout == 0 {
		c.LinkedIn.PublishTimeout = 2 * time.Minute
	}
	if c.LinkedIn.RequestsPerSecond == 0 {
		c.LinkedIn.RequestsPerSecond = 5
	}
	if c.LinkedIn.Burst == 0 {
		c.LinkedIn.Burst = 10
	}
	if c.LinkedIn.CommentPageSize == 0 {
		c.LinkedIn.CommentPageSize = 50
	}
	if c.LinkedIn.OAuth.TokenURL == "" {
		c.LinkedIn.OAuth.TokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	}
	s := &c.Scheduler
	if s.SweepInterval == 0 {
		s.SweepInterval = time.Minute
	}
	if s.CampaignInterval == 0 {
		s.CampaignInterval = time.Minute
	}
	if s.CalendarInterval == 0 {
		s.CalendarInterval = time.Minute
	}
	if s.EngagementInterval == 0 {
		s.EngagementInterval = 30 * time.Minute
	}
	if s.EngagementWindow == 0 {
		s.EngagementWindow = 7 * 24 * time.Hour
	}
	if s.RunTimeout == 0 {
		s.RunTimeout = 5 * time.Minute
	}
	// The lease must outlive a publish, otherwise a slow publish could be reclaimed.
	if s.ClaimLease <= c.LinkedIn.PublishTimeout {
		s.ClaimLease = 5 * c.LinkedIn.PublishTimeout
	}
	if s.BatchSize == 0 {
		s.BatchSize = 50
	}
	if s.Concurrency == 0 {
		s.Concurrency = 4
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "post-lifecycle"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "post-lifecycle"
	}
	if c.App.Port == 0 {
		c.App.Port = 10001
	}
}

func initDatabase(C *Config) {
	logger.GetLogger().WithField("driver", C.Database.Driver).Info("Database configuration")
	if v := os.Getenv("DB_DRIVER"); v != "" {
		C.Database.Driver = v
	}
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.Database.Mongo.Host == "" {
		C.Database.Mongo.Host = os.Getenv("MONGO_HOST")
	}
	if C.Database.Mongo.User == "" {
		C.Database.Mongo.User = os.Getenv("MONGO_USER")
	}
	if C.Database.Mongo.Password == "" {
		C.Database.Mongo.Password = os.Getenv("MONGO_PASSWORD")
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides the config file
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order: APP_PORT -> PORT -> config -> default
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if v := os.Getenv("LINKEDIN_CLIENT_ID"); v != "" {
		C.LinkedIn.OAuth.ClientID = v
	}
	if v := os.Getenv("LINKEDIN_CLIENT_SECRET"); v != "" {
		C.LinkedIn.OAuth.ClientSecret = v
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}
