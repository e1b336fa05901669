package configuration

import (
	"fmt"
	"os"
	"strconv"

	"my-history/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App            App            `json:"app"`
	Database       Database       `json:"database"`
	RedisClient    RedisClient    `json:"redisClient"`
	Data           Data           `json:"data"`
	CookieCloud    CookieCloud    `json:"cookieCloud"`
	Sync           Sync           `json:"sync"`
	Bilibili       Bilibili       `json:"bilibili"`
	YouTube        YouTube        `json:"youtube"`
	YouTubeBrowser YouTubeBrowser `json:"youtubeBrowser"`
	Podcast        Podcast        `json:"podcast"`
}

type App struct {
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey"`
}

type Database struct {
	Psql Db `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Data struct {
	Dir string `json:"dir"`
}

// CookieCloud is the cloud credential source shared by cookie-based
// providers.
type CookieCloud struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	UUID     string `json:"uuid"`
	Password string `json:"password"`
}

type Sync struct {
	IntervalMinutes int `json:"intervalMinutes"`
	PageDelayMs     int `json:"pageDelayMs"`
}

// PlatformCredential describes where a cookie-based provider gets its
// credential: the CookieCloud domain key, the cookie whose JWT exp drives
// cache expiry, and the static fallback.
type PlatformCredential struct {
	Domain      string `json:"domain"`
	TokenCookie string `json:"tokenCookie"`
	Cookie      string `json:"cookie"`
	TTLSeconds  int64  `json:"ttlSeconds"`
}

type Bilibili struct {
	Enabled        bool               `json:"enabled"`
	BaseURL        string             `json:"baseUrl"`
	Credential     PlatformCredential `json:"credential"`
	PageSize       int                `json:"pageSize"`
	StaleThreshold int                `json:"staleThreshold"`
}

type YouTube struct {
	Enabled        bool     `json:"enabled"`
	Tool           string   `json:"tool"`
	Args           []string `json:"args"`
	FirstSyncLimit int      `json:"firstSyncLimit"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

type YouTubeBrowser struct {
	Enabled       bool   `json:"enabled"`
	Endpoint      string `json:"endpoint"`
	Token         string `json:"token"`
	MaxScrolls    int    `json:"maxScrolls"`
	TzOffsetHours int    `json:"tzOffsetHours"`
}

type Podcast struct {
	Enabled      bool   `json:"enabled"`
	BaseURL      string `json:"baseUrl"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	MaxPages     int    `json:"maxPages"`
	PageSize     int    `json:"pageSize"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
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

func initDatabase(C *Config) {
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
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = "5432"
	}
}

func initApp(C *Config) {
	// SECRET_KEY from the environment overrides the config file when provided.
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10010
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10010
	}
	if C.Data.Dir == "" {
		C.Data.Dir = os.Getenv("DATA_DIR")
	}
	if C.Data.Dir == "" {
		C.Data.Dir = "./data"
	}
	if C.Sync.IntervalMinutes <= 0 {
		C.Sync.IntervalMinutes = 60
	}
	if C.Sync.PageDelayMs <= 0 {
		C.Sync.PageDelayMs = 1500
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; API authentication will fail. Provide SECRET_KEY via environment.")
	}
}
