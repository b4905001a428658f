package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("log_level", "LOG_LEVEL")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")

		viper.BindEnv("price_provider", "PRICE_PROVIDER")
		viper.BindEnv("finnhub_api_key", "FINNHUB_API_KEY")
		viper.BindEnv("finnhub_base_url", "FINNHUB_BASE_URL")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("price_cache_ttl", "PRICE_CACHE_TTL")
		viper.BindEnv("price_refresh_interval", "PRICE_REFRESH_INTERVAL")
		viper.BindEnv("price_timeout", "PRICE_TIMEOUT")

		viper.BindEnv("smtp_url", "SMTP_URL")
		viper.BindEnv("notify_timeout", "NOTIFY_TIMEOUT")

		viper.BindEnv("alert_schedule", "ALERT_SCHEDULE")
		viper.BindEnv("alert_workers", "ALERT_WORKERS")
		viper.BindEnv("delete_max_attempts", "DELETE_MAX_ATTEMPTS")
		viper.BindEnv("delete_base_delay", "DELETE_BASE_DELAY")
		viper.BindEnv("metrics_save_interval", "METRICS_SAVE_INTERVAL")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "/app/data/alerts.db")
		viper.SetDefault("price_provider", "finnhub")
		viper.SetDefault("finnhub_base_url", "https://finnhub.io/api/v1")
		viper.SetDefault("price_cache_ttl", time.Minute)
		viper.SetDefault("price_refresh_interval", time.Minute)
		viper.SetDefault("price_timeout", 10*time.Second)
		viper.SetDefault("notify_timeout", 30*time.Second)
		viper.SetDefault("alert_schedule", "*/5 * * * *")
		viper.SetDefault("alert_workers", 8)
		viper.SetDefault("delete_max_attempts", 3)
		viper.SetDefault("delete_base_delay", 100*time.Millisecond)
		viper.SetDefault("metrics_save_interval", 5*time.Minute)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
