package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит все настройки приложения
type Config struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Game     GameConfig     `mapstructure:"game"`
}

// PostgresConfig содержит настройки для PostgreSQL
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig содержит настройки для Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig содержит настройки HTTP сервера
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// GameConfig содержит константы игровой экономики.
// Значения по умолчанию должны совпадать с продакшеном:
// бонусы 50/100 AR, опрос энергии 5с, дебаунс тапов 3с.
type GameConfig struct {
	WelcomeBonus       int64         `mapstructure:"welcome_bonus"`
	ReferralBonus      int64         `mapstructure:"referral_bonus"`
	EnergyMax          int           `mapstructure:"energy_max"`
	EnergyRegenPerSec  float64       `mapstructure:"energy_regen_per_sec"`
	EnergyPollInterval time.Duration `mapstructure:"energy_poll_interval"`
	SessionIdleTTL     time.Duration `mapstructure:"session_idle_ttl"`
	TapFlushDebounce   time.Duration `mapstructure:"tap_flush_debounce"`
	TapLeaderboardSize int           `mapstructure:"tap_leaderboard_size"`
	BulPerTap          int64         `mapstructure:"bul_per_tap"`
	XPPerTap           int64         `mapstructure:"xp_per_tap"`
}

// LoadConfig загружает настройки из файла или переменных окружения
func LoadConfig() (*Config, error) {
	// .env подхватываем до чтения окружения, как в остальных сервисах
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Значения по умолчанию
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Если файл конфигурации не найден, используем переменные окружения
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Проверяем наличие переменных окружения и переопределяем значения конфигурации
	loadFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// PostgreSQL defaults
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.username", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "ararena")
	viper.SetDefault("postgres.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// HTTP defaults
	viper.SetDefault("http.port", 8080)

	// Игровые константы (наблюдаемые в продакшене значения)
	viper.SetDefault("game.welcome_bonus", 50)
	viper.SetDefault("game.referral_bonus", 100)
	viper.SetDefault("game.energy_max", 100)
	viper.SetDefault("game.energy_regen_per_sec", 1.0)
	viper.SetDefault("game.energy_poll_interval", 5*time.Second)
	viper.SetDefault("game.session_idle_ttl", 5*time.Minute)
	viper.SetDefault("game.tap_flush_debounce", 3*time.Second)
	viper.SetDefault("game.tap_leaderboard_size", 5)
	viper.SetDefault("game.bul_per_tap", 1)
	viper.SetDefault("game.xp_per_tap", 1)
}

func loadFromEnv() {
	// PostgreSQL from env
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		viper.Set("postgres.host", dbHost)
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			viper.Set("postgres.port", port)
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		viper.Set("postgres.username", dbUser)
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		viper.Set("postgres.password", dbPassword)
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		viper.Set("postgres.dbname", dbName)
	}

	// Redis from env
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := "6379"
		if port := os.Getenv("REDIS_PORT"); port != "" {
			redisPort = port
		}
		viper.Set("redis.addr", redisHost+":"+redisPort)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	// HTTP from env
	if httpPort := os.Getenv("HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			viper.Set("http.port", port)
		}
	}
}
