package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Planner PlannerConfig `mapstructure:"planner"`
	Search  SearchConfig  `mapstructure:"search"`
}

// PlannerConfig holds the tunables of the trip planning pipeline.
type PlannerConfig struct {
	PlacesPerDay        int     `mapstructure:"placesPerDay"`
	DayStartHour        int     `mapstructure:"dayStartHour"`
	TravelSpeedKmh      float64 `mapstructure:"travelSpeedKmh"`
	DefaultVisitMinutes int     `mapstructure:"defaultVisitMinutes"`
	MealRadiusKm        float64 `mapstructure:"mealRadiusKm"`
	DinnerRadiusKm      float64 `mapstructure:"dinnerRadiusKm"`
	LodgingRadiusKm     float64 `mapstructure:"lodgingRadiusKm"`
	LodgingMinRating    float64 `mapstructure:"lodgingMinRating"`
}

// SearchConfig holds the external POI search collaborator settings,
// including the circuit breaker that guards every outbound call.
type SearchConfig struct {
	Model            string        `mapstructure:"model"`
	CallTimeout      time.Duration `mapstructure:"callTimeout"`
	CacheTTL         time.Duration `mapstructure:"cacheTTL"`
	BreakerThreshold int           `mapstructure:"breakerThreshold"`
	BreakerCooldown  time.Duration `mapstructure:"breakerCooldown"`
	BreakerProbes    int           `mapstructure:"breakerProbes"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
