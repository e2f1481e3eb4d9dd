package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Portal    PortalConfig    `yaml:"portal" mapstructure:"portal"`
	RFQ       RFQConfig       `yaml:"rfq" mapstructure:"rfq"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuthConfig configures JWT sessions.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTLHrs int    `yaml:"token_ttl_hours" mapstructure:"token_ttl_hours"`
	AdminSecret string `yaml:"admin_secret" mapstructure:"admin_secret"`
}

// AnthropicConfig holds Anthropic API settings for the LLM scoring pass.
// An empty key selects the deterministic fallback assessor.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MatchConfig tunes the persisted match pipeline.
type MatchConfig struct {
	// ProximityNormMiles is the distance at which the proximity component
	// reaches zero. Deliberately distinct from the portal constant.
	ProximityNormMiles float64 `yaml:"proximity_norm_miles" mapstructure:"proximity_norm_miles"`
	ShortlistSize      int     `yaml:"shortlist_size" mapstructure:"shortlist_size"`
	CapabilityWeight   float64 `yaml:"capability_weight" mapstructure:"capability_weight"`
	ProximityWeight    float64 `yaml:"proximity_weight" mapstructure:"proximity_weight"`
	NeedWeight         float64 `yaml:"need_weight" mapstructure:"need_weight"`
	AssessmentWeight   float64 `yaml:"assessment_weight" mapstructure:"assessment_weight"`
}

// PortalConfig tunes the ephemeral portal/RFQ scoring paths.
type PortalConfig struct {
	ProximityNormMiles float64 `yaml:"proximity_norm_miles" mapstructure:"proximity_norm_miles"`
	PartnerLimit       int     `yaml:"partner_limit" mapstructure:"partner_limit"`
	ComboLimit         int     `yaml:"combo_limit" mapstructure:"combo_limit"`
}

// RFQConfig tunes the cost estimator.
type RFQConfig struct {
	FuelSurchargePct float64 `yaml:"fuel_surcharge_pct" mapstructure:"fuel_surcharge_pct"`
	TopVendors       int     `yaml:"top_vendors" mapstructure:"top_vendors"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("auth.token_ttl_hours", 24)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("match.proximity_norm_miles", 500)
	v.SetDefault("match.shortlist_size", 10)
	v.SetDefault("match.capability_weight", 0.3)
	v.SetDefault("match.proximity_weight", 0.2)
	v.SetDefault("match.need_weight", 0.2)
	v.SetDefault("match.assessment_weight", 0.3)
	v.SetDefault("portal.proximity_norm_miles", 3000)
	v.SetDefault("portal.partner_limit", 5)
	v.SetDefault("portal.combo_limit", 25)
	v.SetDefault("rfq.fuel_surcharge_pct", 0.18)
	v.SetDefault("rfq.top_vendors", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
