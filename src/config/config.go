package config

import (
	"connectwork/src/types"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultShortCode   = "174379"
	DefaultCallbackURL = "https://connectwork.app/api/v1/mpesa/callback"
	DefaultCountryCode = "254"

	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"
)

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// const dsn = "host=localhost user=postgres password=password dbname=connectwork port=5432 sslmode=disable TimeZone=Africa/Nairobi"

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

type AWS struct {
	Region         string
	IAMRoleArn     string
	SQSQueue       string
	SNSTopicArn    string
	CallbackBucket string
	MpesaSecretID  string
}

type Pusher struct {
	AppID   string
	Key     string
	Secret  string
	Cluster string
}

func (p Pusher) Enabled() bool {
	return p.AppID != "" && p.Key != "" && p.Secret != ""
}

type Mpesa struct {
	ConsumerKey    string
	ConsumerSecret string
	PassKey        string
	ShortCode      string
	CallbackURL    string
	Environment    types.MpesaEnvironment
	CountryCode    string
	// Overrides the environment's base URL. Used for local gateways and tests.
	BaseURLOverride string

	PollInterval      time.Duration
	PollAttempts      int
	StrictPersistence bool
	SweepInterval     time.Duration
	SweepAge          time.Duration
}

func (m Mpesa) BaseURL() string {
	if m.BaseURLOverride != "" {
		return m.BaseURLOverride
	}
	if m.Environment == types.MPESA_PRODUCTION {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// Config is built once at startup and passed to every component that needs it.
type Config struct {
	APIEnv          types.Environment
	Port            string
	MaintenanceMode bool
	AppHost         string
	LogDir          string
	JWTSecret       string
	RedisURL        string
	KafkaBroker     string

	Database Database
	AWS      AWS
	Pusher   Pusher
	Mpesa    Mpesa
}

func (c *Config) IsProd() bool {
	return c.APIEnv == types.Production
}

// Validate checks the credentials every provider call depends on.
func (c *Config) Validate() error {
	switch {
	case c.Mpesa.ConsumerKey == "":
		return &types.ConfigError{Field: "MPESA_CONSUMER_KEY"}
	case c.Mpesa.ConsumerSecret == "":
		return &types.ConfigError{Field: "MPESA_CONSUMER_SECRET"}
	case c.Mpesa.PassKey == "":
		return &types.ConfigError{Field: "MPESA_PASSKEY"}
	case c.Mpesa.ShortCode == "":
		return &types.ConfigError{Field: "MPESA_SHORTCODE"}
	}
	if c.Mpesa.Environment != types.MPESA_SANDBOX && c.Mpesa.Environment != types.MPESA_PRODUCTION {
		return &types.ConfigError{Field: "MPESA_ENV", Msg: fmt.Sprintf("unknown environment %q", c.Mpesa.Environment)}
	}
	if c.Mpesa.PollAttempts < 1 {
		return &types.ConfigError{Field: "MPESA_POLL_ATTEMPTS", Msg: "must be at least 1"}
	}
	if c.Mpesa.SweepInterval <= 0 {
		return &types.ConfigError{Field: "MPESA_SWEEP_INTERVAL", Msg: "must be positive"}
	}
	return nil
}

// Load reads the environment. In local mode a .env file in the working directory is loaded first.
func Load() (*Config, error) {
	apiEnv := types.Environment(getenv("API_ENV", string(types.Local)))
	if apiEnv == types.Local {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return FromEnv(apiEnv)
}

func FromEnv(apiEnv types.Environment) (*Config, error) {
	cfg := &Config{
		APIEnv:      apiEnv,
		Port:        getenv("PORT", "8080"),
		AppHost:     os.Getenv("APP_HOST"),
		LogDir:      os.Getenv("LOG_DIR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisURL:    os.Getenv("REDIS_HOST"),
		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		Database: Database{
			Host:     getenv("DATABASE_HOST", "localhost"),
			Port:     getenv("DATABASE_PORT", "5432"),
			User:     os.Getenv("DATABASE_USER"),
			Password: os.Getenv("DATABASE_PASSWORD"),
			Name:     os.Getenv("DATABASE_NAME"),
			SSLMode:  getenv("DATABASE_SSLMODE", "disable"),
			TimeZone: getenv("DATABASE_TIMEZONE", "Africa/Nairobi"),
		},
		AWS: AWS{
			Region:         os.Getenv("AWS_REGION"),
			IAMRoleArn:     os.Getenv("AWS_IAM_ROLE_ARN"),
			SQSQueue:       getenv("SQS_PAYMENT_QUEUE", "PaymentTransactionUpdates"),
			SNSTopicArn:    os.Getenv("SNS_PAYMENT_TOPIC_ARN"),
			CallbackBucket: os.Getenv("S3_CALLBACK_BUCKET"),
			MpesaSecretID:  os.Getenv("MPESA_SECRET_ID"),
		},
		Pusher: Pusher{
			AppID:   os.Getenv("PUSHER_APP_ID"),
			Key:     os.Getenv("PUSHER_KEY"),
			Secret:  os.Getenv("PUSHER_SECRET"),
			Cluster: os.Getenv("PUSHER_CLUSTER"),
		},
		Mpesa: Mpesa{
			ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
			PassKey:         os.Getenv("MPESA_PASSKEY"),
			ShortCode:       getenv("MPESA_SHORTCODE", DefaultShortCode),
			CallbackURL:     getenv("MPESA_CALLBACK_URL", DefaultCallbackURL),
			Environment:     types.MpesaEnvironment(getenv("MPESA_ENV", string(types.MPESA_SANDBOX))),
			CountryCode:     DefaultCountryCode,
			BaseURLOverride: os.Getenv("MPESA_BASE_URL"),
		},
	}

	var err error
	if cfg.MaintenanceMode, err = getbool("MAINTENANCE_MODE", false); err != nil {
		return nil, err
	}
	if cfg.Mpesa.PollInterval, err = getduration("MPESA_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Mpesa.PollAttempts, err = getint("MPESA_POLL_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.Mpesa.StrictPersistence, err = getbool("MPESA_STRICT_PERSISTENCE", apiEnv == types.Production); err != nil {
		return nil, err
	}
	if cfg.Mpesa.SweepInterval, err = getduration("MPESA_SWEEP_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Mpesa.SweepAge, err = getduration("MPESA_SWEEP_AGE", 2*time.Minute); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &types.ConfigError{Field: key, Msg: err.Error()}
	}
	return b, nil
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &types.ConfigError{Field: key, Msg: err.Error()}
	}
	return i, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &types.ConfigError{Field: key, Msg: err.Error()}
	}
	return d, nil
}
