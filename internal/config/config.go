package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv        string `env:"APP_ENV,notEmpty"`
	AdminAddr     string `env:"ADMIN_ADDR" envDefault:":8080"`
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Platform credentials. notEmpty so a misconfigured deployment fails
	// at startup instead of posting with empty tokens.
	FacebookPageID      string `env:"FACEBOOK_PAGE_ID,notEmpty"`
	FacebookAccessToken string `env:"FACEBOOK_ACCESS_TOKEN,notEmpty"`
	WhatsAppPhoneID     string `env:"WHATSAPP_PHONE_ID,notEmpty"`
	WhatsAppAccessToken string `env:"WHATSAPP_ACCESS_TOKEN,notEmpty"`
	WhatsAppRecipient   string `env:"WHATSAPP_RECIPIENT,notEmpty"`

	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"60s"`
	ClaimBatchSize   int           `env:"CLAIM_BATCH_SIZE" envDefault:"100"`
	DispatchAttempts int           `env:"DISPATCH_ATTEMPTS" envDefault:"3"`
	DispatchTimeout  time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5s"`
	StaleClaimAge    time.Duration `env:"STALE_CLAIM_AGE" envDefault:"10m"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
