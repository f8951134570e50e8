// Package config loads typed configuration structs from the process
// environment using struct tags.
//
// Every component in this service takes an explicit config struct at
// construction time instead of reading os.Getenv at request time. Missing
// required values are discovered once, at startup, and abort the boot:
//
//	type StripeConfig struct {
//		SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
//		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg StripeConfig
//	config.MustLoad(&cfg)
package config
