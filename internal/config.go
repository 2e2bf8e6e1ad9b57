package internal

import (
	"fmt"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	DefaultJWTSecret = "secret"

	host     = "localhost"
	port     = 5432
	user     = "postgres"
	password = "12345"
)

type Config struct {
	RunAddress       string        `default:"localhost:8080" env:"RUN_ADDRESS" flag:"a" usage:"host to listen on"`
	DatabaseURI      string        `env:"DATABASE_URI" flag:"d" usage:"postgres connection path"`
	JWTSecret        string        `default:"secret" env:"JWT_SECRET" flag:"jwt-secret" usage:"HMAC secret for auth tokens"`
	AMQPURL          string        `env:"AMQP_URL" flag:"amqp-url" usage:"RabbitMQ url, broadcasts go to a fanout exchange when set"`
	AMQPExchange     string        `default:"bookstore.notifications" env:"AMQP_EXCHANGE" flag:"amqp-exchange" usage:"fanout exchange name"`
	DispatchInterval time.Duration `default:"30s" env:"DISPATCH_INTERVAL" flag:"dispatch-interval" usage:"announcement dispatcher period"`
	SMTP             SMTPConfig
}

type SMTPConfig struct {
	Host     string `usage:"SMTP host, confirmation mails are only logged when empty"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `usage:"SMTP user"`
	Password string `usage:"SMTP password"`
	From     string `default:"Bookstore <no-reply@bookstore.local>" usage:"sender address"`
}

// NewConfig reads defaults, then bookstore.yaml, then env, then args.
func NewConfig(args []string) (*Config, error) {
	c := new(Config)

	// aconfig falls back to os.Args when Args is nil
	if args == nil {
		args = []string{}
	}

	loader := aconfig.LoaderFor(c, aconfig.Config{
		Args:               args,
		AllowUnknownFields: true,
		Files:              []string{"bookstore.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if c.DatabaseURI == "" {
		c.DatabaseURI = fmt.Sprintf("host=%s port=%d user=%s "+
			"password=%s sslmode=disable", host, port, user, password)
	}
	if c.DispatchInterval <= 0 {
		return nil, errors.New("dispatch interval must be positive")
	}
	return c, nil
}

// InsecureJWTSecret reports whether tokens are signed with the built-in secret.
func (c *Config) InsecureJWTSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}
