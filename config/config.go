package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type Config struct {
	PostgresURL       string        `ff:"long: postgres-url, default: postgresql://postgres@127.0.0.1:5432/parley?sslmode=disable, usage: URL for the Postgres database"`
	Port              uint32        `ff:"long: port, short: p, default: 4000, usage: Port for the HTTP server"`
	NATSURL           string        `ff:"long: nats-url, usage: NATS URL for cross-instance event fanout (empty runs single-instance)"`
	BackgroundTimeout time.Duration `ff:"long: background-timeout, default: 15s, usage: Timeout for background broadcast operations"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	fs := ff.NewFlagSetFrom("parley", &cfg)
	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("PARLEY"))
	if errors.Is(err, ff.ErrHelp) {
		fmt.Println(ffhelp.Flags(fs))
		os.Exit(0)
	}

	return cfg, err
}
