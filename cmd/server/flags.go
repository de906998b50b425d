package main

import (
	"flag"
	"fmt"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/config"
)

// cliFlags - параметры командной строки. Заданные флаги имеют приоритет
// над файлом конфигурации и переменными окружения.
type cliFlags struct {
	ConfigPath  string
	Port        string
	CertFile    string
	KeyFile     string
	DatabaseDSN string
}

// parseFlags разбирает аргументы командной строки.
func parseFlags(name string, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&f.ConfigPath, "config", "", "Путь к YAML-файлу конфигурации")
	fs.StringVar(&f.Port, "port", "", "Порт HTTP(S)-сервера (env: DOCANCHOR_SERVER_PORT)")
	fs.StringVar(&f.CertFile, "cert-file", "", "Путь к файлу TLS-сертификата (env: DOCANCHOR_SERVER_CERT_FILE)")
	fs.StringVar(&f.KeyFile, "key-file", "", "Путь к файлу TLS-ключа (env: DOCANCHOR_SERVER_KEY_FILE)")
	fs.StringVar(&f.DatabaseDSN, "database-dsn", "", "Строка подключения к базе данных (env: DOCANCHOR_DATABASE_DSN)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("ошибка разбора флагов: %w", err)
	}
	return f, nil
}

// apply переносит заданные флаги в конфигурацию.
func (f *cliFlags) apply(cfg *config.Config) {
	if f.Port != "" {
		cfg.Server.Port = f.Port
	}
	if f.CertFile != "" {
		cfg.Server.CertFile = f.CertFile
	}
	if f.KeyFile != "" {
		cfg.Server.KeyFile = f.KeyFile
	}
	if f.DatabaseDSN != "" {
		cfg.Database.DSN = f.DatabaseDSN
	}
}
