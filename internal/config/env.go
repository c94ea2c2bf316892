package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays sink credentials and locations from the environment.
// The variable names match the ones operators already use for the AWS CLI.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil || lookup == nil {
		return
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	obj := &cfg.Sinks.ObjectStore
	str("AWS_ACCESS_KEY_ID", &obj.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &obj.SecretKey)
	str("AWS_SESSION_TOKEN", &obj.SessionToken)
	str("AWS_REGION", &obj.Region)
	str("S3_ENDPOINT", &obj.Endpoint)
	str("S3_BUCKET", &obj.Bucket)
	if v, ok := lookup("S3_INSECURE"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			obj.Insecure = b
		}
	}

	str("CATALOGUE_PREFIX", &cfg.Sinks.CataloguePrefix)
	str("DESTINATION_PATH", &cfg.Sinks.Local.Root)
	str("MEDIAFETCH_DATABASE_URL", &cfg.Storage.DSN)
	str("MEDIAFETCH_HTTP_TOKEN", &cfg.HTTP.Token)
	str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
}
