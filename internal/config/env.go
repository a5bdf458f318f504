package config

import (
	"os"
	"strconv"
)

// FromEnv overlays LMC_* environment variables onto cfg. Unparsable values
// are ignored.
func FromEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("LMC_LISTEN_ADDR", &cfg.ListenAddr)
	str("LMC_ADMIN_HTTP_ADDR", &cfg.AdminHTTPAddr)
	str("LMC_GRPC_ADDR", &cfg.GRPCAddr)
	str("LMC_DATA_DIR", &cfg.DataDir)
	str("LMC_LOG_DIR", &cfg.LogDir)
	str("LMC_SERVICE_NAME_REGEX", &cfg.ServiceNameRegex)
	str("LMC_CATALOG_FSYNC", &cfg.CatalogFsync)
	num("LMC_MAX_SERVICES", &cfg.MaxServices)
	num("LMC_MAX_SESSIONS", &cfg.MaxSessions)
	num("LMC_PAGE_SIZE", &cfg.PageSize)
	num("LMC_ROTATE_MAX_AGE_SECONDS", &cfg.Rotation.MaxAgeSeconds)
	flag("LMC_USE_MMAP", &cfg.UseMmap)
	flag("LMC_FSYNC_ON_FLUSH", &cfg.FsyncOnFlush)
	flag("LMC_FLUSH_ON_SHUTDOWN", &cfg.FlushOnShutdown)
	flag("LMC_TRACING", &cfg.Tracing)
	if v := os.Getenv("LMC_ROTATE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Rotation.MaxBytes = n
		}
	}
}
