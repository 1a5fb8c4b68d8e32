// Package config loads Takagi's operator-supplied configuration from the
// process environment. The teacher (4hbab-coding-playground) reads a
// handful of flat os.Getenv calls directly in main.go; that doesn't scale
// to this service's nested, typed, multi-value surface, so this package
// replaces it with viper the way Quatton-qwex's pkg/qsdk/config.go
// configures its own prefixed environment binding.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RootRedirect selects what GET / does.
type RootRedirect string

const (
	RootRedirectRepo     RootRedirect = "repo"
	RootRedirectSettings RootRedirect = "settings"
	RootRedirectDocs     RootRedirect = "docs"
	RootRedirectOff      RootRedirect = "off"
)

// MinTokenLifetime is the smallest TOKEN_LIFETIME the operator may
// configure; a zero value instead means "never expire".
const MinTokenLifetime = 60 * time.Second

// Config is the fully-resolved, read-only configuration record threaded
// through the composition root and every handler. It replaces the
// original Python service's globally memoized settings object (spec.md
// §9 design notes) with an explicit value constructed once at startup.
type Config struct {
	AllowedHosts          []string
	AllowedClients        []string
	BasePath              string
	FixRedirectURIs       bool
	TokenLifetime         time.Duration // zero means never expire
	RootRedirect          RootRedirect
	TreatLoopbackAsSecure bool
	ReturnToReferrer      bool
	AllowedWebfingerHosts []string
	Keyset                string
	KeysetFile            string
	EnableDocs            bool

	ShowScalarDevtoolsOnLocalhost bool
}

// Load reads the environment into a Config, applying defaults and
// invariants from spec.md §6. Every key is namespaced TAKAGI_ with __ as
// the nested separator, e.g. TAKAGI_PRIVATE__SHOW_SCALAR_DEVTOOLS_ON_LOCALHOST.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAKAGI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	v.SetDefault("allowed_hosts", "")
	v.SetDefault("allowed_clients", "*")
	v.SetDefault("base_path", "/")
	v.SetDefault("fix_redirect_uris", false)
	v.SetDefault("token_lifetime", "")
	v.SetDefault("root_redirect", "repo")
	v.SetDefault("treat_loopback_as_secure", true)
	v.SetDefault("return_to_referrer", false)
	v.SetDefault("allowed_webfinger_hosts", "")
	v.SetDefault("keyset", "")
	v.SetDefault("keyset_file", "")
	v.SetDefault("enable_docs", false)
	v.SetDefault("private.show_scalar_devtools_on_localhost", false)

	cfg := &Config{
		AllowedHosts:                  splitCSV(v.GetString("allowed_hosts")),
		AllowedClients:                splitCSV(v.GetString("allowed_clients")),
		BasePath:                      v.GetString("base_path"),
		FixRedirectURIs:               v.GetBool("fix_redirect_uris"),
		RootRedirect:                  RootRedirect(v.GetString("root_redirect")),
		TreatLoopbackAsSecure:         v.GetBool("treat_loopback_as_secure"),
		ReturnToReferrer:              v.GetBool("return_to_referrer"),
		AllowedWebfingerHosts:         splitCSV(v.GetString("allowed_webfinger_hosts")),
		Keyset:                        v.GetString("keyset"),
		KeysetFile:                    v.GetString("keyset_file"),
		EnableDocs:                    v.GetBool("enable_docs"),
		ShowScalarDevtoolsOnLocalhost: v.GetBool("private.show_scalar_devtools_on_localhost"),
	}

	// allowed_hosts always carries the loopback names, matching
	// settings.py's validator that appends them unconditionally.
	cfg.AllowedHosts = appendMissing(cfg.AllowedHosts, "localhost", "127.0.0.1", "::1")

	if lifetime := v.GetString("token_lifetime"); lifetime != "" {
		d, err := time.ParseDuration(lifetime)
		if err != nil {
			return nil, fmt.Errorf("config: TAKAGI_TOKEN_LIFETIME: %w", err)
		}
		if d < MinTokenLifetime {
			return nil, fmt.Errorf("config: TAKAGI_TOKEN_LIFETIME must be at least %s", MinTokenLifetime)
		}
		cfg.TokenLifetime = d
	}

	switch cfg.RootRedirect {
	case RootRedirectRepo, RootRedirectSettings, RootRedirectDocs, RootRedirectOff:
	default:
		return nil, fmt.Errorf("config: TAKAGI_ROOT_REDIRECT: unknown value %q", cfg.RootRedirect)
	}

	// docs are implicitly enabled when they're also the root redirect —
	// it would otherwise be impossible to reach them.
	if cfg.RootRedirect == RootRedirectDocs {
		cfg.EnableDocs = true
	}

	if cfg.Keyset != "" && cfg.KeysetFile != "" {
		return nil, errors.New("config: TAKAGI_KEYSET and TAKAGI_KEYSET_FILE are mutually exclusive")
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendMissing(list []string, extra ...string) []string {
	present := make(map[string]bool, len(list))
	for _, v := range list {
		present[v] = true
	}
	for _, e := range extra {
		if !present[e] {
			list = append(list, e)
			present[e] = true
		}
	}
	return list
}
