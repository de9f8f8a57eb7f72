package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIURL is the gateway every resource is served from unless
// overridden.
const DefaultAPIURL = "http://localhost:8000/api/v1"

// ClientConfig configures carehubctl and other client-toolkit consumers.
type ClientConfig struct {
	APIURL   string        `mapstructure:"CAREHUB_API_URL"`
	Token    string        `mapstructure:"CAREHUB_TOKEN"`
	Timeout  time.Duration `mapstructure:"CAREHUB_TIMEOUT"`
	RetryMax int           `mapstructure:"CAREHUB_RETRY_MAX"`
	// ResourceURLs holds per-resource base URL overrides keyed by resource
	// name, read from CAREHUB_URL_<RESOURCE>.
	ResourceURLs map[string]string `mapstructure:"-"`
}

func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("CAREHUB_API_URL", DefaultAPIURL)
	v.SetDefault("CAREHUB_TIMEOUT", "30s")
	v.SetDefault("CAREHUB_RETRY_MAX", 0)
	for _, key := range []string{"CAREHUB_API_URL", "CAREHUB_TOKEN", "CAREHUB_TIMEOUT", "CAREHUB_RETRY_MAX"} {
		_ = v.BindEnv(key)
	}
	_ = v.ReadInConfig()

	cfg := &ClientConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	cfg.ResourceURLs = resourceOverrides(os.Environ())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if err := checkURL("CAREHUB_API_URL", c.APIURL); err != nil {
		return err
	}
	for name, u := range c.ResourceURLs {
		if err := checkURL(overrideKey(name), u); err != nil {
			return err
		}
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("CAREHUB_RETRY_MAX must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("CAREHUB_TIMEOUT must not be negative")
	}
	return nil
}

// BaseURL returns the base URL for a resource, preferring its override.
func (c *ClientConfig) BaseURL(resource string) string {
	if u, ok := c.ResourceURLs[resource]; ok {
		return u
	}
	return c.APIURL
}

const overridePrefix = "CAREHUB_URL_"

// overrideKey maps "waitlist-entries" to CAREHUB_URL_WAITLIST_ENTRIES.
func overrideKey(resource string) string {
	return overridePrefix + strings.ToUpper(strings.ReplaceAll(resource, "-", "_"))
}

func resourceOverrides(environ []string) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, overridePrefix) || val == "" {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, overridePrefix), "_", "-"))
		out[name] = strings.TrimRight(val, "/")
	}
	return out
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
