package core

import (
	"fmt"
	"strings"
)

// SystemClientConfig declares one first-party OAuth client to provision at
// startup. Key uses the stable `name@clients` form.
type SystemClientConfig struct {
	Key         string `koanf:"key" mapstructure:"key"`
	DisplayName string `koanf:"display_name" mapstructure:"display_name"`
	AppURI      string `koanf:"app_uri" mapstructure:"app_uri"`
	CallbackURI string `koanf:"callback_uri" mapstructure:"callback_uri"`
	Secret      string `koanf:"secret" mapstructure:"secret"`
}

type OAuthConfig struct {
	Issuer                string               `koanf:"issuer" mapstructure:"issuer"`
	TokenSecret           string               `koanf:"token_secret" mapstructure:"token_secret"`
	CodeTTLSeconds        int                  `koanf:"code_ttl_seconds" mapstructure:"code_ttl_seconds"`
	AccessTokenTTLSeconds int                  `koanf:"access_token_ttl_seconds" mapstructure:"access_token_ttl_seconds"`
	ExtraScopes           []string             `koanf:"extra_scopes" mapstructure:"extra_scopes"`
	SystemClients         []SystemClientConfig `koanf:"system_clients" mapstructure:"system_clients"`
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig `koanf:"oauth" mapstructure:"oauth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "federation",
		OAuth: OAuthConfig{
			Issuer:                GrantCodeIssuer,
			CodeTTLSeconds:        int(DefaultGrantCodeTTL.Seconds()),
			AccessTokenTTLSeconds: int(DefaultAccessTokenTTL.Seconds()),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.CodeTTLSeconds < 0 {
		return fmt.Errorf("core: oauth.code_ttl_seconds must not be negative")
	}
	if c.OAuth.AccessTokenTTLSeconds < 0 {
		return fmt.Errorf("core: oauth.access_token_ttl_seconds must not be negative")
	}
	for i, client := range c.OAuth.SystemClients {
		if strings.TrimSpace(client.Key) == "" {
			return fmt.Errorf("core: oauth.system_clients[%d].key is required", i)
		}
		if strings.TrimSpace(client.Secret) == "" {
			return fmt.Errorf("core: oauth.system_clients[%d].secret is required", i)
		}
	}
	return nil
}
