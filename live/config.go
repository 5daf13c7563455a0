package live

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig holds the connection settings for the marketplace backend.
//
// ApiUrl absent means "do not connect": the stream identity for an empty
// base is zero and the registry hands out a disabled subscription. there is
// no default host.
type ClientConfig struct {
	// root URL of the backend API, including the /api prefix
	ApiUrl string `mapstructure:"api_url"`

	// bearer credential for the session. usually injected at runtime rather
	// than stored in the file.
	ByJwt string `mapstructure:"jwt"`

	// path of the push stream under the api base
	StreamPath string `mapstructure:"stream_path"`

	// "sse" (default) or "ws"
	Transport string `mapstructure:"transport"`

	ReconnectInitialSeconds int `mapstructure:"reconnect_initial_sec"`
	ReconnectMaxSeconds     int `mapstructure:"reconnect_max_sec"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "servicios.yaml")
	}
	return filepath.Join(home, ".config", "servicios", "config.yaml")
}

// LoadClientConfig reads the config file at `path`, applying env overrides
// SERVICIOS_API_URL and SERVICIOS_JWT. a missing file yields the defaults.
func LoadClientConfig(path string) (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("stream_path", NotificationStreamPath)
	v.SetDefault("transport", "sse")
	v.SetDefault("reconnect_initial_sec", 1)
	v.SetDefault("reconnect_max_sec", 30)

	v.SetEnvPrefix("servicios")
	v.BindEnv("api_url")
	v.BindEnv("jwt")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	config := &ClientConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	return config, nil
}

// StreamSettings derives the stream settings for this config from the
// defaults.
func (self *ClientConfig) StreamSettings() *StreamSettings {
	settings := DefaultStreamSettings()
	if 0 < self.ReconnectInitialSeconds {
		settings.ReconnectInitialTimeout = time.Duration(self.ReconnectInitialSeconds) * time.Second
	}
	if 0 < self.ReconnectMaxSeconds {
		settings.ReconnectMaxTimeout = time.Duration(self.ReconnectMaxSeconds) * time.Second
	}
	if self.Transport == "ws" {
		settings.TransportGenerator = NewWsTransport
	}
	return settings
}

// Identity canonicalizes this config into the stream identity for the
// notification feed.
func (self *ClientConfig) Identity() StreamIdentity {
	streamPath := self.StreamPath
	if streamPath == "" {
		streamPath = NotificationStreamPath
	}
	return NewStreamIdentity(self.ApiUrl, streamPath, self.ByJwt)
}
