/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package trackmigrate

import (
	"fmt"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "migration"

const (
	cfgKeyHost           = "host"
	cfgKeyPort           = "port"
	cfgKeyDatabase       = "database"
	cfgKeyUser           = "user"
	cfgKeyPassword       = "password" //nolint: gosec
	cfgKeyClientEncoding = "clientEncoding"
	cfgKeyClientBin      = "clientBin"
)

// Default values for the connection configuration.
const (
	DefaultPort           = 5432
	DefaultClientEncoding = "UTF8"
	DefaultClientBin      = "psql"
)

// Config represents connection parameters for the external SQL client.
// No component reads ambient process environment for these values; the engine
// receives a Config explicitly and derives the client environment from it.
type Config struct {
	Host           string `mapstructure:"host" yaml:"host" json:"host"`
	Port           int    `mapstructure:"port" yaml:"port" json:"port"`
	Database       string `mapstructure:"database" yaml:"database" json:"database"`
	User           string `mapstructure:"user" yaml:"user" json:"user"`
	Password       string `mapstructure:"password" yaml:"password" json:"password"`
	ClientEncoding string `mapstructure:"clientEncoding" yaml:"clientEncoding" json:"clientEncoding"`
	ClientBin      string `mapstructure:"clientBin" yaml:"clientBin" json:"clientBin"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing
// configuration parameters. This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix:      opts.keyPrefix,
		Port:           DefaultPort,
		ClientEncoding: DefaultClientEncoding,
		ClientBin:      DefaultClientBin,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters
// should be presented. Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyPort, DefaultPort)
	dp.SetDefault(cfgKeyClientEncoding, DefaultClientEncoding)
	dp.SetDefault(cfgKeyClientBin, DefaultClientBin)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Host, err = dp.GetString(cfgKeyHost); err != nil {
		return err
	}
	if c.Port, err = dp.GetInt(cfgKeyPort); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return dp.WrapKeyErr(cfgKeyPort, fmt.Errorf("must be in range [1, 65535]"))
	}
	if c.Database, err = dp.GetString(cfgKeyDatabase); err != nil {
		return err
	}
	if c.User, err = dp.GetString(cfgKeyUser); err != nil {
		return err
	}
	if c.Password, err = dp.GetString(cfgKeyPassword); err != nil {
		return err
	}
	if c.ClientEncoding, err = dp.GetString(cfgKeyClientEncoding); err != nil {
		return err
	}
	if c.ClientBin, err = dp.GetString(cfgKeyClientBin); err != nil {
		return err
	}

	return nil
}

// Validate checks that all parameters required to reach the database are
// present. A missing parameter is reported as a ConnectionError so that the
// invocation fails before any migration phase starts.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ConnectionError{Reason: "host is not configured"}
	}
	if c.Database == "" {
		return &ConnectionError{Reason: "database is not configured"}
	}
	if c.User == "" {
		return &ConnectionError{Reason: "user is not configured"}
	}
	if c.ClientBin == "" {
		return &ConnectionError{Reason: "client binary is not configured"}
	}
	return nil
}
