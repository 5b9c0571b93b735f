// Package config loads the chaincode process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/joho/godotenv"
)

// envFileVar names the variable that overrides the dotenv path.
const envFileVar = "RAFFLE_ENV_FILE"

// Config controls how the chaincode process starts.
type Config struct {
	// ServerAddress switches to chaincode-as-a-service when set; otherwise the
	// peer launches the chaincode and it dials back.
	ServerAddress    string `env:"CHAINCODE_SERVER_ADDRESS"`
	ChaincodeID      string `env:"CHAINCODE_ID"`
	TLSDisabled      bool   `env:"CHAINCODE_TLS_DISABLED" envDefault:"true"`
	TLSKeyFile       string `env:"CHAINCODE_TLS_KEY_FILE"`
	TLSCertFile      string `env:"CHAINCODE_TLS_CERT_FILE"`
	ClientCACertFile string `env:"CHAINCODE_CLIENT_CA_CERT_FILE"`
	LogSpec          string `env:"RAFFLE_LOG_SPEC" envDefault:"info"`
}

// Load reads an optional dotenv file, then parses and validates the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	path := os.Getenv(envFileVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that an external service configuration is complete.
func (c Config) Validate() error {
	if c.LogSpec == "" {
		return errors.New("RAFFLE_LOG_SPEC cannot be empty")
	}
	if !c.ExternalService() {
		return nil
	}
	if c.ChaincodeID == "" {
		return errors.New("CHAINCODE_ID is required when CHAINCODE_SERVER_ADDRESS is set")
	}
	if !c.TLSDisabled && (c.TLSKeyFile == "" || c.TLSCertFile == "") {
		return errors.New("CHAINCODE_TLS_KEY_FILE and CHAINCODE_TLS_CERT_FILE are required when TLS is enabled")
	}
	return nil
}

// ExternalService reports whether the chaincode runs as its own gRPC server.
func (c Config) ExternalService() bool {
	return c.ServerAddress != ""
}

// TLSProperties reads the key material for the chaincode server.
func (c Config) TLSProperties() (shim.TLSProperties, error) {
	if c.TLSDisabled {
		return shim.TLSProperties{Disabled: true}, nil
	}
	key, err := os.ReadFile(c.TLSKeyFile)
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("read tls key: %w", err)
	}
	cert, err := os.ReadFile(c.TLSCertFile)
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("read tls cert: %w", err)
	}
	props := shim.TLSProperties{Key: key, Cert: cert}
	if c.ClientCACertFile != "" {
		ca, err := os.ReadFile(c.ClientCACertFile)
		if err != nil {
			return shim.TLSProperties{}, fmt.Errorf("read client ca cert: %w", err)
		}
		props.ClientCACerts = ca
	}
	return props, nil
}
