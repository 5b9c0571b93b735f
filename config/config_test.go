package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"CHAINCODE_SERVER_ADDRESS",
	"CHAINCODE_ID",
	"CHAINCODE_TLS_DISABLED",
	"CHAINCODE_TLS_KEY_FILE",
	"CHAINCODE_TLS_CERT_FILE",
	"CHAINCODE_CLIENT_CA_CERT_FILE",
	"RAFFLE_LOG_SPEC",
}

// clearEnv unsets every config variable for the test and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range configVars {
		name := name
		if old, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { os.Setenv(name, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(name) })
		}
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ExternalService())
	assert.True(t, cfg.TLSDisabled)
	assert.Equal(t, "info", cfg.LogSpec)
}

func TestLoadReadsDotenv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "raffle.env")
	content := "CHAINCODE_SERVER_ADDRESS=0.0.0.0:9999\nCHAINCODE_ID=raffle:abc\nRAFFLE_LOG_SPEC=raffle.contract=debug:info\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(envFileVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ExternalService())
	assert.Equal(t, "0.0.0.0:9999", cfg.ServerAddress)
	assert.Equal(t, "raffle:abc", cfg.ChaincodeID)
	assert.Equal(t, "raffle.contract=debug:info", cfg.LogSpec)
}

func TestEnvironmentWinsOverDotenv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "raffle.env")
	require.NoError(t, os.WriteFile(path, []byte("RAFFLE_LOG_SPEC=debug\n"), 0o600))
	t.Setenv(envFileVar, path)
	t.Setenv("RAFFLE_LOG_SPEC", "warning")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.LogSpec)
}

func TestLoadParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAINCODE_TLS_DISABLED", "sometimes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"peer launched", Config{TLSDisabled: true, LogSpec: "info"}, ""},
		{"empty log spec", Config{LogSpec: ""}, "RAFFLE_LOG_SPEC"},
		{"server without id", Config{ServerAddress: ":9999", TLSDisabled: true, LogSpec: "info"}, "CHAINCODE_ID"},
		{"tls without key", Config{ServerAddress: ":9999", ChaincodeID: "cc", LogSpec: "info"}, "CHAINCODE_TLS_KEY_FILE"},
		{"tls complete", Config{ServerAddress: ":9999", ChaincodeID: "cc", TLSKeyFile: "k", TLSCertFile: "c", LogSpec: "info"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTLSProperties(t *testing.T) {
	props, err := Config{TLSDisabled: true}.TLSProperties()
	require.NoError(t, err)
	assert.True(t, props.Disabled)

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}
	cfg := Config{
		TLSKeyFile:       write("key.pem", "KEY"),
		TLSCertFile:      write("cert.pem", "CERT"),
		ClientCACertFile: write("ca.pem", "CA"),
	}
	props, err = cfg.TLSProperties()
	require.NoError(t, err)
	assert.False(t, props.Disabled)
	assert.Equal(t, []byte("KEY"), props.Key)
	assert.Equal(t, []byte("CERT"), props.Cert)
	assert.Equal(t, []byte("CA"), props.ClientCACerts)

	_, err = Config{TLSKeyFile: filepath.Join(dir, "absent")}.TLSProperties()
	assert.Error(t, err)
}
