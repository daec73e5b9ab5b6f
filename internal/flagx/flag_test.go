package flagx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	serverFlags := []string{"-a", "-g", "-d", "-s", "-k", "-t", "-u", "-b", "-l"}
	clientFlags := []string{"-s", "-t"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "server flags kept, config flag dropped",
			args:    []string{"-c", "server.yaml", "-a", ":8080", "-l", "debug"},
			allowed: serverFlags,
			want:    []string{"-a", ":8080", "-l", "debug"},
		},
		{
			name:    "config flag in equals form",
			args:    []string{"-config=server.yaml", "-b", "s3"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=server.yaml"},
		},
		{
			name:    "dsn with equals signs in separate value",
			args:    []string{"-d", "postgres://u:p@db/pdfsigner?sslmode=disable"},
			allowed: serverFlags,
			want:    []string{"-d", "postgres://u:p@db/pdfsigner?sslmode=disable"},
		},
		{
			name:    "client ignores server-only flags",
			args:    []string{"-s", "http://signer:5000", "-b", "local", "-t", "10"},
			allowed: clientFlags,
			want:    []string{"-s", "http://signer:5000", "-t", "10"},
		},
		{
			name:    "positional arguments ignored",
			args:    []string{"contract.pdf", "-u", "https://sign.example.com"},
			allowed: serverFlags,
			want:    []string{"-u", "https://sign.example.com"},
		},
		{
			name:    "flag without value at end is kept as-is",
			args:    []string{"-a"},
			allowed: serverFlags,
			want:    []string{"-a"},
		},
		{
			name:    "next dash-starting token is not a value",
			args:    []string{"-s", "-t", "5"},
			allowed: clientFlags,
			want:    []string{"-s", "-t", "5"},
		},
		{
			name:    "equals value that looks like a flag",
			args:    []string{"-k=-secret-"},
			allowed: serverFlags,
			want:    []string{"-k=-secret-"},
		},
		{
			name:    "repeated flag is preserved in order",
			args:    []string{"-g", ":50051", "-g", ":50052"},
			allowed: serverFlags,
			want:    []string{"-g", ":50051", "-g", ":50052"},
		},
		{
			name:    "empty args",
			args:    []string{},
			allowed: serverFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	t.Run("short -c with value", func(t *testing.T) {
		assert.Equal(t, "/path/short.yaml", ConfigFileFlag([]string{"-c", "/path/short.yaml"}))
	})

	t.Run("long -config with value", func(t *testing.T) {
		assert.Equal(t, "/path/long.json", ConfigFileFlag([]string{"-config", "/path/long.json"}))
	})

	t.Run("equals form mixed with server flags", func(t *testing.T) {
		assert.Equal(t, "conf.json", ConfigFileFlag([]string{"-a", ":8080", "-config=conf.json", "-d", "dsn"}))
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		assert.Empty(t, ConfigFileFlag([]string{"-x", "1", "-y", "2"}))
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		assert.Equal(t, "/path/2.json", ConfigFileFlag([]string{"-c", "/path/1.json", "-config", "/path/2.json"}))
	})
}
