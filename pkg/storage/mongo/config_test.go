package mongo

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		dbName     string
		wantErr    bool
		wantURI    string
		wantDBName string
	}{
		{
			name:       "no auth",
			env:        map[string]string{"MONGO_HOST": "db", "MONGO_PORT": "27018", "MONGO_DB_NAME": "rw"},
			wantURI:    "mongodb://db:27018/",
			wantDBName: "rw",
		},
		{
			name: "with auth",
			env: map[string]string{
				"MONGO_HOST": "db", "MONGO_PORT": "27017", "MONGO_DB_NAME": "railwatch",
				"MONGO_USER": "admin", "MONGO_PASS": "secret",
			},
			wantURI:    "mongodb://admin:secret@db:27017/",
			wantDBName: "railwatch",
		},
		{
			name:       "user without password",
			env:        map[string]string{"MONGO_HOST": "db", "MONGO_USER": "admin"},
			wantURI:    "mongodb://db:27017/",
			wantDBName: DefaultDBName,
		},
		{
			name:       "defaults port and db name",
			env:        map[string]string{"MONGO_HOST": "db"},
			wantURI:    "mongodb://db:27017/",
			wantDBName: DefaultDBName,
		},
		{
			name:       "caller db name",
			env:        map[string]string{"MONGO_HOST": "db"},
			dbName:     "railwatch_dev",
			wantURI:    "mongodb://db:27017/",
			wantDBName: "railwatch_dev",
		},
		{
			name:    "missing host",
			env:     map[string]string{"MONGO_PORT": "27017", "MONGO_DB_NAME": "railwatch"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"MONGO_HOST", "MONGO_PORT", "MONGO_DB_NAME", "MONGO_USER", "MONGO_PASS"} {
				t.Setenv(k, tt.env[k])
			}

			conf, err := ConfigFromEnv(tt.dbName)
			if tt.wantErr {
				if !errors.Is(err, ErrConfParamMissing) {
					t.Errorf("want ErrConfParamMissing, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := conf.conString(); got != tt.wantURI {
				t.Errorf("want %q, got %q", tt.wantURI, got)
			}
			if conf.DBName != tt.wantDBName {
				t.Errorf("want DB name %q, got %q", tt.wantDBName, conf.DBName)
			}
		})
	}
}

func TestConfig_String(t *testing.T) {
	conf := Config{Host: "db", Port: "27017", DBName: "railwatch", User: "admin", Pass: "sécret"}

	got := conf.String()
	if strings.Contains(got, "sécret") {
		t.Errorf("password leaked in %s", got)
	}
	if !strings.Contains(got, `"******"`) {
		t.Errorf("want masked password of the same length in %s", got)
	}
	if conf.Pass != "sécret" {
		t.Error("String() modified the config")
	}
}

func TestConfig_Options(t *testing.T) {
	conf := Config{Host: "db", Port: "27017"}

	opts := conf.Options()
	if opts.ServerSelectionTimeout == nil || *opts.ServerSelectionTimeout != serverSelectionTimeout {
		t.Errorf("want server selection timeout %v, got %v", serverSelectionTimeout, opts.ServerSelectionTimeout)
	}
	if len(opts.Hosts) != 1 || opts.Hosts[0] != "db:27017" {
		t.Errorf("want hosts [db:27017], got %v", opts.Hosts)
	}
}
