package database

import (
	"testing"

	"github.com/stemsi/modexam-backend/internal/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantPool int
		wantIdle int
		wantDB   int
	}{
		{
			name:     "url only",
			cfg:      config.Config{RedisURL: "redis://localhost:6379/2?pool_size=7"},
			wantPool: 7,
			wantDB:   2,
		},
		{
			name:     "config overrides",
			cfg:      config.Config{RedisURL: "redis://localhost:6379/0?pool_size=7", RedisPoolSize: 32, RedisMinIdle: 4},
			wantPool: 32,
			wantIdle: 4,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opt, err := redisOptions(&tc.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if opt.PoolSize != tc.wantPool || opt.MinIdleConns != tc.wantIdle || opt.DB != tc.wantDB {
				t.Errorf("pool=%d idle=%d db=%d", opt.PoolSize, opt.MinIdleConns, opt.DB)
			}
		})
	}

	if _, err := redisOptions(&config.Config{RedisURL: "://nope"}); err == nil {
		t.Error("bad URL should fail")
	}
}
