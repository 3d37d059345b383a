package container

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Store backends accepted by --store.
const (
	StoreEtcd   = "etcd"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Options is the service configuration, read from flags and SERVICE_* environment variables.
type Options struct {
	Port    int    `default:"8000"                  help:"Port to listen on"                              short:"p"`
	BaseURL string `default:"http://localhost:8000" help:"Public base URL advertised in the ACME directory"`

	Store         string        `default:"etcd"           help:"Rate limit store: etcd, redis or memory"`
	EtcdEndpoints string        `default:"localhost:2379" help:"Comma separated etcd endpoints"`
	EtcdUsername  string        `help:"etcd user name"`
	EtcdPassword  string        `help:"etcd password"`
	DialTimeout   time.Duration `default:"5s"             help:"Timeout for establishing store connections"`
	CallTimeout   time.Duration `default:"2s"             help:"Timeout for a single store request"`
	RedisAddr     string        `default:"localhost:6379" help:"Redis server address"                    short:"r"`
	DatabaseURL   string        `help:"PostgreSQL connection URL, accounts are kept in memory when empty"`

	MaxWindow     time.Duration `default:"3h"   help:"Longest window any limit may use"`
	GlobalLimit   int           `default:"300"  help:"Requests per client per global window"`
	GlobalWindow  time.Duration `default:"1m"   help:"Window of the global limit"`
	NonceLimit    int           `default:"120"  help:"Nonces per client per nonce window"`
	NonceWindow   time.Duration `default:"1m"   help:"Window of the nonce limit"`
	RetryAttempts int           `default:"3"    help:"Attempts for recording a request"`
	RetryBackoff  time.Duration `default:"10ms" help:"Pause between recording attempts"`
	StoreRate     int           `default:"0"    help:"Store requests per second, 0 disables shaping"`
	StoreBurst    int           `default:"50"   help:"Burst allowed above the store rate"`
	StoreInflight int           `default:"0"    help:"Concurrent store requests, 0 disables the bound"`
	StoreRetries  int           `default:"1"    help:"Attempts per store request, 1 disables transport retries"`

	Events    bool   `default:"true"    help:"Publish rejection events to redis streams"`
	LogFormat string `default:"json"    help:"Log format: json or console"`
	LogLevel  string `default:"info"    help:"Log level"`
	Consumers string `default:"acmon"   help:"Consumer group name for the event consumer"`
}

// Endpoints splits EtcdEndpoints.
func (o *Options) Endpoints() []string {
	var endpoints []string

	for _, e := range strings.Split(o.EtcdEndpoints, ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return endpoints
}

// Validate reports configuration that cannot work.
func (o *Options) Validate() error {
	switch o.Store {
	case StoreEtcd:
		if len(o.Endpoints()) == 0 {
			return fmt.Errorf("container: store %s needs at least one endpoint", o.Store)
		}
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("container: unknown store %q", o.Store)
	}

	if o.RetryAttempts < 1 {
		return errors.New("container: retry attempts must be at least 1")
	}

	for name, v := range map[string]int{
		"global limit":   o.GlobalLimit,
		"nonce limit":    o.NonceLimit,
		"store rate":     o.StoreRate,
		"store burst":    o.StoreBurst,
		"store inflight": o.StoreInflight,
		"store retries":  o.StoreRetries,
	} {
		if v < 0 || int64(v) > math.MaxUint32 {
			return fmt.Errorf("container: %s %d out of range", name, v)
		}
	}

	return nil
}
