package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/headserver"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/transport"
)

const version = "0.1.0"

const (
	defaultRetryMax            = 3
	defaultRetryWaitMax        = 30 * time.Second
	defaultHealthCheckInterval = 5 * time.Second
	defaultHealthCheckTimeout  = 5 * time.Second
)

func main() {
	_ = log.Logger

	var clusterServers string
	flag.StringVar(&clusterServers, "cluster-servers", "", "Comma-separated list of cluster server addresses (host:port)")
	addr := flag.String("addr", ":8090", "Head server listen address")
	replicationFactor := flag.Int("replication-factor", 3, "Number of replicas per chunk")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "Redis address for the metadata store")
	redisPassword := flag.String("redis-password", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis database index")
	inMemory := flag.Bool("in-memory-metastore", false, "Use an in-process metadata store instead of Redis")
	retryMax := flag.Int("retry-max", defaultRetryMax, "Maximum chunk-transfer retries")
	retryWaitMin := flag.Duration("retry-wait-min", time.Second, "Minimum wait between chunk-transfer retries")
	retryWaitMax := flag.Duration("retry-wait-max", defaultRetryWaitMax, "Maximum wait between chunk-transfer retries")
	healthCheckInterval := flag.Duration("health-check-interval", defaultHealthCheckInterval, "Interval between cluster server polls")
	healthCheckTimeout := flag.Duration("health-check-timeout", defaultHealthCheckTimeout, "Timeout for cluster server polls")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version) //nolint:forbidigo // CLI version output
		os.Exit(0)
	}

	if *debug {
		log.SetDebugMode()
	}

	if clusterServers == "" {
		log.Fatal().Msg("at least one cluster server must be specified with -cluster-servers")
	}
	servers := splitTrim(clusterServers)

	var store metastore.MetaStore
	if *inMemory {
		store = metastore.NewMemoryStore()
	} else {
		store = metastore.NewRedisStore(*redisAddr, *redisPassword, *redisDB)
	}

	xport := transport.New(*retryMax, *retryWaitMin, *retryWaitMax)

	srv := headserver.New(headserver.Config{
		ClusterServers:      servers,
		ReplicationFactor:   *replicationFactor,
		HealthCheckInterval: *healthCheckInterval,
		HealthCheckTimeout:  *healthCheckTimeout,
		Version:             version,
	}, store, xport)

	if err := srv.Start(*addr); err != nil {
		log.Fatal().Err(err).Msg("head server failed to start")
	}
	os.Exit(0)
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
