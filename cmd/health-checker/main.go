package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/healthchecker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/liveness"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/transport"
)

const version = "0.1.0"

const (
	defaultRetryMax     = 3
	defaultRetryWaitMax = 30 * time.Second
)

func main() {
	_ = log.Logger

	addr := flag.String("addr", ":9000", "Heartbeat receiver listen address")
	metricsAddr := flag.String("metrics-addr", ":9100", "Prometheus metrics listen address (empty disables it)")
	numWorkers := flag.Int("workers", 0, "Number of worker goroutines (0 = number of CPUs)")
	heartbeatTimeout := flag.Duration("heartbeat-timeout", liveness.DefaultHeartbeatTimeout, "Time without a heartbeat before a miss is recorded")
	maxMissed := flag.Int("max-missed-heartbeats", liveness.DefaultMaxMissedHeartbeats, "Missed heartbeats before a server is declared unhealthy")
	sweepInterval := flag.Duration("sweep-interval", liveness.DefaultSweepInterval, "Interval between liveness sweeps")
	replicationFactor := flag.Int("replication-factor", 3, "Target replica count during re-replication")
	var candidateServers string
	flag.StringVar(&candidateServers, "candidate-servers", "", "Comma-separated list of cluster servers eligible for re-replication")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "Redis address for the metadata store")
	redisPassword := flag.String("redis-password", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis database index")
	inMemory := flag.Bool("in-memory-metastore", false, "Use an in-process metadata store instead of Redis")
	retryMax := flag.Int("retry-max", defaultRetryMax, "Maximum chunk-transfer retries")
	retryWaitMin := flag.Duration("retry-wait-min", time.Second, "Minimum wait between chunk-transfer retries")
	retryWaitMax := flag.Duration("retry-wait-max", defaultRetryWaitMax, "Maximum wait between chunk-transfer retries")
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

	workers := *numWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var store metastore.MetaStore
	if *inMemory {
		store = metastore.NewMemoryStore()
	} else {
		store = metastore.NewRedisStore(*redisAddr, *redisPassword, *redisDB)
	}

	xport := transport.New(*retryMax, *retryWaitMin, *retryWaitMax)
	candidates := splitTrim(candidateServers)

	cfg := healthchecker.Config{
		ListenAddr:          *addr,
		NumWorkers:          workers,
		HeartbeatTimeout:    *heartbeatTimeout,
		MaxMissedHeartbeats: *maxMissed,
		SweepInterval:       *sweepInterval,
		MetricsAddr:         *metricsAddr,
		ReplicationFactor:   *replicationFactor,
	}

	checker := healthchecker.New(cfg, store, xport, func() []string { return candidates })
	if err := checker.Start(cfg); err != nil {
		log.Fatal().Err(err).Msg("health checker failed to start")
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
