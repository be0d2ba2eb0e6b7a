package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/clusterserver"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
)

const version = "0.1.0"

const storageDirPerm = 0750

func main() {
	_ = log.Logger

	serverID := flag.Uint64("server-id", 0, "This server's numeric identifier")
	advertiseIP := flag.String("ip", "127.0.0.1", "IP address this server advertises in heartbeats")
	storageDir := flag.String("storage", "build/chunks", "Chunk storage directory")
	storageIface := flag.String("iface", "", "Network interface to sample for bandwidth reporting (empty disables it)")
	addr := flag.String("addr", ":8091", "Chunk HTTP listen address")
	heartbeatAddr := flag.String("heartbeat-addr", "127.0.0.1:9000", "Health checker's heartbeat receiver address")
	heartbeatPeriod := flag.Duration("heartbeat-period", time.Second, "Interval between heartbeats")
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

	if *serverID == 0 {
		log.Fatal().Msg("a non-zero -server-id is required")
	}

	if err := os.MkdirAll(*storageDir, storageDirPerm); err != nil {
		log.Fatal().Err(err).Str("storage_dir", *storageDir).Msg("failed to create storage directory")
	}

	cfg := clusterserver.Config{
		ServerID:        *serverID,
		StorageDir:      *storageDir,
		StorageIface:    *storageIface,
		HeartbeatAddr:   *heartbeatAddr,
		AdvertiseIP:     *advertiseIP,
		Version:         version,
		HeartbeatPeriod: *heartbeatPeriod,
	}

	srv, err := clusterserver.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cluster server")
	}

	if err := srv.Start(*addr, cfg); err != nil {
		log.Fatal().Err(err).Msg("cluster server failed to start")
	}
	os.Exit(0)
}
