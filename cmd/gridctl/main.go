package main

import (
	"bytes"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "upload":
		runUpload(os.Args[2:])
	case "download":
		runDownload(os.Args[2:])
	case "delete":
		runDelete(os.Args[2:])
	case "test":
		runTest(os.Args[2:])
	case "-h", "--help":
		usage()
	case "-v", "--version":
		fmt.Println(version) //nolint:forbidigo // CLI version output
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `gridctl - command-line client for the file grid's head server

Usage:
  gridctl upload   -head <addr> -name <name> <local-path>
  gridctl download -head <addr> -name <name> <local-path>
  gridctl delete   -head <addr> -name <name>
  gridctl test     -head <addr> -size <bytes>
  gridctl -v | --version
  gridctl -h | --help`)
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	head := fs.String("head", "http://127.0.0.1:8090", "Head server base URL")
	name := fs.String("name", "", "Name to store the file under")
	_ = fs.Parse(args)

	rest := fs.Args()
	if *name == "" || len(rest) != 1 {
		log.Fatal().Msg("usage: gridctl upload -head <addr> -name <name> <local-path>")
	}

	f, err := os.Open(rest[0]) //nolint:gosec // operator-supplied CLI path
	if err != nil {
		log.Fatal().Err(err).Str("path", rest[0]).Msg("failed to open local file")
	}
	defer func() { _ = f.Close() }()

	req, err := http.NewRequest(http.MethodPost, *head+"/files/"+*name, f)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("upload request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s: %s\n", resp.Status, body) //nolint:forbidigo // CLI output
	if resp.StatusCode >= http.StatusBadRequest {
		os.Exit(1)
	}
}

func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	head := fs.String("head", "http://127.0.0.1:8090", "Head server base URL")
	name := fs.String("name", "", "Name the file is stored under")
	_ = fs.Parse(args)

	rest := fs.Args()
	if *name == "" || len(rest) != 1 {
		log.Fatal().Msg("usage: gridctl download -head <addr> -name <name> <local-path>")
	}

	resp, err := http.Get(*head + "/files/" + *name) //nolint:gosec,noctx // CLI tool, fixed target per -head flag
	if err != nil {
		log.Fatal().Err(err).Msg("download request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatal().Int("status", resp.StatusCode).Str("body", string(body)).Msg("download failed")
	}

	out, err := os.Create(rest[0]) //nolint:gosec // operator-supplied CLI path
	if err != nil {
		log.Fatal().Err(err).Str("path", rest[0]).Msg("failed to create local file")
	}
	defer func() { _ = out.Close() }()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		// the head server had already sent 200 OK and started streaming when
		// this failed (e.g. the connection dropped partway through the body);
		// the partial output file must not be left behind.
		_ = out.Close()
		_ = os.Remove(rest[0])
		log.Fatal().Err(err).Msg("failed to write downloaded data, removed partial output file")
	}
	fmt.Printf("downloaded %s to %s\n", humanize.Bytes(uint64(written)), rest[0]) //nolint:forbidigo,gosec // CLI output; io.Copy never returns negative
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	head := fs.String("head", "http://127.0.0.1:8090", "Head server base URL")
	name := fs.String("name", "", "Name the file is stored under")
	_ = fs.Parse(args)

	if *name == "" {
		log.Fatal().Msg("usage: gridctl delete -head <addr> -name <name>")
	}

	req, err := http.NewRequest(http.MethodDelete, *head+"/files/"+*name, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("delete request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	fmt.Println(resp.Status) //nolint:forbidigo // CLI output
}

// runTest exercises the head server's full upload/download/delete path
// against a random payload, to smoke-test a deployment end to end.
func runTest(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	head := fs.String("head", "http://127.0.0.1:8090", "Head server base URL")
	size := fs.Int("size", 4<<20, "Size in bytes of the random payload to round-trip")
	_ = fs.Parse(args)

	payload := make([]byte, *size)
	if _, err := rand.Read(payload); err != nil {
		log.Fatal().Err(err).Msg("failed to generate test payload")
	}
	name := fmt.Sprintf("gridctl-test-%d", time.Now().UnixNano())

	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, *head+"/files/"+name, bytes.NewReader(payload))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build upload request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("upload request failed")
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Fatal().Int("status", resp.StatusCode).Msg("test upload failed")
	}
	uploadElapsed := time.Since(start)

	start = time.Now()
	resp, err = http.Get(*head + "/files/" + name) //nolint:gosec,noctx // CLI tool, fixed target per -head flag
	if err != nil {
		log.Fatal().Err(err).Msg("download request failed")
	}
	got, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read downloaded payload")
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatal().Int("status", resp.StatusCode).Msg("test download failed")
	}
	downloadElapsed := time.Since(start)

	if !bytes.Equal(payload, got) {
		log.Fatal().Msg("round-tripped payload does not match what was uploaded")
	}

	req, err = http.NewRequest(http.MethodDelete, *head+"/files/"+name, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build delete request")
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("delete request failed")
	}
	_ = resp.Body.Close()

	fmt.Printf("round-tripped %s in %s (upload) + %s (download), payload matched\n", //nolint:forbidigo // CLI output
		humanize.Bytes(uint64(*size)), uploadElapsed, downloadElapsed) //nolint:gosec // CLI flag, operator-supplied
}
