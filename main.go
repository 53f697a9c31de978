package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/colinkho/media-sub001/configure"
	"github.com/colinkho/media-sub001/format"
	"github.com/colinkho/media-sub001/protocol/api"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// VERSION is set at build time
var VERSION = "master"

func startAPI(registry *format.Registry, cfg configure.ServerCfg) error {
	listen, err := net.Listen("tcp", cfg.APIAddr)
	if err != nil {
		return err
	}
	server := api.NewServer(registry, api.NewReportCache(cfg.CacheTTL), cfg.MaxFileSize, cfg.RootDir)
	log.Info("HTTP-API listen On ", cfg.APIAddr)
	return server.Serve(listen)
}

func probeFile(ctx context.Context, registry *format.Registry, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	report, err := registry.Probe(ctx, f, info.Size())
	if err != nil {
		return errors.Wrap(err, name)
	}
	fmt.Printf("%s: %# v\n", name, pretty.Formatter(report))
	return nil
}

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := path.Base(f.File)
			return fmt.Sprintf("%s()", f.Function), fmt.Sprintf(" %s:%d", filename, f.Line)
		},
	})
}

func main() {
	files, err := configure.Init(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := configure.Current()
	if err != nil {
		log.Fatal(err)
	}
	log.Debugf("livephoto %s", VERSION)

	registry, err := format.NewDefault(cfg.Embedded)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.APIAddr != "" {
		if err := startAPI(registry, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: livephoto [flags] file...")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	failed := 0
	for _, name := range files {
		if err := probeFile(ctx, registry, name); err != nil {
			log.Error(err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
