package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/louisbranch/phototropic/internal/cmd/client"
	entrypoint "github.com/louisbranch/phototropic/internal/platform/cmd"
	"github.com/louisbranch/phototropic/internal/platform/config"
	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
)

func main() {
	cfg, err := clientcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.ServiceClient.LogPrefix)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = clientcmd.Run(ctx, cfg)
	if apperrors.CodeOf(err) == apperrors.CodePeerDisconnected {
		stop()
		config.Exitf(config.ExitDisconnected, "lost connection to server: %v", err)
	}
	if err != nil {
		log.Fatalf("client: %v", err)
	}
}
