package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/config"
	"github.com/kilroy-tickets/kilroy/internal/ingotlog"
	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/ticket/cache"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
	"github.com/kilroy-tickets/kilroy/internal/ticket/registry"
	"github.com/kilroy-tickets/kilroy/internal/ticket/service"
)

func ticketCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "fetch":
		ticketFetch(args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func ticketFetch(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	var input, platformFlag string
	var skipCache, asJSON bool
	input = args[0]
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--platform":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--platform requires a value")
				os.Exit(1)
			}
			platformFlag = args[i]
		case "--skip-cache":
			skipCache = true
		case "--json":
			asJSON = true
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithErr(err)
	}
	raw, err := config.Load(cwd)
	if err != nil {
		exitWithErr(err)
	}
	typed, err := config.New(raw)
	if err != nil {
		exitWithErr(err)
	}
	log := ingotlog.New(ingotlog.Options{Enabled: typed.LogEnabled(), File: typed.LogFile()})

	reg := registry.New(log)
	registry.RegisterBuiltins(reg)
	reg.SetUserInteraction(provider.NonInteractiveUI{})

	fileCache, err := cache.NewFileCache(filepath.Join(cwd, ".kilroy-cache"), 500,
		time.Duration(typed.FetchCacheDurationHours)*time.Hour)
	if err != nil {
		exitWithErr(err)
	}

	kind := oracle.Kind(typed.Backend)
	var backend oracle.Backend
	if kind != "manual" {
		backend = oracle.NewCLIBackend(kind, string(kind))
	}

	svc := service.NewForBackend(reg, fileCache, backend, kind, typed.DefaultModel, raw)
	defer svc.Close()

	var platform model.Platform
	if platformFlag != "" {
		p, ok := model.ParsePlatform(platformFlag)
		if !ok {
			exitWithErr(fmt.Errorf("unknown platform %q", platformFlag))
		}
		platform = p
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	ticket, err := svc.GetTicket(ctx, service.GetTicketInput{
		Input:        input,
		Platform:     platform,
		SkipCache:    skipCache,
		FetchTimeout: time.Duration(typed.FetchTimeoutSeconds) * time.Second,
	})
	if err != nil {
		exitWithErr(err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"id":       ticket.ID(),
			"title":    ticket.Title(),
			"platform": ticket.Platform(),
		})
		return
	}
	fmt.Printf("%s: %s [%s]\n", ticket.ID(), ticket.Title(), ticket.Platform())
}
