// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the AgentCost API server.
//
// Usage:
//
//	./server [-config config.yaml]
//
// Environment variables override file settings:
//
//	SERVER_ADDR or PORT - HTTP listen address
//	DATABASE_URL - PostgreSQL connection string (required)
//	REDIS_URL - Redis connection string (optional)
//	JWT_SECRET - signing secret for dashboard tokens (required)
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/agentcost-ai/agentcost-backend/config"
	"github.com/agentcost-ai/agentcost-backend/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
