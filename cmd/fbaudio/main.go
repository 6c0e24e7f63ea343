package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fbaudio/internal/app"
	"fbaudio/internal/config"
	"fbaudio/internal/logging"
	"fbaudio/internal/searchcache"
)

func main() {
	execute := flag.String("c", "", "run a single command and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("failed to resolve home directory: %v", err)
	}

	baseDir := filepath.Join(home, ".fbaudio")
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		log.Fatalf("failed to create config directory: %v", err)
	}

	logPath := filepath.Join(baseDir, "fbaudio.log")
	logging.Configure(logPath)

	configPath := filepath.Join(baseDir, "config.yaml")
	cfg, err := config.Ensure(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cachePath := filepath.Join(baseDir, "cache.db")
	db, err := searchcache.Open(cachePath)
	if err != nil {
		log.Fatalf("failed to open search cache: %v", err)
	}
	defer db.Close()

	application, err := app.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}
	defer application.Close()

	if *execute != "" {
		result, err := application.Execute(ctx, *execute)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if result.Message != "" {
			fmt.Println(result.Message)
		}
		return
	}

	runREPL(ctx, application)
}

func runREPL(ctx context.Context, application *app.App) {
	fmt.Println("fbaudio - type help for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-application.LibraryChanged():
			fmt.Println("library changed on disk; downloaded talks re-read")
		default:
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		result, err := application.Execute(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if result.Message != "" {
			fmt.Println(result.Message)
		}
		if result.Quit {
			return
		}
	}
}
