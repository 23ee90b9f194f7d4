package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tms-widget/internal/config"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/repository/contract"
	"tms-widget/internal/repository/implementation"
	"tms-widget/internal/repository/memory"
	"tms-widget/internal/storage"
	"tms-widget/internal/widget"
	"tms-widget/pkg/events"

	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid widget configuration: %v", err)
	}

	// Logs go to the file only; the terminal belongs to the chat.
	sysLogger := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	defer sysLogger.Sync()

	// 2. Storage backend
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer closeStore()
	manager := storage.NewManager(store, cfg.Widget.WidgetID, storage.WithLogger(sysLogger))
	if cfg.Storage.SnapshotFile != "" {
		if err := restoreSnapshot(manager, cfg.Storage.SnapshotFile); err != nil {
			log.Fatalf("Failed to restore storage snapshot: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Widget
	view := newTerminalView(os.Stdout)
	w, err := widget.New(cfg.Widget,
		widget.WithStorage(manager),
		widget.WithView(view),
		widget.WithLogger(sysLogger),
	)
	if err != nil {
		log.Fatalf("Failed to create widget: %v", err)
	}
	defer w.Destroy()

	w.On(events.TypeError, func(e events.Event) {
		if msg, ok := e.Payload()["message"].(string); ok {
			view.printError(msg)
		}
	})

	if err := w.Init(ctx); err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(helpText)

	// 4. stdin loop
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := execute(w, line)
			switch {
			case errors.Is(err, errHelp):
				fmt.Println(helpText)
			case err != nil:
				view.printError(err.Error())
			}
			if quit {
				return
			}
		}
	}
}

func openStore(cfg config.StorageConfig) (contract.KeyValueStore, func(), error) {
	switch cfg.Driver {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		return implementation.NewRedisKeyValueStore(client, cfg.Namespace), func() { client.Close() }, nil
	default:
		return memory.NewKeyValueStore(), func() {}, nil
	}
}
