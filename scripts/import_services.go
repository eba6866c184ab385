package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"glowbook/internal/database"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type ServicesFile struct {
	Services []models.Service `yaml:"services"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		servicesPath = flag.String("services", "configs/services.yaml", "path to services.yaml")
		dbPath       = flag.String("db", "./data/glowbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*servicesPath)
	if err != nil {
		return fmt.Errorf("read services: %w", err)
	}
	var file ServicesFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse services: %w", err)
	}
	if len(file.Services) == 0 {
		return fmt.Errorf("no services in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range file.Services {
		svc := file.Services[i]
		if strings.TrimSpace(svc.Title) == "" || svc.ProviderID == "" {
			continue
		}
		if svc.ID > 0 {
			_, err = db.GetServiceByID(ctx, svc.ID)
			if err == nil {
				if err = db.UpdateService(ctx, &svc); err != nil {
					return fmt.Errorf("update %s: %w", svc.Title, err)
				}
				updated++
				continue
			}
			if !errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("get %s: %w", svc.Title, err)
			}
		}
		if err = db.CreateService(ctx, &svc); err != nil {
			return fmt.Errorf("create %s: %w", svc.Title, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
