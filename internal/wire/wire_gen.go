// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/sevigo/graphwarden/internal/app"
	"github.com/sevigo/graphwarden/internal/config"
)

// InitializeApp creates and wires all application dependencies. Everything
// below the logger is constructed by app.NewApp itself.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerConfig := provideLoggerConfig(cfg)
	logWriter := provideLogWriter(cfg)
	slogLogger := provideDefaultSlogLogger(loggerConfig, logWriter)

	application, cleanup, err := app.NewApp(ctx, cfg, slogLogger)
	if err != nil {
		return nil, nil, err
	}

	return application, cleanup, nil
}
