package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	_ "github.com/JonMunkholm/sheet2neon/internal/core/entities" // Register all entities
	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/rules"
	"github.com/JonMunkholm/sheet2neon/internal/service"
	"github.com/JonMunkholm/sheet2neon/internal/store"
)

// commandContext loads configuration once per process and hands commands a
// ready service.
type commandContext struct {
	rulesFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(rulesFlag *string) *commandContext {
	return &commandContext{rulesFlag: rulesFlag}
}

func (c *commandContext) rulesPath() string {
	if c.rulesFlag != nil {
		if p := strings.TrimSpace(*c.rulesFlag); p != "" {
			return p
		}
	}
	return os.Getenv("RULES_FILE")
}

// ensureConfig reads the environment. --rules stands in for RULES_FILE so
// validation sees it too.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		rulesPath := c.rulesPath()
		cfg, err := config.LoadFrom(func(key string) (string, bool) {
			if key == "RULES_FILE" {
				return rulesPath, rulesPath != ""
			}
			return os.LookupEnv(key)
		})
		if err != nil {
			c.configErr = withCode(exitConfig, err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loadRules() (*rules.RuleSet, error) {
	return rules.Load(c.rulesPath())
}

// commandLogger writes to stderr so stdout carries only the report.
func commandLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
}

// openStore connects and makes sure the tables exist.
func (c *commandContext) openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, withCode(exitDatabase, err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, withCode(exitDatabase, err)
	}
	return st, nil
}

// withService runs fn against a service backed by the configured store.
func (c *commandContext) withService(cmd *cobra.Command, fn func(context.Context, *service.Service, *config.Config) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rs, err := c.loadRules()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := commandLogger(cmd, cfg)
	ctx = logging.WithLogger(ctx, logger)

	st, err := c.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := service.OptionsFromConfig(cfg, rs)
	opts.Logger = logger
	return fn(ctx, service.New(st, opts), cfg)
}
