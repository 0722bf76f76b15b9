package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/workflow"
)

// skipConfigAnnotation marks commands that must run without a loadable
// config, such as config init.
const skipConfigAnnotation = "bisub/skip-config"

var skipConfig = map[string]string{skipConfigAnnotation: "1"}

// commandContext carries the lazily loaded config shared by every command.
type commandContext struct {
	configFlag *string

	load   sync.Once
	cfg    *config.Config
	cfgErr error
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the config on first use and creates its directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		c.cfg, c.cfgErr = cfg, err
	})
	if c.cfgErr != nil {
		return nil, c.cfgErr
	}
	return c.cfg, nil
}

// configValue is ensureConfig for commands already past PersistentPreRunE.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withManager builds an unstarted workflow manager over the queue database.
// Submit, Poll, Cancel, and Retry only touch the store, so the daemon sees
// their effects on its next poll.
func (c *commandContext) withManager(fn func(*workflow.Manager, *queue.Store) error) error {
	return c.withStore(func(store *queue.Store) error {
		return fn(workflow.NewManager(c.cfg, store, logging.NewNop()), store)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if _, ok := cmd.Annotations[skipConfigAnnotation]; ok {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
