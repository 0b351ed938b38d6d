// Package config loads the recipe bot configuration: the core settings plus
// the database and recipe sections.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/recipebot/core/config"
	coredatabase "github.com/m3rciful/recipebot/core/database"
)

const (
	defaultWelcomeText = "Hello, friends! 👩‍🍳👨‍🍳\n\n" +
		"Welcome to the course. Here you will find detailed step-by-step recipes " +
		"and tips on avoiding common baking mistakes.\n\n" +
		"Enjoy and happy baking!"
	defaultCommandsText  = "What you can do:\n/recipe - Get a random recipe\n/all_recipes - Get all recipes\n"
	defaultNoRecipesText = "No recipes available yet."
)

// RecipesConfig holds the onboarding secret, texts and pacing delays.
type RecipesConfig struct {
	ValidCode         string   `yaml:"valid_code" envconfig:"VALID_CODE"`
	WelcomeVideoNotes []string `yaml:"welcome_video_notes" envconfig:"WELCOME_VIDEO_NOTES"`

	WelcomeText   string `yaml:"welcome_text" envconfig:"WELCOME_TEXT"`
	CommandsText  string `yaml:"commands_text" envconfig:"COMMANDS_TEXT"`
	NoRecipesText string `yaml:"no_recipes_text" envconfig:"NO_RECIPES_TEXT"`

	ListDelayMS      int `yaml:"list_delay_ms" envconfig:"LIST_DELAY_MS"`
	BroadcastDelayMS int `yaml:"broadcast_delay_ms" envconfig:"BROADCAST_DELAY_MS"`
	WelcomeDelayMS   int `yaml:"welcome_delay_ms" envconfig:"WELCOME_DELAY_MS"`
	VideoNoteDelayMS int `yaml:"video_note_delay_ms" envconfig:"VIDEO_NOTE_DELAY_MS"`
}

// SenderConfig bounds retries of outbound calls.
type SenderConfig struct {
	MaxRetries     int `yaml:"max_retries" envconfig:"SEND_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SEND_RETRY_BACKOFF_MS"`
	MaxDurationMS  int `yaml:"max_duration_ms" envconfig:"SEND_MAX_DURATION_MS"`
}

// Config is the full recipe bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Recipes  RecipesConfig       `yaml:"recipes"`
	Sender   SenderConfig        `yaml:"sender"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path (optional), .env and the environment, then
// validates and applies defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	r := &c.Recipes
	r.ValidCode = strings.TrimSpace(r.ValidCode)
	notes := r.WelcomeVideoNotes[:0]
	for _, n := range r.WelcomeVideoNotes {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	r.WelcomeVideoNotes = notes
	if r.WelcomeText == "" {
		r.WelcomeText = defaultWelcomeText
	}
	if r.CommandsText == "" {
		r.CommandsText = defaultCommandsText
	}
	if r.NoRecipesText == "" {
		r.NoRecipesText = defaultNoRecipesText
	}
	for name, v := range map[string]*int{
		"list_delay_ms":       &r.ListDelayMS,
		"broadcast_delay_ms":  &r.BroadcastDelayMS,
		"welcome_delay_ms":    &r.WelcomeDelayMS,
		"video_note_delay_ms": &r.VideoNoteDelayMS,
	} {
		if *v < 0 {
			return fmt.Errorf("recipes.%s must be >= 0", name)
		}
	}
	if r.ListDelayMS == 0 {
		r.ListDelayMS = 500
	}
	if r.BroadcastDelayMS == 0 {
		r.BroadcastDelayMS = 100
	}
	if r.WelcomeDelayMS == 0 {
		r.WelcomeDelayMS = 500
	}
	if r.VideoNoteDelayMS == 0 {
		r.VideoNoteDelayMS = 2000
	}

	if c.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	if c.Sender.MaxRetries == 0 {
		c.Sender.MaxRetries = 2
	}
	return nil
}

// Delay converts a millisecond setting into a duration.
func Delay(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
