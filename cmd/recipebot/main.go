package main

import (
	"log"

	"github.com/m3rciful/recipebot/core/cmd"
	"github.com/m3rciful/recipebot/internal/app"
)

func main() {
	if err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		log.Fatal(err)
	}
}
