package bot

import (
	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/commands"
)

// Command names.
const (
	CmdStart        = "/start"
	CmdRecipe       = "/recipe"
	CmdAllRecipes   = "/all_recipes"
	CmdAdmin        = "/admin"
	CmdAddRecipe    = "/add_recipe"
	CmdEditRecipe   = "/edit_recipe"
	CmdDeleteRecipe = "/delete_recipe"
	CmdListRecipes  = "/list_recipes"
	CmdBroadcast    = "/broadcast"
	CmdStats        = "/stats"
	CmdGetDeepLink  = "/get_deep_link"
	CmdCancel       = "/cancel"
)

// NewRegistry registers the bot commands. Admin and hidden commands stay out
// of the public command menu.
func NewRegistry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand(CmdStart, commands.Command{Description: "Start the bot"})
	reg.RegisterCommand(CmdRecipe, commands.Command{Description: "Get a random recipe", Aliases: []string{"random"}})
	reg.RegisterCommand(CmdAllRecipes, commands.Command{Description: "Get all recipes"})

	reg.RegisterCommand(CmdAdmin, commands.Command{Description: "Show admin commands", AdminOnly: true})
	reg.RegisterCommand(CmdAddRecipe, commands.Command{Description: "Add a recipe", AdminOnly: true})
	reg.RegisterCommand(CmdEditRecipe, commands.Command{Description: "Edit a recipe", AdminOnly: true})
	reg.RegisterCommand(CmdDeleteRecipe, commands.Command{Description: "Delete a recipe", AdminOnly: true})
	reg.RegisterCommand(CmdListRecipes, commands.Command{Description: "List recipes", AdminOnly: true})
	reg.RegisterCommand(CmdBroadcast, commands.Command{Description: "Send a message to all users", AdminOnly: true})
	reg.RegisterCommand(CmdStats, commands.Command{Description: "Show statistics", AdminOnly: true})
	reg.RegisterCommand(CmdGetDeepLink, commands.Command{Description: "Get the onboarding link", AdminOnly: true})
	reg.RegisterCommand(CmdCancel, commands.Command{Description: "Cancel the current action", AdminOnly: true, Hidden: true})
	return reg
}
