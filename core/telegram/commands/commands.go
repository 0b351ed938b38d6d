package commands

import "strings"

// Command describes a bot command: menu text, access level and aliases.
// Dispatch lives in the router's rule table; the registry only carries metadata.
type Command struct {
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Normalize returns the command name with a single leading slash and without
// a trailing @botname suffix.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	return "/" + strings.ToLower(name)
}
