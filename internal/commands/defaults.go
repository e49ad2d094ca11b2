package commands

import "voxroute/internal/domain"

// DefaultCommands is the built-in catalog loaded at startup.
func DefaultCommands() []domain.Command {
	return []domain.Command{
		{ID: "window-left-half", Phrases: []string{"left half", "snap left"}, ScriptRef: "window-left-half.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "window-right-half", Phrases: []string{"right half", "snap right"}, ScriptRef: "window-right-half.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "window-maximize", Phrases: []string{"maximize window", "full screen"}, ScriptRef: "window-maximize.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "window-center", Phrases: []string{"center window"}, ScriptRef: "window-center.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "open-application", Phrases: []string{"open application", "launch"}, ScriptRef: "open-application.sh", MatchType: domain.MatchPrefix},
		{ID: "search-web", Phrases: []string{"search for", "google"}, ScriptRef: "search-web.sh", MatchType: domain.MatchPrefix},
		{ID: "volume-up", Phrases: []string{"volume up", "louder"}, ScriptRef: "volume-up.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "volume-down", Phrases: []string{"volume down", "quieter"}, ScriptRef: "volume-down.sh", MatchType: domain.MatchExactOrFuzzy},
		{ID: "lock-screen", Phrases: []string{"lock screen", "lock computer"}, ScriptRef: "lock-screen.sh", MatchType: domain.MatchExactOrFuzzy},
	}
}
