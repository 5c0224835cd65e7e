// Package config loads rules presets and the chat suggestion library.
//
// Presets are JSON files in a config directory, one per file, named by their
// id (classic.json is the preset "classic"). A file only needs the fields it
// changes; everything else falls back to engine.DefaultRules. Presets are
// validated with engine.ValidateRules and cached after the first load.
//
// Example preset:
//
//	{
//	  "name": "quick",
//	  "description": "Short phases for small tables",
//	  "durations": {"day_discussion": 30, "day_voting": 20, "night_action": 20}
//	}
//
// The default preset is classic.json when present, otherwise the first valid
// preset, otherwise the built-in defaults.
//
// SuggestionBook serves canned chat lines by role and phase from memory;
// store/postgres can serve the same library from a database.
package config
