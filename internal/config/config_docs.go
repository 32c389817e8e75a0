package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "presence.user_id")
// to their [FieldDoc] entries. Every field of [Config] must have an entry.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Managed by badgecord; older files are upgraded\nin place and the previous copy is kept as config.toml.bak.",
	},

	// ── Presence ─────────────────────────────────────────────────
	"presence.user_id": {
		Comment: "Discord user to show. The user must be monitored by Lanyard\n(join discord.gg/lanyard once). The placeholder below disables fetching.",
		Alternatives: []string{
			`user_id = "94490510688792576"`,
		},
	},
	"presence.api_base": {
		Comment: "Lanyard API origin. Point this at a self-hosted instance if you run one.",
	},
	"presence.profile_base": {
		Comment: "Origin of the profile link copied on double-click: {profile_base}/users/{id}",
	},
	"presence.poll_interval_seconds": {
		Comment: "Seconds between presence fetches.",
	},
	"presence.fetch_timeout_seconds": {
		Comment: "Seconds before a single fetch is abandoned and shown as a connection error.\nMust be smaller than poll_interval_seconds.",
	},
	"presence.hide_delay_ms": {
		Comment: "How long the detail card stays open after the pointer leaves the badge.",
	},
	"presence.avatar_size": {
		Comment: "Avatar size requested from the Discord CDN. Power of two, 16 to 4096.",
		Alternatives: []string{
			`avatar_size = 64`,
		},
	},
	"presence.idle_text": {
		Comment: "Activity line shown when there is nothing else to say.",
	},

	// ── Pages ────────────────────────────────────────────────────
	"pages.root": {
		Comment: "Directory searched by `badgecord render`. Relative paths resolve\nagainst the working directory.",
	},
	"pages.include": {
		Comment: "Pages to render (doublestar globs, relative to root).\nPages without a .discord-presence-badge and .discord-presence-card are skipped.",
		Alternatives: []string{
			`include = ["index.html", "about/**/*.html"]`,
		},
	},
	"pages.exclude": {
		Comment: "Pages never touched, even when matched by include.",
	},
	"pages.user_id": {
		Comment: "User for pages without a discord-user-id meta tag or data-user-id attribute.\nFalls back to presence.user_id when unset.",
		Alternatives: []string{
			`user_id = "94490510688792576"`,
		},
	},

	// ── UI ───────────────────────────────────────────────────────
	"ui.theme": {
		Comment: "Terminal badge palette. Options: \"dark\", \"light\"",
		Alternatives: []string{
			`theme = "light"`,
		},
	},
	"ui.double_click_ms": {
		Comment: "Two clicks on the badge within this many milliseconds copy the profile link.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in MB before rotation.",
	},
}
