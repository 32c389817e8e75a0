package lanyard

// ///////////////////////////////////////////////
// Status
// ///////////////////////////////////////////////

// Status is the Discord presence status reported by Lanyard.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDND     Status = "dnd"
	StatusOffline Status = "offline"
)

// Normalize maps an absent or unrecognized status to [StatusOffline].
func (s Status) Normalize() Status {
	switch s {
	case StatusOnline, StatusIdle, StatusDND, StatusOffline:
		return s
	default:
		return StatusOffline
	}
}

// ///////////////////////////////////////////////
// Activity
// ///////////////////////////////////////////////

// ActivityType is the Discord activity kind.
type ActivityType int

const (
	// Playing {name}
	ActivityGame ActivityType = iota
	// Streaming {name}
	ActivityStreaming
	// Listening to {name}
	ActivityListening
	// Watching {name}
	ActivityWatching
	// Custom status; {state} carries the user's text.
	ActivityCustom
	// Competing in {name}
	ActivityCompeting
)

// Activity is one entry of the activities list.
type Activity struct {
	// ID is Discord's opaque activity identifier.
	ID string `json:"id,omitempty"`
	// Name is the application or game name ("Custom Status" for custom activities).
	Name string `json:"name"`
	// Type is the activity kind.
	Type ActivityType `json:"type"`
	// State is the second line of a rich presence, or the text of a custom status.
	State string `json:"state,omitempty"`
	// Details is the first line of a rich presence.
	Details string `json:"details,omitempty"`
	// CreatedAt is the Unix millisecond timestamp when the activity started.
	CreatedAt int64 `json:"created_at,omitempty"`
	// ApplicationID identifies the rich presence application, if any.
	ApplicationID string `json:"application_id,omitempty"`
	// Timestamps holds the activity's start/end in Unix milliseconds.
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	// Emoji is set on custom statuses.
	Emoji *Emoji `json:"emoji,omitempty"`
}

// Timestamps bounds an activity or a Spotify track in Unix milliseconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Emoji is the emoji attached to a custom status.
type Emoji struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// ///////////////////////////////////////////////
// User
// ///////////////////////////////////////////////

// User is the discord_user object.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Discriminator string `json:"discriminator"`
	Bot           bool   `json:"bot,omitempty"`
	PublicFlags   int64  `json:"public_flags,omitempty"`
}

// ///////////////////////////////////////////////
// Spotify
// ///////////////////////////////////////////////

// Spotify is the track the user is listening to.
type Spotify struct {
	TrackID     string      `json:"track_id,omitempty"`
	Song        string      `json:"song"`
	Artist      string      `json:"artist"`
	Album       string      `json:"album,omitempty"`
	AlbumArtURL string      `json:"album_art_url,omitempty"`
	Timestamps  *Timestamps `json:"timestamps,omitempty"`
}

// ///////////////////////////////////////////////
// Presence
// ///////////////////////////////////////////////

// Presence is the data envelope of a successful /v1/users/{id} response.
type Presence struct {
	User               User              `json:"discord_user"`
	Status             Status            `json:"discord_status"`
	Activities         []Activity        `json:"activities"`
	ListeningToSpotify bool              `json:"listening_to_spotify"`
	Spotify            *Spotify          `json:"spotify"`
	ActiveOnDesktop    bool              `json:"active_on_discord_desktop"`
	ActiveOnMobile     bool              `json:"active_on_discord_mobile"`
	ActiveOnWeb        bool              `json:"active_on_discord_web"`
	KV                 map[string]string `json:"kv,omitempty"`
}

// Platforms lists the Discord clients the user is active on, in a fixed order.
func (p *Presence) Platforms() []string {
	if p == nil {
		return nil
	}
	var out []string
	if p.ActiveOnDesktop {
		out = append(out, "desktop")
	}
	if p.ActiveOnMobile {
		out = append(out, "mobile")
	}
	if p.ActiveOnWeb {
		out = append(out, "web")
	}
	return out
}

// envelope is the top-level response body.
type envelope struct {
	Success bool      `json:"success"`
	Data    *Presence `json:"data"`
}
