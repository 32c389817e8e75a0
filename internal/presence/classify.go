package presence

import (
	"fmt"
	"strconv"
	"strings"

	"tools.zach/dev/badgecord/internal/lanyard"
)

// DefaultIdleText is shown when nothing else describes the user.
const DefaultIdleText = "currently doing nothing"

// OfflineText is the activity line for an offline user.
const OfflineText = "Offline"

// UnknownUserName is the name shown when the identity carries no usable name.
const UnknownUserName = "Unknown user"

const cdnBase = "https://cdn.discordapp.com"

// ///////////////////////////////////////////////
// Activity Line
// ///////////////////////////////////////////////

// activityVerbs maps non-custom kinds to their phrase prefix.
var activityVerbs = map[lanyard.ActivityType]string{
	lanyard.ActivityGame:      "Playing",
	lanyard.ActivityStreaming: "Streaming",
	lanyard.ActivityListening: "Listening to",
	lanyard.ActivityWatching:  "Watching",
	lanyard.ActivityCompeting: "Competing in",
}

// ActivityText returns the one-line description of what the user is doing.
//
// Precedence: offline, then Spotify, then the first non-custom activity, then
// the first custom status, then idleText. Later activities of the same class
// are ignored. An empty idleText uses [DefaultIdleText].
func ActivityText(p *lanyard.Presence, idleText string) string {
	if idleText == "" {
		idleText = DefaultIdleText
	}
	if p == nil {
		return idleText
	}
	if p.Status.Normalize() == lanyard.StatusOffline {
		return OfflineText
	}
	if p.ListeningToSpotify && p.Spotify != nil {
		return fmt.Sprintf("Listening to %s by %s", p.Spotify.Song, p.Spotify.Artist)
	}

	var primary, custom *lanyard.Activity
	for i := range p.Activities {
		a := &p.Activities[i]
		if a.Type == lanyard.ActivityCustom {
			if custom == nil {
				custom = a
			}
			continue
		}
		if primary == nil {
			primary = a
		}
	}

	switch {
	case primary != nil:
		if verb, ok := activityVerbs[primary.Type]; ok {
			return verb + " " + primary.Name
		}
		if primary.Name != "" {
			return primary.Name
		}
		return "Active"
	case custom != nil:
		if custom.State != "" {
			return custom.State
		}
		if custom.Name != "" {
			return custom.Name
		}
	}
	return idleText
}

// ///////////////////////////////////////////////
// Identity
// ///////////////////////////////////////////////

// AvatarURL returns the CDN URL for the user's avatar at the given size.
// Animated hashes (prefix "a_") use gif. Without a hash the default avatar is
// chosen by discriminator mod 5; a non-numeric discriminator counts as 0.
func AvatarURL(u lanyard.User, size int) string {
	if u.Avatar == "" {
		n, err := strconv.ParseUint(u.Discriminator, 10, 64)
		if err != nil {
			n = 0
		}
		return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBase, n%5)
	}
	ext := "png"
	if strings.HasPrefix(u.Avatar, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("%s/avatars/%s/%s.%s?size=%d", cdnBase, u.ID, u.Avatar, ext, size)
}

// AvatarAlt returns the alt text for the avatar image.
func AvatarAlt(u lanyard.User) string {
	name := u.Username
	if name == "" {
		name = "User"
	}
	return name + " avatar"
}

// DisplayName prefers display_name, then global_name, then
// "username#discriminator".
func DisplayName(u lanyard.User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.GlobalName != "":
		return u.GlobalName
	case u.Username != "":
		return u.Username + "#" + u.Discriminator
	default:
		return UnknownUserName
	}
}

// StatusClass returns the CSS class for the status indicator. Offline and
// unknown statuses map to "invisible".
func StatusClass(s lanyard.Status) string {
	s = s.Normalize()
	if s == lanyard.StatusOffline {
		return "invisible"
	}
	return string(s)
}

// ///////////////////////////////////////////////
// Display State
// ///////////////////////////////////////////////

// DisplayState is everything the renderer writes for one successful snapshot.
type DisplayState struct {
	AvatarURL   string
	AvatarAlt   string
	Name        string
	StatusClass string
	Activity    string
	// Details is the secondary card line: album, emoji and platforms. Empty
	// when the snapshot carries none of them.
	Details string
}

// DeriveOptions tunes [Derive].
type DeriveOptions struct {
	AvatarSize int
	IdleText   string
}

// Derive computes the display state for a snapshot.
func Derive(p *lanyard.Presence, opts DeriveOptions) DisplayState {
	if opts.AvatarSize <= 0 {
		opts.AvatarSize = 128
	}
	if p == nil {
		return DisplayState{
			AvatarURL:   AvatarURL(lanyard.User{}, opts.AvatarSize),
			AvatarAlt:   AvatarAlt(lanyard.User{}),
			Name:        UnknownUserName,
			StatusClass: StatusClass(""),
			Activity:    ActivityText(nil, opts.IdleText),
		}
	}
	return DisplayState{
		AvatarURL:   AvatarURL(p.User, opts.AvatarSize),
		AvatarAlt:   AvatarAlt(p.User),
		Name:        DisplayName(p.User),
		StatusClass: StatusClass(p.Status),
		Activity:    ActivityText(p, opts.IdleText),
		Details:     details(p),
	}
}

// details joins the card extras: Spotify album, custom-status emoji, and the
// clients the user is active on.
func details(p *lanyard.Presence) string {
	var parts []string
	if p.ListeningToSpotify && p.Spotify != nil && p.Spotify.Album != "" {
		parts = append(parts, "on "+p.Spotify.Album)
	}
	for _, a := range p.Activities {
		if a.Type == lanyard.ActivityCustom {
			if a.Emoji != nil && a.Emoji.Name != "" {
				parts = append(parts, a.Emoji.Name)
			}
			break
		}
	}
	if pl := p.Platforms(); len(pl) > 0 {
		parts = append(parts, strings.Join(pl, ", "))
	}
	return strings.Join(parts, " · ")
}
