package presence

import (
	"strconv"

	"tools.zach/dev/badgecord/internal/dom"
)

// Surfaces are the elements a widget writes to. Badge and Card are required;
// the rest are optional and skipped when nil.
type Surfaces struct {
	// Badge is the always-visible container that receives hover and focus.
	Badge dom.Element
	// Card is the detail card toggled by the "visible" class.
	Card dom.Element
	// Avatar receives src and alt.
	Avatar dom.Element
	// Name receives the display name.
	Name dom.Element
	// Activity receives the activity line.
	Activity dom.Element
	// StatusIcon receives the status class.
	StatusIcon dom.Element
	// Details receives the secondary card line.
	Details dom.Element
}

// Bound reports whether both required containers are present.
func (s Surfaces) Bound() bool {
	return s.Badge != nil && s.Card != nil
}

// ///////////////////////////////////////////////
// Render
// ///////////////////////////////////////////////

// Render applies d to the surfaces, writing each value only when it differs
// from what the surface already shows. It returns the number of writes.
func Render(s Surfaces, d DisplayState) int {
	n := 0
	count := func(wrote bool) {
		if wrote {
			n++
		}
	}
	count(dom.WriteAttr(s.Avatar, "src", d.AvatarURL))
	count(dom.WriteAttr(s.Avatar, "alt", d.AvatarAlt))
	count(dom.WriteText(s.Name, d.Name))
	count(dom.WriteText(s.Activity, d.Activity))
	count(dom.WriteAttr(s.StatusIcon, "class", "discord-status-icon "+d.StatusClass))
	count(dom.WriteText(s.Details, d.Details))
	return n
}

// ///////////////////////////////////////////////
// Error Render
// ///////////////////////////////////////////////

// errorText is the fixed (name, activity) pair per failure outcome.
// RemoteError's activity is a prefix completed with the status code.
var errorText = map[Outcome][2]string{
	ConfigMissing:    {"No user ID set", "Add a Discord ID to enable presence"},
	NotFound:         {"User not found", "Check Discord user ID"},
	RemoteError:      {"API error", "Status: "},
	MalformedPayload: {"Data error", "Unexpected payload"},
	NetworkError:     {"Connection error", "See console for details"},
}

// ErrorText returns the (name, activity) pair shown for a failed result.
// ok is false for [OK] and unknown outcomes.
func ErrorText(r Result) (name, activity string, ok bool) {
	pair, ok := errorText[r.Outcome]
	if !ok {
		return "", "", false
	}
	name, activity = pair[0], pair[1]
	if r.Outcome == RemoteError {
		activity += strconv.Itoa(r.Status)
	}
	return name, activity, true
}

// RenderError writes the error pair for r onto the name and activity
// surfaces. Other surfaces keep their last successful values.
func RenderError(s Surfaces, r Result) int {
	name, activity, ok := ErrorText(r)
	if !ok {
		return 0
	}
	n := 0
	if dom.WriteText(s.Name, name) {
		n++
	}
	if dom.WriteText(s.Activity, activity) {
		n++
	}
	return n
}
