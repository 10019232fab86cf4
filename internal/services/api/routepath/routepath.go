// Package routepath holds the REST API route patterns.
package routepath

const (
	Root    = "/api/{$}"
	Roll    = "/api/roll/{$}"
	Metrics = "/metrics"
	BotWS   = "/ws/bot/{$}"
)

const (
	AuthToken    = "/api/auth/token/{$}"
	AuthRegister = "/api/auth/register/{$}"
	AuthActivate = "/api/auth/activate/{$}"
	AuthResend   = "/api/auth/activate/resend/{$}"
)

const (
	Users    = "/api/registration/user/{$}"
	User     = "/api/registration/user/{id}/{$}"
	Profiles = "/api/registration/profile/{$}"
	Profile  = "/api/registration/profile/{id}/{$}"
	BotUser  = "/api/registration/bot/{$}"
)

const (
	Domains        = "/api/roleplay/domain/{$}"
	Domain         = "/api/roleplay/domain/{id}/{$}"
	Places         = "/api/roleplay/place/{$}"
	Place          = "/api/roleplay/place/{id}/{$}"
	Races          = "/api/roleplay/race/{$}"
	Race           = "/api/roleplay/race/{id}/{$}"
	Campaigns      = "/api/roleplay/campaign/{$}"
	Campaign       = "/api/roleplay/campaign/{id}/{$}"
	CampaignInvite = "/api/roleplay/campaign/{id}/invite/{$}"
	CampaignJoin   = "/api/roleplay/campaign/join/{$}"
	Sessions       = "/api/roleplay/session/{$}"
	Session        = "/api/roleplay/session/{id}/{$}"
	ChatList       = "/api/chat/chat/{$}"
	Chat           = "/api/chat/chat/{id}/{$}"
	ChatMessages   = "/api/chat/chat/{id}/message/{$}"
	ChatMessage    = "/api/chat/message/{id}/{$}"
	Tracks         = "/api/common/track/{$}"
	Track          = "/api/common/track/{id}/{$}"
	Vote           = "/api/common/vote/{kind}/{id}/{$}"
	Menus          = "/api/menu/{$}"
	Menu           = "/api/menu/{id}/{$}"
	MenusVisible   = "/api/menu/visible/{$}"
)

// Me is the id alias that resolves to the caller.
const Me = "@me"

// Pattern prefixes a route with an HTTP method for http.ServeMux.
func Pattern(method, path string) string {
	return method + " " + path
}
