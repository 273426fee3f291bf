package handlers

import "github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"

// RegisterAll 挂上三个 route
func RegisterAll(g *gateway.Gateway) {
	g.Register(NewGeneralHandler())
	g.Register(NewInvitesHandler())
	g.Register(NewGameHandler())
}
