package handlers

import (
	"strings"

	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/decode"
)

// CreateInvite createinvite 的 value
type CreateInvite struct {
	Variant   string `json:"variant"`
	Clock     string `json:"clock"`
	Color     string `json:"color"`
	Publicity string `json:"publicity"`
	Rated     string `json:"rated"`
	Tag       string `json:"tag"`
}

// AcceptInvite acceptinvite 的 value
type AcceptInvite struct {
	ID        string `json:"id"`
	IsPrivate bool   `json:"isPrivate"`
}

var (
	inviteColors    = map[string]bool{"White": true, "Black": true, "Random": true}
	invitePublicity = map[string]bool{"public": true, "private": true}
	inviteRated     = map[string]bool{"casual": true, "rated": true}
)

// validClock "-" 表示不限时，否则 "<秒>+<加秒>"
func validClock(s string) bool {
	if s == "-" {
		return true
	}
	base, inc, ok := strings.Cut(s, "+")
	return ok && isDigits(base) && isDigits(inc)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (v *CreateInvite) validate(member bool) error {
	switch {
	case v.Variant == "":
		return gateway.ErrInvalidValue.WrapMsg("variant required")
	case !validClock(v.Clock):
		return gateway.ErrInvalidValue.WrapMsg("bad clock", "clock", v.Clock)
	case !inviteColors[v.Color]:
		return gateway.ErrInvalidValue.WrapMsg("bad color", "color", v.Color)
	case !invitePublicity[v.Publicity]:
		return gateway.ErrInvalidValue.WrapMsg("bad publicity", "publicity", v.Publicity)
	case !inviteRated[v.Rated]:
		return gateway.ErrInvalidValue.WrapMsg("bad rated", "rated", v.Rated)
	case v.Rated == "rated" && !member:
		return gateway.ErrInvalidValue.WrapMsg("rated games require an account")
	}
	return nil
}

// Invites 校验后转给邀请协作方
type Invites struct{}

func NewInvitesHandler() gateway.RouteHandler { return Invites{} }

func (Invites) Route() string { return gateway.RouteInvites }

func (Invites) Handle(ctx *gateway.Context, msg *gateway.Inbound) error {
	var value any
	switch msg.Action {
	case "createinvite":
		v, err := decode.Value[CreateInvite](msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg(err.Error())
		}
		if err := v.validate(ctx.Conn.Identity().IsMember()); err != nil {
			return err
		}
		value = *v
	case "cancelinvite":
		id, err := decode.String(msg.Value)
		if err != nil || id == "" {
			return gateway.ErrInvalidValue.WrapMsg("invite id must be a string")
		}
		value = id
	case "acceptinvite":
		v, err := decode.Value[AcceptInvite](msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg(err.Error())
		}
		if v.ID == "" {
			return gateway.ErrInvalidValue.WrapMsg("invite id required")
		}
		value = *v
	default:
		return gateway.ErrUnknownAction.WrapMsg("invites action " + msg.Action)
	}
	return ctx.Gateway.Invites().HandleAction(ctx.Ctx(), ctx.Conn, msg.Action, value, msg.MessageID())
}
