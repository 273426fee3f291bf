package handlers

import (
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/decode"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
)

// SubmitMove submitmove 的 value
type SubmitMove struct {
	Move           string  `json:"move"`
	MoveNumber     int     `json:"moveNumber"`
	GameConclusion *string `json:"gameConclusion,omitempty"`
}

// Report report 的 value
type Report struct {
	Reason              string `json:"reason"`
	OpponentsMoveNumber int    `json:"opponentsMoveNumber"`
}

// ErrNotInGame 需要对局订阅的动作在订阅之外发来（通常是过期客户端）
var ErrNotInGame = errs.NewCodeError(4010, "Not in a game")

// 不需要 value 的动作；true 表示必须已订阅对局
var bareGameActions = map[string]bool{
	"joingame":                       false,
	"removefromplayersinactivegames": false,
	"AFK":                            true,
	"AFK-Return":                     true,
	"offerdraw":                      true,
	"acceptdraw":                     true,
	"declinedraw":                    true,
	"abort":                          true,
	"resign":                         true,
}

// Game 校验后转给对局协作方
type Game struct{}

func NewGameHandler() gateway.RouteHandler { return Game{} }

func (Game) Route() string { return gateway.RouteGame }

func (Game) Handle(ctx *gateway.Context, msg *gateway.Inbound) error {
	_, sub := ctx.Conn.Subscribed()
	var value any
	switch msg.Action {
	case "submitmove":
		v, err := decode.Value[SubmitMove](msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg(err.Error())
		}
		if v.Move == "" || v.MoveNumber < 1 {
			return gateway.ErrInvalidValue.WrapMsg("bad move", "move", v.Move, "moveNumber", v.MoveNumber)
		}
		if sub == nil {
			return ErrNotInGame.WrapMsg("")
		}
		value = *v
	case "resync":
		id, err := decode.Int64(msg.Value)
		if err != nil || id <= 0 {
			return gateway.ErrInvalidValue.WrapMsg("game id must be a positive integer")
		}
		value = id
	case "report":
		v, err := decode.Value[Report](msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg(err.Error())
		}
		if v.Reason == "" || v.OpponentsMoveNumber < 0 {
			return gateway.ErrInvalidValue.WrapMsg("bad report")
		}
		if sub == nil {
			return ErrNotInGame.WrapMsg("")
		}
		value = *v
	default:
		needsGame, ok := bareGameActions[msg.Action]
		if !ok {
			return gateway.ErrUnknownAction.WrapMsg("game action " + msg.Action)
		}
		if needsGame && sub == nil {
			return ErrNotInGame.WrapMsg("")
		}
	}
	return ctx.Gateway.Game().HandleAction(ctx.Ctx(), ctx.Conn, msg.Action, value, msg.MessageID())
}
