package gateway

type Topic string

const (
	TopicInvites Topic = "invites"
	TopicGame    Topic = "game"
)

// GameSubscription 由对局协作方在开局时给出，客户端不能自己选
type GameSubscription struct {
	GameID int64  `json:"id"`
	Color  string `json:"color"`
}

// Subscriptions 维护每条连接的订阅集合，并把增删转给对应协作方
type Subscriptions struct {
	invites InvitesCollaborator
	game    GameCollaborator
}

func NewSubscriptions(invites InvitesCollaborator, game GameCollaborator) *Subscriptions {
	if invites == nil {
		invites = nopInvites{}
	}
	if game == nil {
		game = nopGame{}
	}
	return &Subscriptions{invites: invites, game: game}
}

// SubscribeInvites 重复订阅是 no-op
func (s *Subscriptions) SubscribeInvites(c *Connection) bool {
	c.mu.Lock()
	if c.closed || c.invites {
		c.mu.Unlock()
		return false
	}
	c.invites = true
	c.armIdleLocked()
	c.mu.Unlock()

	s.invites.Subscribe(c)
	return true
}

// SubscribeGame 覆盖之前的对局订阅
func (s *Subscriptions) SubscribeGame(c *Connection, g GameSubscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	gs := g
	c.game = &gs
	c.armIdleLocked()
	return true
}

// Unsubscribe 主题不存在时什么都不做
func (s *Subscriptions) Unsubscribe(c *Connection, t Topic, voluntary bool) bool {
	c.mu.Lock()
	var game *GameSubscription
	switch t {
	case TopicInvites:
		if !c.invites {
			c.mu.Unlock()
			return false
		}
		c.invites = false
	case TopicGame:
		if c.game == nil {
			c.mu.Unlock()
			return false
		}
		game, c.game = c.game, nil
	default:
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if game != nil {
		s.game.UnsubscribeFromGame(c, *game, voluntary)
	} else {
		s.invites.Unsubscribe(c, voluntary)
	}
	return true
}

// UnsubscribeAll 每次关闭都会调用
func (s *Subscriptions) UnsubscribeAll(c *Connection, voluntary bool) {
	s.Unsubscribe(c, TopicInvites, voluntary)
	s.Unsubscribe(c, TopicGame, voluntary)
}

// Subscribed 当前订阅快照
func (c *Connection) Subscribed() (invites bool, game *GameSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.game != nil {
		g := *c.game
		game = &g
	}
	return c.invites, game
}

// dropGame 协作方自己结束对局时清掉记录，不再回调
func (s *Subscriptions) dropGame(c *Connection) {
	c.mu.Lock()
	c.game = nil
	c.mu.Unlock()
}
