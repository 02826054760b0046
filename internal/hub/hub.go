package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/red-tetris-backend/internal/leaderboard"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
	"github.com/DoyleJ11/red-tetris-backend/internal/protocol"
	"github.com/DoyleJ11/red-tetris-backend/internal/room"
)

var ErrClosed = errors.New("hub closed")

type Msg interface{ isHubMsg() }

// Connect registers a connection. The hub owns Outbox from here on and
// closes it when the connection is dropped or disconnected.
type Connect struct {
	Conn   match.ConnID
	Outbox chan protocol.ServerMessage
}

type Disconnect struct{ Conn match.ConnID }

type FromClient struct {
	Conn   match.ConnID
	Intent protocol.Intent
}

// GetState is test-only: reflects a room's state without data races.
type GetState struct {
	Room  string
	Reply chan View
}

type ListRooms struct{ Reply chan []room.Summary }

type Shutdown struct{}

type expire struct {
	name string
	gen  uint64
}

type leaderboardReply struct {
	conn    match.ConnID
	entries []leaderboard.Entry
}

func (Connect) isHubMsg()          {}
func (Disconnect) isHubMsg()       {}
func (FromClient) isHubMsg()       {}
func (GetState) isHubMsg()         {}
func (ListRooms) isHubMsg()        {}
func (Shutdown) isHubMsg()         {}
func (expire) isHubMsg()           {}
func (leaderboardReply) isHubMsg() {}

type View struct {
	Exists     bool
	Pending    bool
	NumClients int
	State      match.State
}

type Options struct {
	Rules           match.Rules
	DefaultCapacity int
	GraceDelay      time.Duration
	Store           leaderboard.Store
	Logger          *zap.Logger
	Scheduler       room.Scheduler
}

type Hub struct {
	inbox   chan Msg
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
	store   leaderboard.Store
	rooms   *room.Registry
	clients map[match.ConnID]chan protocol.ServerMessage
	dropped []match.ConnID
	defCap  int
	bg      errgroup.Group
}

func New(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = leaderboard.NewMemoryStore()
	}
	if opts.DefaultCapacity == 0 {
		opts.DefaultCapacity = match.MaxCapacity
	}

	h := &Hub{
		inbox:   make(chan Msg, 256),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		log:     opts.Logger,
		store:   opts.Store,
		clients: make(map[match.ConnID]chan protocol.ServerMessage),
		defCap:  match.ClampCapacity(opts.DefaultCapacity),
	}
	h.rooms = room.NewRegistry(opts.Rules, opts.GraceDelay, opts.Scheduler, func(name string, gen uint64) {
		h.Send(context.Background(), expire{name: name, gen: gen})
	})
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Done is closed once the hub goroutine has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Send posts m unless ctx is cancelled or the hub has stopped.
func (h *Hub) Send(ctx context.Context, m Msg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) Rooms(ctx context.Context) ([]room.Summary, error) {
	reply := make(chan []room.Summary, 1)
	if !h.Send(ctx, ListRooms{Reply: reply}) {
		return nil, ErrClosed
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Leaderboard reads the store directly; it never touches hub state.
func (h *Hub) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	return h.store.Top(ctx, limit)
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.clients[msg.Conn] = msg.Outbox
				h.log.Debug("client connected", zap.String("conn", string(msg.Conn)))
				h.deliver(msg.Conn, protocol.RoomListMsg(roomInfos(h.rooms.List())))

			case Disconnect:
				h.disconnect(msg.Conn)

			case FromClient:
				h.handle(msg.Conn, msg.Intent)

			case expire:
				if h.rooms.Expire(msg.name, msg.gen) {
					h.log.Info("room deleted", zap.String("room", msg.name))
				}

			case leaderboardReply:
				h.deliver(msg.conn, protocol.LeaderboardMsg(entries(msg.entries)))

			case GetState:
				v := View{NumClients: len(h.clients)}
				if rm, ok := h.rooms.Get(msg.Room); ok {
					v.Exists = true
					v.Pending = rm.Pending()
					v.State = rm.State
				}
				msg.Reply <- v

			case ListRooms:
				msg.Reply <- h.rooms.List()

			case Shutdown:
				h.shutdown()
				return
			}
			h.flushDropped()
		}
	}
}

func (h *Hub) handle(conn match.ConnID, in protocol.Intent) {
	log := h.log.With(zap.String("conn", string(conn)), zap.String("type", in.Type()))

	switch i := in.(type) {
	case protocol.JoinRoom:
		capacity := i.MaxPlayers
		if capacity == 0 {
			capacity = h.defCap
		}
		rm := h.rooms.GetOrCreate(i.Room, capacity)
		join := match.Command{Type: match.CmdJoin, Conn: conn, Username: i.Player}

		// Only give up the current seat once the new room will take us.
		if cur, ok := h.rooms.RoomOf(conn); ok && cur != rm {
			if _, err := rm.State.CheckJoin(i.Player); err != nil {
				h.apply(log, rm, join)
				return
			}
			h.leave(conn)
		}
		h.apply(log, rm, join)

	case protocol.StartGame:
		if rm := h.target(conn, i.Room); rm != nil {
			h.apply(log, rm, match.Command{Type: match.CmdStart, Conn: conn})
		}

	case protocol.LinesCleared:
		if rm := h.target(conn, i.Room); rm != nil {
			h.apply(log, rm, match.Command{Type: match.CmdLinesCleared, Conn: conn, Username: i.Player, Count: i.Count})
		}

	case protocol.SpectrumUpdate:
		if rm := h.target(conn, i.Room); rm != nil {
			h.apply(log, rm, match.Command{Type: match.CmdSpectrum, Conn: conn, Username: i.Player, Spectrum: i.Spectrum})
		}

	case protocol.PlayerGameOver:
		if rm := h.target(conn, i.Room); rm != nil {
			h.apply(log, rm, match.Command{Type: match.CmdEliminate, Conn: conn, Username: i.Player})
		}

	case protocol.LeaveRoom:
		h.leave(conn)

	case protocol.RequestLeaderboard:
		limit := i.Limit
		h.bg.Go(func() error {
			ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
			defer cancel()
			top, err := h.store.Top(ctx, limit)
			if err != nil {
				log.Error("leaderboard query failed", zap.Error(err))
				top = nil
			}
			h.Send(h.ctx, leaderboardReply{conn: conn, entries: top})
			return nil
		})

	case protocol.RequestRooms:
		h.deliver(conn, protocol.RoomListMsg(roomInfos(h.rooms.List())))

	default:
		log.Warn("unhandled intent")
		h.deliver(conn, protocol.ErrorMsg("unknown type"))
	}
}

// target resolves the room a message applies to: the connection's seat if it
// has one, otherwise the named room, created on demand.
func (h *Hub) target(conn match.ConnID, name string) *room.Room {
	if rm, ok := h.rooms.RoomOf(conn); ok {
		return rm
	}
	if name == "" {
		return nil
	}
	return h.rooms.GetOrCreate(name, h.defCap)
}

func (h *Hub) apply(log *zap.Logger, rm *room.Room, cmd match.Command) {
	events, err := h.rooms.Apply(rm, cmd)
	if err != nil {
		if reason := match.Reason(err); reason != "" {
			log.Info("join denied", zap.String("room", rm.Name()), zap.String("reason", reason))
			h.deliver(cmd.Conn, protocol.JoinDeniedMsg(reason))
			return
		}
		log.Debug("command ignored", zap.String("room", rm.Name()), zap.Error(err))
		return
	}
	h.route(rm, events)
}

func (h *Hub) leave(conn match.ConnID) {
	if rm, events, ok := h.rooms.Detach(conn); ok {
		h.log.Debug("left room", zap.String("conn", string(conn)), zap.String("room", rm.Name()))
		h.route(rm, events)
	}
}

func (h *Hub) disconnect(conn match.ConnID) {
	if out, ok := h.clients[conn]; ok {
		close(out)
		delete(h.clients, conn)
	}
	h.leave(conn)
	h.log.Debug("client disconnected", zap.String("conn", string(conn)))
}

// route delivers events in order to the audience each names.
func (h *Hub) route(rm *room.Room, events []match.Event) {
	for _, ev := range events {
		var msg protocol.ServerMessage
		switch ev.Type {
		case match.EvtPlayersChanged:
			msg = protocol.RoomPlayersMsg(playerInfos(ev.Players))
		case match.EvtGameStarted:
			h.log.Info("game started", zap.String("room", rm.Name()), zap.Int("players", len(rm.State.Players)))
			msg = protocol.StartGameMsg(ev.Sequence, ev.Spawn)
		case match.EvtGameEnded:
			h.log.Info("game ended", zap.String("room", rm.Name()), zap.String("winner", ev.Winner))
			h.recordWin(ev.Winner)
			msg = protocol.GameEndedMsg(ev.Winner)
		case match.EvtGarbage:
			msg = protocol.GarbageMsg(ev.From, ev.Count)
		case match.EvtSpectrum:
			msg = protocol.SpectrumMsg(ev.From, ev.Spectrum)
		case match.EvtRoomEmptied:
			h.log.Debug("room empty, deletion scheduled", zap.String("room", rm.Name()))
			continue
		default:
			continue
		}

		switch ev.Audience {
		case match.AudienceSender:
			h.deliver(ev.Conn, msg)
		case match.AudienceOthers:
			for _, id := range rm.State.Order {
				if id != ev.Conn {
					h.deliver(id, msg)
				}
			}
		case match.AudienceRoom:
			for _, id := range rm.State.Order {
				h.deliver(id, msg)
			}
		}
	}
}

func (h *Hub) recordWin(name string) {
	if name == "" {
		return
	}
	h.bg.Go(func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 5*time.Second)
		defer cancel()
		if err := h.store.RecordWin(ctx, name); err != nil {
			h.log.Error("record win failed", zap.String("player", name), zap.Error(err))
		}
		return nil
	})
}

// deliver never blocks: a client whose outbox is full is dropped and treated
// as disconnected once the current message is done.
func (h *Hub) deliver(conn match.ConnID, msg protocol.ServerMessage) {
	out, ok := h.clients[conn]
	if !ok {
		return
	}
	select {
	case out <- msg:
	default:
		h.log.Warn("dropping slow client", zap.String("conn", string(conn)))
		close(out)
		delete(h.clients, conn)
		h.dropped = append(h.dropped, conn)
	}
}

func (h *Hub) flushDropped() {
	for len(h.dropped) > 0 {
		conn := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.leave(conn)
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.rooms.Close()
	h.cancel()
}

// Wait blocks until background store work started by the hub has finished.
func (h *Hub) Wait() error { return h.bg.Wait() }

func roomInfos(in []room.Summary) []protocol.RoomInfo {
	out := make([]protocol.RoomInfo, 0, len(in))
	for _, s := range in {
		out = append(out, protocol.RoomInfo{Name: s.Name, Players: s.Players, Capacity: s.Capacity, Running: s.Running})
	}
	return out
}

func playerInfos(in []match.PlayerInfo) []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(in))
	for _, p := range in {
		out = append(out, protocol.PlayerInfo{ID: string(p.ID), Username: p.Username, IsHost: p.IsHost})
	}
	return out
}

func entries(in []leaderboard.Entry) []protocol.Entry {
	out := make([]protocol.Entry, 0, len(in))
	for _, e := range in {
		out = append(out, protocol.Entry{Name: e.Name, Score: e.Score})
	}
	return out
}
