package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
	"github.com/DoyleJ11/red-tetris-backend/internal/player"
	"github.com/DoyleJ11/red-tetris-backend/internal/protocol"
)

var ErrJoinDenied = errors.New("join denied")

const writeTimeout = 3 * time.Second

type Config struct {
	URL        string
	Room       string
	Name       string
	MaxPlayers int
	// StartAt is the roster size at which a hosting bot starts the match.
	// Zero never starts.
	StartAt int
	Think   time.Duration
	Seed    uint64
	Timing  player.Timing
	// Rounds stops the bot after this many finished matches. Zero plays on
	// until ctx is cancelled.
	Rounds int
}

// Client is a headless player: it joins a room over the websocket protocol
// and plays every match with the placement planner.
type Client struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if name, ok := match.ValidName(cfg.Name); ok {
		cfg.Name = name
	}
	if cfg.Timing.Frame <= 0 {
		cfg.Timing = player.DefaultTiming()
	}
	return &Client{cfg: cfg, log: log.With(zap.String("bot", cfg.Name), zap.String("room", cfg.Room))}
}

// session is owned by the reader goroutine.
type session struct {
	players  []protocol.PlayerInfo
	starting bool
	running  bool
	loop     *player.Loop
	played   int
	rng      engine.Rand
}

// Run plays until ctx is cancelled, the configured rounds are done, or the
// server refuses the join.
func (c *Client) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("bot: dial %s: %w", c.cfg.URL, err)
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan protocol.Intent, 64)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.write(gctx, conn, out) })
	g.Go(func() error {
		defer cancel()
		return c.read(gctx, g, conn, out)
	})

	c.send(gctx, out, protocol.JoinRoom{Room: c.cfg.Room, Player: c.cfg.Name, MaxPlayers: c.cfg.MaxPlayers})

	err = g.Wait()
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "done")
	}
	return err
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, out <-chan protocol.Intent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-out:
			payload, err := protocol.Encode(in)
			if err != nil {
				return fmt.Errorf("bot: encode %s: %w", in.Type(), err)
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("bot: write: %w", err)
			}
		}
	}
}

func (c *Client) send(ctx context.Context, out chan<- protocol.Intent, in protocol.Intent) {
	select {
	case out <- in:
	case <-ctx.Done():
	}
}

func (c *Client) read(ctx context.Context, g *errgroup.Group, conn *websocket.Conn, out chan<- protocol.Intent) error {
	s := &session{}
	if c.cfg.Seed != 0 {
		s.rng = rand.New(rand.NewPCG(c.cfg.Seed, c.cfg.Seed>>1))
	}
	defer func() {
		if s.loop != nil {
			s.loop.Stop()
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bot: read: %w", err)
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("unreadable frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case protocol.TypeJoinDenied:
			return fmt.Errorf("%w: %s", ErrJoinDenied, msg.Reason)

		case protocol.TypeRoomPlayers:
			s.players = msg.Players
			// A start the server ignored never comes back, so each new
			// roster gets a fresh attempt.
			if !s.running {
				s.starting = false
			}
			c.maybeStart(ctx, s, out)

		case protocol.TypeStartGame:
			s.running = true
			s.starting = false
			c.play(ctx, g, s, msg, out)

		case protocol.TypeGarbage:
			if s.loop != nil {
				s.loop.AddGarbage(msg.Count)
			}

		case protocol.TypeGameEnded:
			if s.loop != nil {
				s.loop.Stop()
				s.loop = nil
			}
			s.running = false
			s.played++
			c.log.Info("match over", zap.String("winner", msg.Winner), zap.Bool("won", msg.Winner == c.cfg.Name))
			if c.cfg.Rounds > 0 && s.played >= c.cfg.Rounds {
				return nil
			}
			c.maybeStart(ctx, s, out)

		case protocol.TypeError:
			c.log.Warn("server error", zap.String("error", msg.Error))

		case protocol.TypeRoomList, protocol.TypeSpectrum, protocol.TypeLeaderboardData:
		}
	}
}

func (c *Client) isHost(s *session) bool {
	for _, p := range s.players {
		if p.Username == c.cfg.Name {
			return p.IsHost
		}
	}
	return false
}

func (c *Client) maybeStart(ctx context.Context, s *session, out chan<- protocol.Intent) {
	if s.running || s.starting || c.cfg.StartAt == 0 {
		return
	}
	if len(s.players) < max(c.cfg.StartAt, match.MinCapacity) || !c.isHost(s) {
		return
	}
	s.starting = true
	c.log.Info("starting match", zap.Int("players", len(s.players)))
	c.send(ctx, out, protocol.StartGame{Room: c.cfg.Room})
}

func (c *Client) play(ctx context.Context, g *errgroup.Group, s *session, msg protocol.ServerMessage, out chan<- protocol.Intent) {
	spawn := engine.DefaultSpawn
	if msg.Spawn != nil {
		spawn = *msg.Spawn
	}
	game := player.NewGame(msg.Sequence, spawn, c.cfg.Timing, s.rng)
	rep := &reporter{ctx: ctx, c: c, out: out}
	loop := player.NewLoop(game, c.cfg.Timing, rep, NewPilot(c.cfg.Think).Next)
	s.loop = loop

	g.Go(func() error {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot: game loop: %w", err)
		}
		c.log.Debug("game loop finished",
			zap.Int("score", game.Score()),
			zap.Int("lines", game.Lines()),
			zap.Int("level", game.Level()),
		)
		return nil
	})
}

// reporter turns game events into client frames. Called on the loop goroutine.
type reporter struct {
	ctx context.Context
	c   *Client
	out chan<- protocol.Intent
}

func (r *reporter) LinesCleared(n int) {
	r.c.send(r.ctx, r.out, protocol.LinesCleared{Room: r.c.cfg.Room, Player: r.c.cfg.Name, Count: n})
}

func (r *reporter) Spectrum(heights []int) {
	r.c.send(r.ctx, r.out, protocol.SpectrumUpdate{Room: r.c.cfg.Room, Player: r.c.cfg.Name, Spectrum: heights})
}

func (r *reporter) GameOver() {
	r.c.send(r.ctx, r.out, protocol.PlayerGameOver{Room: r.c.cfg.Room, Player: r.c.cfg.Name})
}
