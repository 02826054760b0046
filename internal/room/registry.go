package room

import (
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/red-tetris-backend/internal/match"
)

// Timer is the handle returned by a Scheduler.
type Timer interface{ Stop() bool }

// Scheduler runs f once after d. f runs on its own goroutine.
type Scheduler func(d time.Duration, f func()) Timer

func AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Room struct {
	State match.State
	gen   uint64
	timer Timer
}

func (r *Room) Name() string { return r.State.Name }

// Pending reports whether a deletion is scheduled for the room.
func (r *Room) Pending() bool { return r.timer != nil }

type Summary struct {
	Name     string `json:"name"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Running  bool   `json:"running"`
}

// Registry maps room names to rooms. It is not safe for concurrent use; the
// hub goroutine owns it.
type Registry struct {
	rooms    map[string]*Room
	byConn   map[match.ConnID]string
	rules    match.Rules
	grace    time.Duration
	schedule Scheduler
	expired  func(name string, gen uint64)
}

// NewRegistry builds a registry. expired is called from the timer goroutine
// once a deletion's grace delay elapses; the owner is expected to hand the
// pair back to Expire on its own goroutine.
func NewRegistry(rules match.Rules, grace time.Duration, schedule Scheduler, expired func(name string, gen uint64)) *Registry {
	if schedule == nil {
		schedule = AfterFunc
	}
	if expired == nil {
		expired = func(string, uint64) {}
	}
	return &Registry{
		rooms:    map[string]*Room{},
		byConn:   map[match.ConnID]string{},
		rules:    rules,
		grace:    grace,
		schedule: schedule,
		expired:  expired,
	}
}

// GetOrCreate returns the named room, creating it with capacity if absent.
// Capacity is ignored for an existing room.
func (r *Registry) GetOrCreate(name string, capacity int) *Room {
	if rm, ok := r.rooms[name]; ok {
		return rm
	}
	rm := &Room{State: match.NewState(name, capacity, r.rules)}
	r.rooms[name] = rm
	return rm
}

func (r *Registry) Get(name string) (*Room, bool) {
	rm, ok := r.rooms[name]
	return rm, ok
}

// RoomOf returns the room the connection is seated in.
func (r *Registry) RoomOf(conn match.ConnID) (*Room, bool) {
	name, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	return r.Get(name)
}

// Apply runs cmd against the room's match and keeps the connection index and
// deletion timer in step with the resulting roster.
func (r *Registry) Apply(rm *Room, cmd match.Command) ([]match.Event, error) {
	events, ns, err := match.Apply(rm.State, cmd)
	rm.State = ns
	if err == nil {
		switch cmd.Type {
		case match.CmdJoin:
			r.byConn[cmd.Conn] = rm.Name()
		case match.CmdLeave:
			delete(r.byConn, cmd.Conn)
		}
	}

	if rm.State.Empty() {
		r.ScheduleDeletion(rm.Name())
	} else {
		r.cancelDeletion(rm)
	}
	return events, err
}

// Detach removes conn from whichever room holds it. The room is scheduled
// for deletion if that left it empty.
func (r *Registry) Detach(conn match.ConnID) (*Room, []match.Event, bool) {
	rm, ok := r.RoomOf(conn)
	if !ok {
		return nil, nil, false
	}
	events, err := r.Apply(rm, match.Command{Type: match.CmdLeave, Conn: conn})
	if err != nil {
		// index and roster disagree; drop the stale index entry
		delete(r.byConn, conn)
		return rm, nil, false
	}
	return rm, events, true
}

// ScheduleDeletion (re)arms the grace timer for the named room. Any earlier
// timer for it becomes stale.
func (r *Registry) ScheduleDeletion(name string) {
	rm, ok := r.rooms[name]
	if !ok {
		return
	}
	if rm.timer != nil {
		rm.timer.Stop()
	}
	rm.gen++
	gen := rm.gen
	rm.timer = r.schedule(r.grace, func() { r.expired(name, gen) })
}

func (r *Registry) cancelDeletion(rm *Room) {
	if rm.timer == nil {
		return
	}
	rm.timer.Stop()
	rm.timer = nil
	rm.gen++
}

// Expire deletes the room if gen is its current deletion generation and it
// is still empty. It reports whether the room was deleted.
func (r *Registry) Expire(name string, gen uint64) bool {
	rm, ok := r.rooms[name]
	if !ok || rm.gen != gen || rm.timer == nil || !rm.State.Empty() {
		return false
	}
	delete(r.rooms, name)
	return true
}

func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, Summary{
			Name:     rm.Name(),
			Players:  len(rm.State.Players),
			Capacity: rm.State.Capacity,
			Running:  rm.State.Running(),
		})
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *Registry) Len() int { return len(r.rooms) }

// Close stops every pending deletion timer.
func (r *Registry) Close() {
	for _, rm := range r.rooms {
		if rm.timer != nil {
			rm.timer.Stop()
			rm.timer = nil
		}
	}
}
