package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
	"github.com/DoyleJ11/ar-duel-backend/internal/scheduler"
	"github.com/DoyleJ11/ar-duel-backend/internal/store"
	"github.com/DoyleJ11/ar-duel-backend/internal/types"
)

const (
	DefaultDisconnectCleanup = 10 * time.Second
	DefaultLeaveCleanup      = time.Second
)

type HubMsg interface{ isHubMsg() }

// Connect is posted once per new transport connection. Token and IsHost come
// from the connection URL and are both optional.
type Connect struct {
	ConnID string
	Token  string
	IsHost *bool
}

type Disconnect struct {
	ConnID string
}

type Inbound struct {
	ConnID string
	Msg    types.ClientMessage
}

type ListRooms struct {
	Reply chan []engine.RoomSummary
}

type lookupRoom struct {
	Code  string
	Reply chan *engine.Room
}

type ShutdownHub struct{}

type timerFired struct {
	scheduler.Fired
}

func (Connect) isHubMsg()     {}
func (Disconnect) isHubMsg()  {}
func (Inbound) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (lookupRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}
func (timerFired) isHubMsg()  {}

// Transport is everything the hub needs from the connection layer.
type Transport interface {
	Send(connID string, msg types.ServerMessage)
	Broadcast(group string, msg types.ServerMessage)
	Join(group, connID string)
	Leave(group, connID string)
	Close(connID string)
	engine.Membership
}

type MatchRecorder interface {
	RecordMatch(m store.Match)
}

type Options struct {
	Transport Transport
	Logger    *zap.Logger
	Matches   MatchRecorder // optional

	Grace             time.Duration
	DisconnectCleanup time.Duration
	LeaveCleanup      time.Duration
	MinRoomAge        time.Duration

	Codes     engine.CodeGenerator
	Now       func() time.Time
	NewToken  func() string
	AfterFunc scheduler.AfterFunc
}

// Hub owns the registry and the scheduler. Everything runs on the loop
// goroutine; other goroutines talk to it through Post.
type Hub struct {
	inbox chan HubMsg
	reg   *engine.Registry
	sched *scheduler.Scheduler
	tr    Transport
	log   *zap.Logger
	rec   MatchRecorder
	now   func() time.Time
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DisconnectCleanup <= 0 {
		opts.DisconnectCleanup = DefaultDisconnectCleanup
	}
	if opts.LeaveCleanup <= 0 {
		opts.LeaveCleanup = DefaultLeaveCleanup
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		tr:     opts.Transport,
		log:    opts.Logger.Named("hub"),
		rec:    opts.Matches,
		now:    opts.Now,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.reg = engine.NewRegistry(engine.Options{
		Codes:      opts.Codes,
		Now:        opts.Now,
		NewToken:   opts.NewToken,
		Grace:      opts.Grace,
		MinRoomAge: opts.MinRoomAge,
	})
	opts.Grace = h.reg.Grace()
	h.opts = opts
	h.sched = scheduler.New(func(f scheduler.Fired) { h.Post(timerFired{f}) }, opts.AfterFunc)

	go h.loop()
	return h
}

// Post hands msg to the loop. It reports false once the hub has stopped.
func (h *Hub) Post(msg HubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Done() <-chan struct{} { return h.done }

// Rooms asks the loop for a room listing.
func (h *Hub) Rooms(ctx context.Context) ([]engine.RoomSummary, error) {
	reply := make(chan []engine.RoomSummary, 1)
	if !h.Post(ListRooms{Reply: reply}) {
		return nil, context.Canceled
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.sched.StopAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.onConnect(msg)

			case Disconnect:
				h.onDisconnect(msg.ConnID)

			case Inbound:
				h.dispatch(msg.ConnID, msg.Msg)

			case timerFired:
				h.onTimer(msg.Fired)

			case ListRooms:
				msg.Reply <- h.reg.ListRooms()

			case lookupRoom:
				rm, err := h.reg.Lookup(msg.Code)
				if err != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- &rm

			case ShutdownHub:
				h.log.Info("hub shutting down", zap.Int("pending_timers", h.sched.Len()))
				h.cancel()
			}
		}
	}
}
