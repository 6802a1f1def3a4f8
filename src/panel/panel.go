// Package panel keeps the displayed daemon state in step with the backend.
//
// Every status fetch is numbered when it is issued and its result is applied
// field by field, only over fields last written by an older fetch. A poll
// that started before a user action therefore cannot overwrite the state
// resynced after that action, whichever finishes first.
package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Arceliar/phony"
	"github.com/gologme/log"
	"golang.org/x/sync/errgroup"

	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
)

// ErrBusy is returned when an action is requested on a control whose
// previous action has not finished.
var ErrBusy = errors.New("another action on this control is in progress")

// Backend is the subset of the luci.tailscale calls the panel uses.
// *backend.Client implements it.
type Backend interface {
	FullStatus(ctx context.Context) (backend.Status, error)
	ExitNodes(ctx context.Context) ([]string, error)
	Killswitch(ctx context.Context, action backend.KillswitchAction) (backend.Result, error)
	SetExitNode(ctx context.Context, node string) (backend.Result, error)
	AcceptRoutes(ctx context.Context) (bool, error)
	SetAcceptRoutes(ctx context.Context, enabled bool) (backend.Result, error)
	SetAdvertiseRoutes(ctx context.Context, routes string) (backend.Result, error)
	SSH(ctx context.Context) (bool, error)
	SetSSH(ctx context.Context, enabled bool) (backend.Result, error)
	StatusVerbose(ctx context.Context) (string, error)
}

const (
	DefaultPollInterval     = 5 * time.Second
	DefaultMaxNotifications = 20
)

type SetupOption interface {
	isSetupOption()
}

// PollInterval sets the period of the status poll.
type PollInterval time.Duration

// MaxNotifications bounds the number of notifications kept.
type MaxNotifications int

func (a PollInterval) isSetupOption()     {}
func (a MaxNotifications) isSetupOption() {}

// field identifies one field of backend.Status.
type field int

const (
	fieldConnected field = iota
	fieldVersion
	fieldExitNode
	fieldAcceptRoutes
	fieldAdvertiseRoutes
	fieldSSH
	fieldKillswitch
	numFields
)

type Panel struct {
	phony.Inbox
	backend      Backend
	log          *log.Logger
	interval     time.Duration
	maxNotes     int
	kick         chan struct{}
	done         chan struct{}
	once         sync.Once
	_seq         uint64            // last issued fetch sequence
	_written     [numFields]uint64 // sequence of the fetch that last wrote each field
	_status      backend.Status    //
	_exitNodes   []string          //
	_selection   string            // exit node selector value
	_routesInput string            // advertise routes input value
	_busy        map[Control]bool  //
	_details     Details           //
	_notes       []Notification    //
	_loaded      bool              //
	_lastPoll    time.Time         //
	_pollErr     string            //
	_pollErrSeq  uint64            // sequence of the poll that last set _pollErr
	_generation  uint64            // bumped on every visible change
	_running     bool              //
}

// New returns a panel that has not loaded anything yet. Call Load, then
// Start to begin polling.
func New(b Backend, log *log.Logger, opts ...SetupOption) *Panel {
	p := &Panel{
		backend:    b,
		log:        log,
		interval:   DefaultPollInterval,
		maxNotes:   DefaultMaxNotifications,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		_selection: backend.NoExitNode,
		_exitNodes: []string{},
		_busy:      make(map[Control]bool),
	}
	for _, opt := range opts {
		p._applyOption(opt)
	}
	return p
}

func (p *Panel) _applyOption(opt SetupOption) {
	switch v := opt.(type) {
	case PollInterval:
		if v > 0 {
			p.interval = time.Duration(v)
		}
	case MaxNotifications:
		if v > 0 {
			p.maxNotes = int(v)
		}
	}
}

// View returns a copy of the current state.
func (p *Panel) View() View {
	var v View
	phony.Block(p, func() {
		v = p._view()
	})
	return v
}

func (p *Panel) _view() View {
	busy := make(map[Control]bool, len(p._busy))
	for c, b := range p._busy {
		busy[c] = b
	}
	return View{
		Status:               p._status,
		ExitNodes:            append([]string{}, p._exitNodes...),
		ExitNodeSelection:    p._selection,
		AdvertiseRoutesInput: p._routesInput,
		Busy:                 busy,
		Details:              p._details,
		Notifications:        append([]Notification{}, p._notes...),
		Loaded:               p._loaded,
		LastPoll:             p._lastPoll,
		PollError:            p._pollErr,
		Generation:           p._generation,
	}
}

// issue numbers a fetch that is about to start.
func (p *Panel) issue() uint64 {
	var seq uint64
	phony.Block(p, func() {
		p._seq++
		seq = p._seq
	})
	return seq
}

// _apply copies the given fields of st into the displayed status, skipping
// any field already written by a newer fetch. It reports whether anything
// was written.
func (p *Panel) _apply(seq uint64, st backend.Status, fields ...field) bool {
	if len(fields) == 0 {
		fields = []field{fieldConnected, fieldVersion, fieldExitNode, fieldAcceptRoutes,
			fieldAdvertiseRoutes, fieldSSH, fieldKillswitch}
	}
	applied := false
	for _, f := range fields {
		if seq <= p._written[f] {
			continue
		}
		p._written[f] = seq
		applied = true
		switch f {
		case fieldConnected:
			p._status.Connected = st.Connected
		case fieldVersion:
			p._status.Version = st.Version
		case fieldExitNode:
			p._status.ExitNode = st.ExitNode
		case fieldAcceptRoutes:
			p._status.AcceptRoutes = st.AcceptRoutes
		case fieldAdvertiseRoutes:
			p._status.AdvertiseRoutes = st.AdvertiseRoutes
		case fieldSSH:
			p._status.SSH = st.SSH
		case fieldKillswitch:
			p._status.KillswitchStatus = st.KillswitchStatus
		}
	}
	if applied {
		p._generation++
		boolGauge(connectedGauge, p._status.Connected)
		boolGauge(killswitchGauge, p._status.KillswitchEnabled())
	}
	return applied
}

// Load performs the initial fetch of the status and the exit node list.
// Failures are shown rather than returned: the status falls back to
// backend.FallbackStatus and the exit node list to an empty one.
func (p *Panel) Load(ctx context.Context) View {
	seq := p.issue()
	var (
		st       backend.Status
		stErr    error
		nodes    []string
		nodesErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		st, stErr = p.backend.FullStatus(ctx)
		return stErr
	})
	g.Go(func() error {
		nodes, nodesErr = p.backend.ExitNodes(ctx)
		return nodesErr
	})
	if err := g.Wait(); err != nil {
		p.log.Warnln("Failed to load Tailscale status:", err)
	}
	if stErr != nil {
		st = backend.FallbackStatus(stErr)
	}
	if nodesErr != nil || nodes == nil {
		nodes = []string{}
	}
	var v View
	phony.Block(p, func() {
		p._apply(seq, st)
		p._exitNodes = nodes
		p._selection = p._status.ExitNodeSelection()
		p._routesInput = p._status.AdvertiseRoutes
		p._loaded = true
		p._generation++
		v = p._view()
	})
	return v
}

// Poll fetches the full status once and applies it. On failure the
// displayed state is kept and the error is recorded in the view.
func (p *Panel) Poll(ctx context.Context) error {
	seq := p.issue()
	st, err := p.backend.FullStatus(ctx)
	now := time.Now()
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		p.log.Warnln("Error updating status:", err)
		phony.Block(p, func() {
			p._lastPoll = now
			p._setPollErr(seq, err.Error())
		})
		return err
	}
	pollsTotal.WithLabelValues("success").Inc()
	phony.Block(p, func() {
		p._lastPoll = now
		p._setPollErr(seq, "")
		if !p._apply(seq, st) {
			p.log.Debugln("Discarded stale status poll", seq)
		}
	})
	return nil
}

// _setPollErr records the outcome of poll seq unless a newer poll has
// already recorded its own.
func (p *Panel) _setPollErr(seq uint64, msg string) {
	if seq <= p._pollErrSeq {
		return
	}
	p._pollErrSeq = seq
	if p._pollErr != msg {
		p._pollErr = msg
		p._generation++
	}
}

// Start begins polling every PollInterval until ctx is done or Stop is
// called.
func (p *Panel) Start(ctx context.Context) error {
	var err error
	phony.Block(p, func() {
		if p._running {
			err = errors.New("status poller is already running")
			return
		}
		p._running = true
	})
	if err != nil {
		return err
	}
	go p.pollLoop(ctx)
	p.log.Infof("Polling Tailscale status every %s", p.interval)
	return nil
}

func (p *Panel) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
		case <-p.kick:
		}
		_ = p.Poll(ctx)
	}
}

// PollNow asks the running poller to poll immediately.
func (p *Panel) PollNow() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop ends polling. It is safe to call more than once.
func (p *Panel) Stop() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		close(p.done)
	})
	return nil
}
