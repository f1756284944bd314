// Package simulation runs a population of gossip nodes on a virtual clock.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/idgen"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/timing"
	"github.com/sarchlab/gossiplearn/topology"
)

// Hook positions raised by the Simulator. Message hooks carry the
// *gossip.Message as Item and the tick as Detail.
var (
	HookPosMessageSent      = &hooking.HookPos{Name: "MessageSent"}
	HookPosMessageDropped   = &hooking.HookPos{Name: "MessageDropped"}
	HookPosMessageOffline   = &hooking.HookPos{Name: "MessageOffline"}
	HookPosMessageDelivered = &hooking.HookPos{Name: "MessageDelivered"}

	// HookPosRoundEvaluated carries the RoundEvaluation as Item.
	HookPosRoundEvaluated = &hooking.HookPos{Name: "RoundEvaluated"}

	// HookPosSimulationEnd carries the *Report as Item.
	HookPosSimulationEnd = &hooking.HookPos{Name: "SimulationEnd"}
)

type tickEvent struct {
	T int
}

// Simulator drives the gossip protocol tick by tick. Within a tick it
// refreshes the network, reshuffles the activation order at round starts,
// lets due nodes send, delivers messages, delivers replies, and evaluates
// at round ends. Every random draw comes from one source, so a run is
// reproducible from its seed.
type Simulator struct {
	*hooking.HookableBase

	id       string
	nodes    []gossip.Node
	network  topology.Network
	evalSet  *model.Dataset
	protocol gossip.Protocol
	delta    int
	delay    Delay

	failureRate  float64
	onlineProb   float64
	samplingEval float64

	pcg *rand.PCG
	rng *rand.Rand
	ids *idgen.Sequential

	order   []int
	pending map[int][]*gossip.Message
	report  *Report

	progressLock sync.Mutex
	t            int
	endTick      int

	engineLock sync.Mutex
	engine     *timing.SerialEngine
}

// ID returns the run identifier.
func (s *Simulator) ID() string {
	return s.id
}

// Nodes returns the node population.
func (s *Simulator) Nodes() []gossip.Node {
	return s.nodes
}

// Network returns the network the nodes talk over.
func (s *Simulator) Network() topology.Network {
	return s.network
}

// Report returns the report of the current run.
func (s *Simulator) Report() *Report {
	return s.report
}

// RoundLen returns the number of ticks per round.
func (s *Simulator) RoundLen() int {
	return s.delta
}

// InitNodes reinitializes every node's model, in index order, and starts a
// new run from tick 0.
func (s *Simulator) InitNodes() {
	for _, n := range s.nodes {
		n.InitModel(s.rng)
	}

	s.ids = idgen.New()
	s.pending = make(map[int][]*gossip.Message)
	s.report = &Report{}
	s.setTick(0)
}

// Start runs nRounds rounds from the current tick. A round left unfinished
// by an earlier interrupted Start counts as the first of them. If ctx is
// cancelled, the run stops between two ticks and the partial report is
// returned with Interrupted set.
func (s *Simulator) Start(ctx context.Context, nRounds int) (*Report, error) {
	engine := timing.NewSerialEngine()
	s.setEngine(engine)
	defer s.setEngine(nil)

	start := s.Tick()
	s.report.Interrupted = false

	s.progressLock.Lock()
	s.endTick = start - start%s.delta + nRounds*s.delta
	s.progressLock.Unlock()

	if nRounds > 0 {
		s.scheduleTick(engine, start)
	}

	err := engine.RunContext(ctx)
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		s.report.Interrupted = true
		err = nil
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosSimulationEnd,
		Item:   s.report,
	})

	return s.report, err
}

func (s *Simulator) scheduleTick(engine timing.EventScheduler, t int) {
	engine.Schedule(timing.ScheduledEvent{
		Event:   tickEvent{T: t},
		Time:    timing.VTimeInCycle(t),
		Handler: s,
	})
}

// Handle processes the simulator's own events.
func (s *Simulator) Handle(event any) error {
	switch e := event.(type) {
	case tickEvent:
		return s.handleTick(e)
	default:
		return fmt.Errorf("simulation: unknown event type %T", event)
	}
}

// handleTick simulates tick t completely, including the evaluation at a
// round end, so that a cancelled run never stops inside a tick.
func (s *Simulator) handleTick(e tickEvent) error {
	if err := s.tick(e.T); err != nil {
		return fmt.Errorf("tick %d: %w", e.T, err)
	}

	if (e.T+1)%s.delta == 0 {
		s.evaluate(e.T)
	}

	s.setTick(e.T + 1)

	if e.T+1 < s.EndTick() {
		s.scheduleTick(s.currentEngine(), e.T+1)
	}

	return nil
}

func (s *Simulator) tick(t int) error {
	if err := s.refreshNetwork(t); err != nil {
		return err
	}

	if t%s.delta == 0 {
		s.rng.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}

	var immediate []*gossip.Message
	for _, i := range s.order {
		n := s.nodes[i]
		if !n.TimedOut(t) {
			continue
		}

		peer, err := n.Peer(s.rng)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}

		msg, err := n.Send(t, peer, s.protocol)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}

		s.route(t, msg, &immediate)
	}

	requests, replies := s.takeDue(t)
	requests = append(requests, immediate...)

	for _, msg := range requests {
		if s.rng.Float64() >= s.onlineProb {
			s.report.Offline++
			s.invoke(HookPosMessageOffline, msg, t)

			continue
		}

		reply, err := s.deliver(t, msg)
		if err != nil {
			return err
		}

		if reply != nil {
			s.route(t, reply, &replies)
		}
	}

	for _, msg := range replies {
		if _, err := s.deliver(t, msg); err != nil {
			return err
		}
	}

	return nil
}

func (s *Simulator) refreshNetwork(t int) error {
	changed, err := s.network.Refresh(t, s.rng)
	if err != nil || !changed {
		return err
	}

	for i, n := range s.nodes {
		n.SetKnownNodes(s.network.Peers(i))
	}

	return nil
}

// route applies the failure draw to msg and queues it either for this tick
// or for a later one. Requests are counted when sent. Replies are counted
// only once they survive the draw.
func (s *Simulator) route(t int, msg *gossip.Message, now *[]*gossip.Message) {
	msg.ID = s.ids.Generate()

	isReply := msg.Type == gossip.TypeReply
	if !isReply {
		s.count(t, msg)
	}

	if s.rng.Float64() < s.failureRate {
		s.report.Dropped++
		s.invoke(HookPosMessageDropped, msg, t)

		return
	}

	if isReply {
		s.count(t, msg)
	}

	d := s.delay.Draw(msg, s.rng)
	if d <= 0 {
		*now = append(*now, msg)
		return
	}

	s.pending[t+d] = append(s.pending[t+d], msg)
}

func (s *Simulator) count(t int, msg *gossip.Message) {
	s.report.Messages++
	s.report.Bytes += msg.Size()
	s.invoke(HookPosMessageSent, msg, t)
}

// takeDue removes the delayed messages that arrive at t, keeping requests
// apart from replies.
func (s *Simulator) takeDue(t int) (requests, replies []*gossip.Message) {
	due := s.pending[t]
	delete(s.pending, t)

	for _, msg := range due {
		if msg.Type == gossip.TypeReply {
			replies = append(replies, msg)
		} else {
			requests = append(requests, msg)
		}
	}

	return requests, replies
}

func (s *Simulator) deliver(t int, msg *gossip.Message) (*gossip.Message, error) {
	reply, err := s.nodes[msg.Receiver].Receive(t, msg, s.rng)
	if err != nil {
		return nil, fmt.Errorf("node %d receiving %v: %w",
			msg.Receiver, msg, err)
	}

	s.invoke(HookPosMessageDelivered, msg, t)

	return reply, nil
}

func (s *Simulator) invoke(pos *hooking.HookPos, msg *gossip.Message, t int) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   msg,
		Detail: t,
	})
}

func (s *Simulator) evaluate(t int) {
	nodes := s.evaluationSample()

	var user, global []model.Metrics
	for _, n := range nodes {
		if n.HasTest() {
			user = append(user, n.Evaluate(nil))
		}

		if s.evalSet.Len() > 0 {
			global = append(global, n.Evaluate(s.evalSet))
		}
	}

	eval := RoundEvaluation{
		Round:     t / s.delta,
		Tick:      t,
		Global:    model.MeanMetrics(global),
		HasGlobal: len(global) > 0,
		User:      model.MeanMetrics(user),
		HasUser:   len(user) > 0,
	}
	s.report.Evaluations = append(s.report.Evaluations, eval)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosRoundEvaluated,
		Item:   eval,
	})
}

// evaluationSample returns the nodes evaluated this round. With sampling
// enabled, a random subset of at least one node is drawn.
func (s *Simulator) evaluationSample() []gossip.Node {
	if s.samplingEval <= 0 || s.samplingEval >= 1 {
		return s.nodes
	}

	k := max(1, int(s.samplingEval*float64(len(s.nodes))+0.5))
	perm := s.rng.Perm(len(s.nodes))

	sample := make([]gossip.Node, k)
	for i := range sample {
		sample[i] = s.nodes[perm[i]]
	}

	return sample
}

// Tick returns the next tick to be simulated.
func (s *Simulator) Tick() int {
	s.progressLock.Lock()
	defer s.progressLock.Unlock()

	return s.t
}

// EndTick returns the tick at which the current Start call stops.
func (s *Simulator) EndTick() int {
	s.progressLock.Lock()
	defer s.progressLock.Unlock()

	return s.endTick
}

func (s *Simulator) setTick(t int) {
	s.progressLock.Lock()
	s.t = t
	s.progressLock.Unlock()
}

func (s *Simulator) setEngine(e *timing.SerialEngine) {
	s.engineLock.Lock()
	s.engine = e
	s.engineLock.Unlock()
}

func (s *Simulator) currentEngine() *timing.SerialEngine {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()

	return s.engine
}

// Pause stops the simulation after the event in progress and returns once
// that event has finished. It does nothing when no run is in progress. Hooks
// must not call it.
func (s *Simulator) Pause() {
	if e := s.currentEngine(); e != nil {
		e.Pause()
		e.WaitIdle()
	}
}

// Continue resumes a paused simulation.
func (s *Simulator) Continue() {
	if e := s.currentEngine(); e != nil {
		e.Continue()
	}
}

// IsPaused tells whether the running simulation is paused.
func (s *Simulator) IsPaused() bool {
	e := s.currentEngine()

	return e != nil && e.IsPaused()
}

// Inspect calls fn while no event is being processed, so fn may read node
// state safely. A run that was not paused before continues afterwards.
func (s *Simulator) Inspect(fn func(nodes []gossip.Node)) {
	e := s.currentEngine()
	if e == nil {
		fn(s.nodes)
		return
	}

	if !e.IsPaused() {
		e.Pause()
		defer e.Continue()
	}

	e.WaitIdle()
	fn(s.nodes)
}

var (
	_ timing.Handler   = (*Simulator)(nil)
	_ hooking.Hookable = (*Simulator)(nil)
)
