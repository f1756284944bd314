package simulation

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/idgen"
	"github.com/sarchlab/gossiplearn/model"
	"github.com/sarchlab/gossiplearn/topology"
)

func init() {
	gob.Register(&topology.StaticNetwork{})
	gob.Register(&topology.DynamicNetwork{})
	gob.Register(ConstantDelay{})
	gob.Register(UniformDelay{})
	gob.Register(LinearDelay{})
}

// checkpoint is everything needed to continue a run where it stopped.
type checkpoint struct {
	ID           string
	Nodes        []gossip.Node
	Network      topology.Network
	EvalSet      *model.Dataset
	Protocol     gossip.Protocol
	RoundLen     int
	Delay        Delay
	FailureRate  float64
	OnlineProb   float64
	SamplingEval float64

	RandomState []byte
	LastID      idgen.ID
	Order       []int
	Pending     map[int][]*gossip.Message
	Report      *Report
	Tick        int
}

// Save writes the complete simulator state to w. It must not be called
// while Start is running.
func (s *Simulator) Save(w io.Writer) error {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("saving random state: %w", err)
	}

	c := checkpoint{
		ID:           s.id,
		Nodes:        s.nodes,
		Network:      s.network,
		EvalSet:      s.evalSet,
		Protocol:     s.protocol,
		RoundLen:     s.delta,
		Delay:        s.delay,
		FailureRate:  s.failureRate,
		OnlineProb:   s.onlineProb,
		SamplingEval: s.samplingEval,
		RandomState:  state,
		LastID:       s.ids.Last(),
		Order:        s.order,
		Pending:      s.pending,
		Report:       s.report,
		Tick:         s.Tick(),
	}

	if err := gob.NewEncoder(w).Encode(&c); err != nil {
		return fmt.Errorf("saving simulation %s: %w", s.id, err)
	}

	return nil
}

// Load restores a simulator written by Save. Hooks are not saved and must
// be attached again. A dynamic network needs its generator set again
// before the run continues.
func Load(r io.Reader) (*Simulator, error) {
	var c checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("loading simulation: %w", err)
	}

	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(c.RandomState); err != nil {
		return nil, fmt.Errorf("loading random state: %w", err)
	}

	s := &Simulator{
		HookableBase: hooking.NewHookableBase(),
		id:           c.ID,
		nodes:        c.Nodes,
		network:      c.Network,
		evalSet:      c.EvalSet,
		protocol:     c.Protocol,
		delta:        c.RoundLen,
		delay:        c.Delay,
		failureRate:  c.FailureRate,
		onlineProb:   c.OnlineProb,
		samplingEval: c.SamplingEval,
		pcg:          pcg,
		rng:          rand.New(pcg),
		ids:          idgen.NewStartingAfter(c.LastID),
		order:        c.Order,
		pending:      c.Pending,
		report:       c.Report,
		t:            c.Tick,
	}

	if s.pending == nil {
		s.pending = make(map[int][]*gossip.Message)
	}

	if s.report == nil {
		s.report = &Report{}
	}

	if s.delay == nil {
		s.delay = ConstantDelay{}
	}

	return s, nil
}
