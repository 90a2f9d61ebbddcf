package halo

import (
	"context"
	"fmt"

	"github.com/notargets/GridBlock/comm"
	"go.uber.org/zap"
)

// Exchanger fills the ghost region of a field from the neighbors' owned data
type Exchanger struct {
	comm   comm.Comm
	plan   *Plan
	logger *zap.Logger
}

type Option func(*Exchanger)

func WithLogger(l *zap.Logger) Option {
	return func(x *Exchanger) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewExchanger binds a plan to the communicator whose ranks it addresses,
// normally the grid's Cartesian communicator
func NewExchanger(c comm.Comm, p *Plan, opts ...Option) (*Exchanger, error) {
	if c.Rank() != p.Rank {
		return nil, fmt.Errorf("plan of rank %d used on rank %d", p.Rank, c.Rank())
	}
	x := &Exchanger{comm: c, plan: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

func (x *Exchanger) Plan() *Plan { return x.plan }

// Gather packs the shared owned values of field, sends them to every
// neighbor, and scatters the received values into the ghost slots. field is
// laid out over the plan's ghosted index space. Every rank of the group must
// call Gather.
func (x *Exchanger) Gather(ctx context.Context, field []float64) error {
	p := x.plan
	if len(field) != p.Ghosted.Size() {
		return fmt.Errorf("field length %d does not match ghosted space %v (%d)",
			len(field), p.Ghosted, p.Ghosted.Size())
	}

	for _, m := range p.Mappings {
		buf := p.SendBuffer[m.SendOffset : m.SendOffset+m.SendCount()]
		for i, idx := range m.SendIndices {
			buf[i] = field[idx]
		}
		if err := x.comm.Send(ctx, m.Rank, m.SendTag, buf); err != nil {
			return fmt.Errorf("sending to rank %d offset %v: %w", m.Rank, m.Offset, err)
		}
	}

	for _, m := range p.Mappings {
		buf := p.RecvBuffer[m.RecvOffset : m.RecvOffset+m.RecvCount()]
		if err := x.comm.Recv(ctx, m.Rank, m.RecvTag, buf); err != nil {
			return fmt.Errorf("receiving from rank %d offset %v: %w", m.Rank, m.Offset, err)
		}
		for i, idx := range m.RecvIndices {
			field[idx] = buf[i]
		}
	}

	x.logger.Debug("halo gathered",
		zap.Int("rank", p.Rank),
		zap.Stringer("entity", p.Entity),
		zap.Int("neighbors", len(p.Mappings)),
		zap.Int("sent", len(p.SendBuffer)),
		zap.Int("received", len(p.RecvBuffer)),
		zap.Int("max_send_points", p.MaxSendPoints),
		zap.Int("max_recv_points", p.MaxRecvPoints),
	)
	return nil
}
