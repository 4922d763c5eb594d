package realtime

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/parleyhq/parley/id"
	"github.com/parleyhq/parley/types"
)

const fanoutSubject = "parley.realtime"

// envelope is the cross-instance wire format. Data carries the JSON
// event exactly as local clients receive it.
type envelope struct {
	Origin string `msgpack:"origin"`
	Scope  string `msgpack:"scope"`
	Target string `msgpack:"target,omitempty"`
	Except string `msgpack:"except,omitempty"`
	Kind   string `msgpack:"kind"`
	Data   []byte `msgpack:"data,omitempty"`
}

// Fanout relays hub events between instances over NATS so a user
// connected elsewhere still gets their messages, receipts and presence.
type Fanout struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	origin string
	logger *slog.Logger

	// deliver is set by Hub.SetFanout.
	deliver func(scope, target, except string, ev types.Event)
}

func NewFanout(nc *nats.Conn, logger *slog.Logger) (*Fanout, error) {
	f := &Fanout{
		nc:     nc,
		origin: id.Generate(),
		logger: logger,
	}

	sub, err := nc.Subscribe(fanoutSubject, f.handle)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", fanoutSubject, err)
	}

	f.sub = sub
	return f, nil
}

func (f *Fanout) Publish(scope, target, except string, ev types.Event) error {
	b, err := msgpack.Marshal(envelope{
		Origin: f.origin,
		Scope:  scope,
		Target: target,
		Except: except,
		Kind:   ev.Kind,
		Data:   ev.Data,
	})
	if err != nil {
		return fmt.Errorf("msgpack marshal envelope: %w", err)
	}

	if err := f.nc.Publish(fanoutSubject, b); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	return nil
}

func (f *Fanout) handle(msg *nats.Msg) {
	var env envelope
	if err := msgpack.Unmarshal(msg.Data, &env); err != nil {
		f.logger.Error("realtime fanout bad envelope", "err", err)
		return
	}

	// Locally published events were already delivered locally.
	if env.Origin == f.origin {
		return
	}

	if f.deliver == nil {
		return
	}

	f.deliver(env.Scope, env.Target, env.Except, types.Event{Kind: env.Kind, Data: env.Data})
}

func (f *Fanout) Close() error {
	if f.sub != nil {
		if err := f.sub.Unsubscribe(); err != nil {
			return fmt.Errorf("nats unsubscribe: %w", err)
		}
	}
	return nil
}
