// Package allocator provides the dispatcher that owns one strategy instance and exposes
// the uniform call surface: MinObservations and Predict over host-side arrays.
package allocator

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/bridge"
	"github.com/aristath/allocator/internal/host"
	"github.com/aristath/allocator/internal/strategy"
)

// Kind tells whether the held strategy is native or lives in a host.
type Kind string

const (
	KindNative Kind = "native"
	KindHost   Kind = "host"
)

// Allocator owns one strategy. It is immutable after construction and, like the strategy
// it holds, is meant for one caller at a time.
type Allocator struct {
	strategy             strategy.Strategy
	kind                 Kind
	checkMinObservations bool
	log                  zerolog.Logger
}

// New builds an allocator from ref, which is one of:
//
//   - *strategy.Definition: a registered native type, built with cfg
//   - strategy.Strategy: an existing native instance, cfg applied through SetParam
//   - host.Class: constructed with cfg as keyword arguments, or attribute by attribute
//     when the constructor takes none
//   - host.Object: an existing host instance, cfg assigned as attributes
//
// Any failure returns an error and no allocator.
func New(ref any, cfg strategy.Config, opts ...Option) (*Allocator, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With().Str("component", "allocator").Logger()

	a := &Allocator{
		checkMinObservations: o.checkMinObservations,
		log:                  log,
	}

	switch r := ref.(type) {
	case nil:
		return nil, errors.New("strategy reference is nil")
	case *strategy.Definition:
		s, err := r.Build(cfg)
		if err != nil {
			return nil, err
		}
		a.strategy, a.kind = s, KindNative
	case strategy.Strategy:
		if err := configure(r, cfg); err != nil {
			return nil, err
		}
		a.strategy, a.kind = r, KindNative
	case host.Class:
		obj, err := construct(r, cfg, log)
		if err != nil {
			return nil, err
		}
		a.adopt(obj)
	case host.Object:
		if len(cfg) > 0 {
			logForwarded(log, fmt.Sprintf("%T", r), cfg)
		}
		if err := assign(r, cfg, log); err != nil {
			return nil, err
		}
		a.adopt(r)
	default:
		return nil, fmt.Errorf("unsupported strategy reference %T", ref)
	}

	log.Debug().
		Str("kind", string(a.kind)).
		Int("config_keys", len(cfg)).
		Msg("Allocator constructed")

	return a, nil
}

// adopt uses a host result directly when it already satisfies the native contract.
func (a *Allocator) adopt(obj host.Object) {
	if s, ok := obj.(strategy.Strategy); ok {
		a.strategy, a.kind = s, KindNative
		return
	}
	a.strategy, a.kind = host.NewStrategy(obj, a.log), KindHost
}

func configure(s strategy.Strategy, cfg strategy.Config) error {
	if len(cfg) == 0 {
		return nil
	}
	c, ok := s.(strategy.Configurable)
	if !ok {
		return &strategy.ConfigError{
			Strategy: fmt.Sprintf("%T", s),
			Message:  "strategy does not accept configuration",
		}
	}
	for _, key := range cfg.Keys() {
		if err := c.SetParam(key, cfg[key]); err != nil {
			return err
		}
	}
	return nil
}

func construct(cls host.Class, cfg strategy.Config, log zerolog.Logger) (host.Object, error) {
	if len(cfg) == 0 {
		obj, err := cls.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to construct host strategy %s: %w", cls.Name(), err)
		}
		return obj, nil
	}

	logForwarded(log, cls.Name(), cfg)

	obj, err := cls.New(cfg)
	if err == nil {
		return obj, nil
	}
	if !errors.Is(err, host.ErrKeywordArgsUnsupported) {
		return nil, fmt.Errorf("failed to construct host strategy %s: %w", cls.Name(), err)
	}

	log.Debug().Str("class", cls.Name()).Msg("Constructor takes no options, assigning attributes")
	obj, err = cls.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct host strategy %s: %w", cls.Name(), err)
	}
	if err := assign(obj, cfg, log); err != nil {
		return nil, err
	}
	return obj, nil
}

func assign(obj host.Object, cfg strategy.Config, log zerolog.Logger) error {
	for _, key := range cfg.Keys() {
		if err := obj.SetAttr(key, cfg[key]); err != nil {
			return &strategy.ConfigError{Key: key, Message: "failed to set host attribute", Err: err}
		}
		log.Debug().Str("key", key).Msg("Assigned host attribute")
	}
	return nil
}

// logForwarded records keys handed to a host strategy without validation.
func logForwarded(log zerolog.Logger, class string, cfg strategy.Config) {
	log.Info().
		Str("class", class).
		Strs("keys", cfg.Keys()).
		Msg("Forwarding unvalidated configuration to host strategy")
}

// Kind reports whether the held strategy is native or host-bridged.
func (a *Allocator) Kind() Kind {
	return a.kind
}

// Strategy returns the held strategy.
func (a *Allocator) Strategy() strategy.Strategy {
	return a.strategy
}

// MinObservations delegates to the held strategy.
func (a *Allocator) MinObservations() int {
	return a.strategy.MinObservations()
}

// Predict converts input at the boundary, runs the strategy and converts the weights back.
// A failed call leaves the allocator usable.
func (a *Allocator) Predict(input any) (any, error) {
	x, err := bridge.Decode(input)
	if err != nil {
		return nil, err
	}
	if err := strategy.CheckInput(x); err != nil {
		return nil, err
	}
	if a.checkMinObservations {
		if need := a.strategy.MinObservations(); x.Observations() < need {
			return nil, &InsufficientObservationsError{Have: x.Observations(), Need: need}
		}
	}

	y, err := a.strategy.Predict(x)
	if err != nil {
		return nil, err
	}
	if !y.SameShape(x) {
		return nil, &strategy.ShapeError{
			Shape:   y.Shape(),
			Message: fmt.Sprintf("output shape differs from input shape %v", x.Shape()),
		}
	}
	return bridge.Encode(y), nil
}

// Call is Predict under the name used when the allocator is invoked directly.
func (a *Allocator) Call(input any) (any, error) {
	return a.Predict(input)
}

// Close releases the held strategy when it owns an external resource, such as a remote
// host object.
func (a *Allocator) Close() error {
	var target any = a.strategy
	if hs, ok := a.strategy.(*host.Strategy); ok {
		target = hs.Object()
	}
	if c, ok := target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
