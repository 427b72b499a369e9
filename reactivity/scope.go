package reactivity

import (
	"errors"
	"slices"
)

// Scope groups effects, child scopes and cleanup callbacks so they can be
// paused, resumed and stopped together.
type Scope struct {
	rs       *ReactiveSystem
	parent   *Scope
	scopes   []*Scope
	effects  []*Effect
	cleanups []func()
	active   bool
	paused   bool
	detached bool
}

// NewScope creates a scope. Unless detached, it is collected by the scope
// that is currently running and stops with it.
func NewScope(rs *ReactiveSystem, detached bool) *Scope {
	s := &Scope{
		rs:       rs,
		active:   true,
		detached: detached,
	}
	if !detached && rs.activeScope != nil {
		s.parent = rs.activeScope
		s.parent.scopes = append(s.parent.scopes, s)
	}
	return s
}

func (s *Scope) Active() bool {
	return s.active
}

func (s *Scope) Paused() bool {
	return s.paused
}

func (s *Scope) Effects() []*Effect {
	return slices.Clone(s.effects)
}

// Run makes s the current scope while fn runs, so effects and scopes
// created by fn are collected by s.
func (s *Scope) Run(fn func() error) error {
	if !s.active {
		s.rs.logger.Warn("cannot run an inactive effect scope")
		return ErrInactiveScope
	}
	prev := s.rs.activeScope
	s.rs.activeScope = s
	defer func() { s.rs.activeScope = prev }()
	return fn()
}

// OnDispose registers fn to run when s stops.
func (s *Scope) OnDispose(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

func (s *Scope) Pause() {
	if !s.active || s.paused {
		return
	}
	s.paused = true
	for _, child := range s.scopes {
		child.Pause()
	}
	for _, e := range s.effects {
		e.Pause()
	}
}

// Resume resumes every effect and child scope, delivering the triggers they
// recorded while paused.
func (s *Scope) Resume() error {
	if !s.active || !s.paused {
		return nil
	}
	s.paused = false
	var errs []error
	for _, child := range s.scopes {
		if err := child.Resume(); err != nil {
			errs = append(errs, err)
		}
	}
	// resumed effects may stop and leave s.effects
	for _, e := range slices.Clone(s.effects) {
		if err := e.Resume(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every effect, runs the cleanups, stops child scopes and
// detaches s from its parent. Stopping twice is a no-op.
func (s *Scope) Stop() {
	s.stop(false)
}

func (s *Scope) stop(fromParent bool) {
	if !s.active {
		return
	}
	s.active = false
	for _, e := range s.effects {
		e.Stop()
	}
	s.effects = nil
	for _, fn := range s.cleanups {
		fn()
	}
	s.cleanups = nil
	for _, child := range s.scopes {
		child.stop(true)
	}
	s.scopes = nil
	if !fromParent && s.parent != nil {
		if i := slices.Index(s.parent.scopes, s); i >= 0 {
			s.parent.scopes = slices.Delete(s.parent.scopes, i, i+1)
		}
	}
	s.parent = nil
	s.rs.logger.Debug("effect scope stopped")
}

func (s *Scope) removeEffect(e *Effect) {
	if !s.active {
		return
	}
	if i := slices.Index(s.effects, e); i >= 0 {
		s.effects = slices.Delete(s.effects, i, i+1)
	}
}
