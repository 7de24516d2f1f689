package control

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// Param is a named, externally tunable value. Set may reject a value.
type Param struct {
	Group string
	Name  string
	Get   func() float64
	Set   func(float64) error
}

// FullName is "group.name".
func (p Param) FullName() string {
	return p.Group + "." + p.Name
}

// ParamRegistry maps parameter names to accessors. It is safe for concurrent use; the accessors
// do their own locking.
type ParamRegistry struct {
	mu     sync.RWMutex
	params map[string]Param
}

// NewParamRegistry returns an empty registry.
func NewParamRegistry() *ParamRegistry {
	return &ParamRegistry{params: map[string]Param{}}
}

// Register adds a parameter. Names must be unique.
func (r *ParamRegistry) Register(p Param) error {
	if p.Group == "" || p.Name == "" || strings.Contains(p.Name, ".") {
		return errors.Errorf("invalid parameter name %q", p.FullName())
	}
	if p.Get == nil {
		return errors.Errorf("parameter %q has no getter", p.FullName())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.params[p.FullName()]; ok {
		return errors.Errorf("parameter %q already registered", p.FullName())
	}
	r.params[p.FullName()] = p
	return nil
}

func (r *ParamRegistry) lookup(name string) (Param, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[name]
	if !ok {
		return Param{}, errors.Errorf("unknown parameter %q", name)
	}
	return p, nil
}

// Get returns the value of a parameter.
func (r *ParamRegistry) Get(name string) (float64, error) {
	p, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return p.Get(), nil
}

// Set coerces `value` to a float64 and writes it. Strings, integers and booleans are accepted.
func (r *ParamRegistry) Set(name string, value interface{}) error {
	p, err := r.lookup(name)
	if err != nil {
		return err
	}
	if p.Set == nil {
		return errors.Errorf("parameter %q is read only", name)
	}
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return errors.Wrapf(err, "cannot set parameter %q", name)
	}
	return p.Set(v)
}

// Names returns all parameter names sorted.
func (r *ParamRegistry) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.params)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Group returns the sorted names of the parameters in `group`.
func (r *ParamRegistry) Group(group string) []string {
	return lo.Filter(r.Names(), func(name string, _ int) bool {
		return strings.HasPrefix(name, group+".")
	})
}

// Snapshot reads every parameter.
func (r *ParamRegistry) Snapshot() map[string]float64 {
	names := r.Names()
	return lo.SliceToMap(names, func(name string) (string, float64) {
		v, _ := r.Get(name)
		return name, v
	})
}

// GeometricParamGroup is the group the geometric controller registers its parameters under.
const GeometricParamGroup = "ctrlGeom"

// RegisterParams exposes every gain and the mode of g under GeometricParamGroup. Setting a gain
// replaces the whole gain set atomically and is rejected if it would make the gains invalid.
func (g *Geometric) RegisterParams(r *ParamRegistry) error {
	var probe Gains
	for name := range probe.fields() {
		name := name
		err := r.Register(Param{
			Group: GeometricParamGroup,
			Name:  name,
			Get: func() float64 {
				gains := g.Gains()
				return *gains.fields()[name]
			},
			Set: func(v float64) error {
				g.mu.Lock()
				defer g.mu.Unlock()
				gains := g.gains
				*gains.fields()[name] = v
				if err := gains.Validate(); err != nil {
					return err
				}
				g.gains = gains
				return nil
			},
		})
		if err != nil {
			return err
		}
	}

	return r.Register(Param{
		Group: GeometricParamGroup,
		Name:  "mode",
		Get:   func() float64 { return float64(g.Mode()) },
		Set: func(v float64) error {
			mode := Mode(v)
			if mode != ModePositionHold && mode != ModeFlip {
				return errors.Errorf("unknown controller mode %v", v)
			}
			g.SetMode(mode)
			return nil
		},
	})
}
