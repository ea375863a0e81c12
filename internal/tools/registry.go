package tools

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/dotcommander/courtside/internal/proto"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ErrUnknownTool is returned by Call for names not in the registry.
type ErrUnknownTool struct{ Name string }

func (e ErrUnknownTool) Error() string { return fmt.Sprintf("unknown tool %q", e.Name) }

// Registry is an ordered set of tools keyed by name. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry returns a registry holding the given tools. It panics on
// invalid or duplicate names, which are programming errors.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t. Names must be unique and match [a-zA-Z0-9_-]{1,64}.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid tool name %q", name)
	}
	seen := map[string]bool{}
	for _, p := range t.Params() {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("tool %s: invalid or duplicate parameter %q", name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subset returns a new registry with the named tools, in the given order.
// Names r does not hold are skipped and returned as missing.
func (r *Registry) Subset(names ...string) (sub *Registry, missing []string) {
	sub = NewRegistry()
	for _, n := range names {
		t, ok := r.Get(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		if err := sub.Register(t); err != nil {
			missing = append(missing, n)
		}
	}
	return sub, missing
}

// Specs describes every tool for the model.
func (r *Registry) Specs() []proto.ToolSpec {
	ts := r.List()
	out := make([]proto.ToolSpec, 0, len(ts))
	for _, t := range ts {
		out = append(out, proto.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      Schema(t.Params()),
		})
	}
	return out
}

// Call validates raw JSON arguments and runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, raw []byte) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", ErrUnknownTool{Name: name}
	}
	args, err := ParseArgs(name, t.Params(), raw)
	if err != nil {
		return "", err
	}
	return t.Call(ctx, args)
}
