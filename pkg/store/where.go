package store

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// whereCache compiles each expression once. Programs are compiled without an
// environment since items of one resource need not share a shape.
type whereCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func (c *whereCache) compile(expression string) (*vm.Program, error) {
	c.mu.RLock()
	if program, ok := c.programs[expression]; ok {
		c.mu.RUnlock()
		return program, nil
	}
	c.mu.RUnlock()

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = make(map[string]*vm.Program)
	}
	if existing, ok := c.programs[expression]; ok {
		return existing, nil
	}
	c.programs[expression] = program
	return program, nil
}

// filter returns the items for which expression evaluates to true. Item
// fields are available as variables; missing fields are nil.
func (c *whereCache) filter(items []Item, expression string) ([]Item, error) {
	program, err := c.compile(expression)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		result, err := expr.Run(program, map[string]any(item))
		if err != nil {
			return nil, fmt.Errorf("eval %q on item %q: %w", expression, item.ID(), err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("expression %q returned %T, want bool", expression, result)
		}
		if keep {
			out = append(out, item)
		}
	}
	return out, nil
}
