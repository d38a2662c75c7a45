package capture

import "zetrace/internal/zeapi"

// Arg is one captured argument rendered as text.
type Arg struct {
	Name  string
	Value string
}

// Command is a single recorded API invocation.
type Command struct {
	Kind   Kind
	Args   []Arg
	Signal zeapi.EventHandle
	Waits  []zeapi.EventHandle
}

// Arg returns the value of the named argument.
func (c *Command) Arg(name string) (string, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// WaitsOn reports whether ev is among the command's wait events.
func (c *Command) WaitsOn(ev zeapi.EventHandle) bool {
	for _, w := range c.Waits {
		if w == ev {
			return true
		}
	}
	return false
}
