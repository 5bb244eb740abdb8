// Swap composition schemes. A scheme maps the fidelities of two adjacent
// pairs meeting at a relay to the fidelity of the composed pair spanning
// the outer endpoints. Whether the swap succeeds at all is governed by the
// relay node's swap success probability, not by the scheme.
//
// Scheme contract: output stays in [0,1] and never exceeds either input.

package sim

import "fmt"

// SwapScheme computes the fidelity of the pair produced by an entanglement
// swap.
type SwapScheme interface {
	Name() string
	Fuse(f1, f2 float64) float64
}

// NewSwapScheme resolves a scheme by its configuration name. The empty name
// selects the default multiplicative scheme.
func NewSwapScheme(name string) (SwapScheme, error) {
	switch name {
	case "", "multiplicative":
		return MultiplicativeScheme{}, nil
	default:
		return nil, fmt.Errorf("unknown swap scheme %q", name)
	}
}

// MultiplicativeScheme degrades fidelity multiplicatively per hop:
// fOut = f1*f2, which is at most min(f1, f2) for inputs in [0,1].
type MultiplicativeScheme struct{}

func (MultiplicativeScheme) Name() string { return "multiplicative" }

func (MultiplicativeScheme) Fuse(f1, f2 float64) float64 { return f1 * f2 }
