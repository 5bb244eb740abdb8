// Purification (distillation) schemes. A scheme maps the fidelities of two
// input pairs sharing the same endpoints to a success probability and the
// output fidelity on success. The exact formula is a protocol-specific
// numeric choice, so it is a pluggable policy selected in the scenario.
//
// Scheme contract: both outputs stay in [0,1] for inputs in [0,1].

package sim

import "fmt"

// DistillScheme computes the outcome of one bilateral distillation round.
type DistillScheme interface {
	Name() string
	// Outcome returns the success probability and the fidelity of the output
	// pair on success, given the two input fidelities.
	Outcome(f1, f2 float64) (pSuccess, fOut float64)
}

// NewDistillScheme resolves a scheme by its configuration name. The empty
// name selects the default error-product scheme.
func NewDistillScheme(name string) (DistillScheme, error) {
	switch name {
	case "", "error-product":
		return ErrorProductScheme{}, nil
	case "dejmps":
		return DEJMPSScheme{}, nil
	default:
		return nil, fmt.Errorf("unknown distill scheme %q", name)
	}
}

// ErrorProductScheme is the default scheme. On success the output error is
// the product of the input errors:
//
//	fOut = 1 - (1-f1)(1-f2)
//	pSuccess = f1*f2 + (1-f1)(1-f2)
//
// so the output fidelity is never below either input, for any inputs in
// [0,1]. The success probability is the even-parity term of a bilateral
// parity measurement.
type ErrorProductScheme struct{}

func (ErrorProductScheme) Name() string { return "error-product" }

func (ErrorProductScheme) Outcome(f1, f2 float64) (float64, float64) {
	e1, e2 := 1.0-f1, 1.0-f2
	return f1*f2 + e1*e2, 1.0 - e1*e2
}

// DEJMPSScheme is the textbook DEJMPS recurrence for two Werner states of
// fidelities f1 and f2:
//
//	pSuccess = f1*f2 + f1*(1-f2)/3 + f2*(1-f1)/3 + 5*(1-f1)*(1-f2)/9
//	fOut     = (f1*f2 + (1-f1)*(1-f2)/9) / pSuccess
//
// Output fidelity improves on the inputs only above fidelity 1/2; below
// that the recurrence may lose fidelity, which is faithful to the physics.
type DEJMPSScheme struct{}

func (DEJMPSScheme) Name() string { return "dejmps" }

func (DEJMPSScheme) Outcome(f1, f2 float64) (float64, float64) {
	e1, e2 := (1.0-f1)/3.0, (1.0-f2)/3.0
	p := f1*f2 + f1*e2 + f2*e1 + 5.0*e1*e2
	if p <= 0 {
		return 0, 0
	}
	return p, (f1*f2 + e1*e2) / p
}
