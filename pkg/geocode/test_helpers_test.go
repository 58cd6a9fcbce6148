package geocode

import "context"

// noLimit replaces a provider's limiter so tests don't wait on real intervals.
type noLimit struct{}

func (noLimit) Acquire(context.Context) error { return nil }

// unlimit swaps the paired rate limiter out of a provider built via New.
func unlimit(p Provider) Provider {
	switch v := p.(type) {
	case *nominatimProvider:
		v.limiter = noLimit{}
	case *googleProvider:
		v.limiter = noLimit{}
	case *mapboxProvider:
		v.limiter = noLimit{}
	}
	return p
}
