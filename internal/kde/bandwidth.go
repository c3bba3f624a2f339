package kde

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// MinObservations is the smallest observation count a bandwidth can be
// selected for.
const MinObservations = 2

// Method selects how the smoothing parameter is chosen.
type Method string

const (
	// MethodReference uses the ad hoc reference bandwidth href.
	MethodReference Method = "href"
	// MethodLSCV minimises the least-squares cross-validation score.
	MethodLSCV Method = "lscv"
	// MethodFixed uses a caller-supplied bandwidth.
	MethodFixed Method = "fixed"
)

// ValidMethods contains all accepted bandwidth methods.
var ValidMethods = []Method{MethodReference, MethodLSCV, MethodFixed}

// ParseMethod parses a method name case-insensitively. "reference" is
// accepted as an alias of "href".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "href", "reference":
		return MethodReference, nil
	case "lscv":
		return MethodLSCV, nil
	case "fixed":
		return MethodFixed, nil
	}
	return "", fmt.Errorf("unknown bandwidth method %q (want href, lscv or fixed)", s)
}

// Bandwidth is the outcome of bandwidth selection for one observation set.
type Bandwidth struct {
	H      float64
	Method Method
	// Reference is href for the same observations. It is always computed
	// because the LSCV search range is expressed relative to it.
	Reference float64
	// Curve holds the evaluated LSCV scores in candidate order; nil for
	// other methods.
	Curve []ScorePoint
}

// BandwidthOptions configures SelectBandwidth.
type BandwidthOptions struct {
	Method Method
	// Fixed is the bandwidth used by MethodFixed, in coordinate units.
	Fixed float64
	// LSCVMinFactor and LSCVMaxFactor bound the LSCV search as multiples
	// of href.
	LSCVMinFactor float64
	LSCVMaxFactor float64
	// LSCVSteps is the number of geometrically spaced candidates.
	LSCVSteps int
}

// DefaultBandwidthOptions returns the reference method with the default
// LSCV search range of [0.1, 1.5]·href over 40 candidates.
func DefaultBandwidthOptions() BandwidthOptions {
	return BandwidthOptions{
		Method:        MethodReference,
		LSCVMinFactor: 0.1,
		LSCVMaxFactor: 1.5,
		LSCVSteps:     40,
	}
}

// Validate checks the options without looking at any data.
func (o BandwidthOptions) Validate() error {
	switch o.Method {
	case MethodReference:
	case MethodFixed:
		if !(o.Fixed > 0) || math.IsInf(o.Fixed, 0) {
			return fmt.Errorf("fixed bandwidth must be positive and finite, got %g", o.Fixed)
		}
	case MethodLSCV:
		if !(o.LSCVMinFactor > 0) {
			return fmt.Errorf("LSCVMinFactor must be positive, got %g", o.LSCVMinFactor)
		}
		if o.LSCVMaxFactor <= o.LSCVMinFactor {
			return fmt.Errorf("LSCVMaxFactor (%g) must exceed LSCVMinFactor (%g)", o.LSCVMaxFactor, o.LSCVMinFactor)
		}
		if o.LSCVSteps < 3 {
			return fmt.Errorf("LSCVSteps must be at least 3, got %d", o.LSCVSteps)
		}
	default:
		return fmt.Errorf("unknown bandwidth method %q", o.Method)
	}
	return nil
}

// ReferenceBandwidth returns href = 0.5·(sd_x + sd_y)·n^(-1/6), with sd the
// sample standard deviation of each coordinate. It is invariant to
// translation and scales linearly with the coordinates.
func ReferenceBandwidth(obs Observations) (float64, error) {
	n := len(obs.Points)
	if n < MinObservations {
		return 0, &InsufficientDataError{ID: obs.ID, N: n}
	}
	xs, ys := obs.Coordinates()
	sdx := stat.StdDev(xs, nil)
	sdy := stat.StdDev(ys, nil)
	h := 0.5 * (sdx + sdy) * math.Pow(float64(n), -1.0/6.0)
	if !(h > 0) || math.IsInf(h, 0) {
		return 0, &InsufficientDataError{ID: obs.ID, N: n, Reason: "observations have zero spread"}
	}
	return h, nil
}

// SelectBandwidth chooses h for obs according to opts. Observations must
// already be clean. LSCV failures are returned as
// *BandwidthConvergenceFailure and are never replaced by href here.
func SelectBandwidth(obs Observations, opts BandwidthOptions) (Bandwidth, error) {
	if err := opts.Validate(); err != nil {
		return Bandwidth{}, err
	}
	href, err := ReferenceBandwidth(obs)
	if err != nil {
		return Bandwidth{}, err
	}

	switch opts.Method {
	case MethodFixed:
		diagf("%s: fixed h=%g (href=%g, n=%d)", obs.ID, opts.Fixed, href, len(obs.Points))
		return Bandwidth{H: opts.Fixed, Method: MethodFixed, Reference: href}, nil
	case MethodLSCV:
		return lscvBandwidth(obs, href, opts)
	default:
		diagf("%s: href=%g (n=%d)", obs.ID, href, len(obs.Points))
		return Bandwidth{H: href, Method: MethodReference, Reference: href}, nil
	}
}
