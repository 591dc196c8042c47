// Package rating implements the Glicko-2 rating system as a batched
// rating-period update. Each tournament round is one rating period: a
// competitor's new rating, deviation, and volatility are computed from its
// pre-round state and the set of opponents it faced during the round, then
// committed together. Competitors that sat the round out go through the
// inactivity step instead, which inflates deviation without touching rating.
package rating

import (
	"fmt"
	"math"
)

// Constants for Glicko-2 defaults.
const (
	// DefaultInitialRating is the rating assigned to new competitors and
	// the center of the internal Glicko-2 scale.
	DefaultInitialRating = 1500.0
	// DefaultInitialDeviation is the deviation assigned to new
	// competitors and the ceiling deviation may inflate back to.
	DefaultInitialDeviation = 350.0
	// DefaultInitialVolatility is the volatility assigned to new
	// competitors.
	DefaultInitialVolatility = 0.06
	// DefaultTau constrains how fast volatility can change between
	// rounds. Smaller values damp rating swings from upset results.
	DefaultTau = 0.5
	// DefaultMaxIterations bounds the volatility solver.
	DefaultMaxIterations = 100
	// DefaultTolerance is the convergence tolerance of the volatility
	// solver on the log-variance scale.
	DefaultTolerance = 1e-6
	// DefaultVolatilityFloor keeps volatility strictly positive.
	DefaultVolatilityFloor = 1e-6

	// scale converts between the display scale and the internal
	// Glicko-2 scale.
	scale = 173.7178
)

// Match outcome scores from one side's perspective.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// State is a competitor's rating triple at a round boundary.
type State struct {
	Rating     float64
	Deviation  float64
	Volatility float64
}

// Opponent is one result a competitor obtained during a round, carrying the
// opponent's pre-round rating and deviation. Both sides of a match see the
// same pre-round numbers regardless of commit order.
type Opponent struct {
	Rating    float64
	Deviation float64
	Score     float64
}

// Updater computes post-round rating states.
type Updater interface {
	// Update applies one rating period. An empty opponent slice is
	// treated as inactivity. When the volatility solver fails to
	// converge the returned state is still usable: it is computed with
	// the prior volatility and the error wraps ErrConvergence.
	Update(prior State, opponents []Opponent) (State, error)

	// Inflate applies the inactivity step: deviation grows toward the
	// initial deviation while rating and volatility stay put.
	Inflate(prior State) State

	// Initial returns the state assigned to a new competitor.
	Initial() State
}

// Glicko2Updater is the standard Glicko-2 implementation of Updater. It is
// stateless and safe for concurrent use.
type Glicko2Updater struct {
	initialRating     float64
	initialDeviation  float64
	initialVolatility float64
	tau               float64
	maxIterations     int
	tolerance         float64
	deviationFloor    float64
	volatilityFloor   float64
}

// Option configures a Glicko2Updater.
type Option func(*Glicko2Updater)

// WithInitialRating sets the rating assigned to new competitors. It is also
// the center of the internal scale, so populations seeded at a different
// baseline keep the same relative dynamics.
func WithInitialRating(r float64) Option {
	return func(u *Glicko2Updater) {
		if r > 0 {
			u.initialRating = r
		}
	}
}

// WithInitialDeviation sets the deviation assigned to new competitors and
// the cap applied when inactivity inflates deviation.
func WithInitialDeviation(d float64) Option {
	return func(u *Glicko2Updater) {
		if d > 0 {
			u.initialDeviation = d
		}
	}
}

// WithInitialVolatility sets the volatility assigned to new competitors.
func WithInitialVolatility(v float64) Option {
	return func(u *Glicko2Updater) {
		if v > 0 {
			u.initialVolatility = v
		}
	}
}

// WithTau sets the volatility constraint. Typical values are 0.3 to 1.2.
func WithTau(t float64) Option {
	return func(u *Glicko2Updater) {
		if t > 0 {
			u.tau = t
		}
	}
}

// WithMaxIterations bounds the volatility solver iteration count.
func WithMaxIterations(n int) Option {
	return func(u *Glicko2Updater) {
		if n > 0 {
			u.maxIterations = n
		}
	}
}

// WithTolerance sets the volatility solver convergence tolerance.
func WithTolerance(eps float64) Option {
	return func(u *Glicko2Updater) {
		if eps > 0 {
			u.tolerance = eps
		}
	}
}

// WithDeviationFloor sets the minimum deviation a competitor can reach.
// Zero disables the floor.
func WithDeviationFloor(d float64) Option {
	return func(u *Glicko2Updater) {
		if d >= 0 {
			u.deviationFloor = d
		}
	}
}

// WithVolatilityFloor sets the minimum volatility a competitor can reach.
func WithVolatilityFloor(v float64) Option {
	return func(u *Glicko2Updater) {
		if v > 0 {
			u.volatilityFloor = v
		}
	}
}

// NewGlicko2Updater creates an updater with the given options.
func NewGlicko2Updater(opts ...Option) *Glicko2Updater {
	u := &Glicko2Updater{
		initialRating:     DefaultInitialRating,
		initialDeviation:  DefaultInitialDeviation,
		initialVolatility: DefaultInitialVolatility,
		tau:               DefaultTau,
		maxIterations:     DefaultMaxIterations,
		tolerance:         DefaultTolerance,
		volatilityFloor:   DefaultVolatilityFloor,
	}
	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Initial returns the state assigned to a new competitor.
func (u *Glicko2Updater) Initial() State {
	return State{
		Rating:     u.initialRating,
		Deviation:  u.initialDeviation,
		Volatility: u.initialVolatility,
	}
}

// Update applies one rating period to a single competitor. All opponent
// numbers must be pre-round values; the caller is responsible for freezing
// them before any result of the round is applied.
func (u *Glicko2Updater) Update(prior State, opponents []Opponent) (State, error) {
	if len(opponents) == 0 {
		return u.Inflate(prior), nil
	}

	mu := (prior.Rating - u.initialRating) / scale
	phi := prior.Deviation / scale

	// Estimated variance of the rating from game outcomes alone, and the
	// estimated improvement delta.
	var vInv, outcomeSum float64
	for _, opp := range opponents {
		muJ := (opp.Rating - u.initialRating) / scale
		phiJ := opp.Deviation / scale
		gJ := g(phiJ)
		eJ := expectation(mu, muJ, phiJ)
		vInv += gJ * gJ * eJ * (1 - eJ)
		outcomeSum += gJ * (opp.Score - eJ)
	}
	v := 1 / vInv
	delta := v * outcomeSum

	sigmaPrime, convErr := u.solveVolatility(phi, v, delta, prior.Volatility)

	phiStar := math.Sqrt(phi*phi + sigmaPrime*sigmaPrime)
	phiPrime := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	muPrime := mu + phiPrime*phiPrime*outcomeSum

	next := State{
		Rating:     u.initialRating + scale*muPrime,
		Deviation:  u.clampDeviation(scale * phiPrime),
		Volatility: math.Max(sigmaPrime, u.volatilityFloor),
	}

	return next, convErr
}

// Inflate applies the inactivity step. Deviation grows by the competitor's
// own volatility, capped at the initial deviation so a long idle streak
// never makes a competitor look more uncertain than an unknown one.
func (u *Glicko2Updater) Inflate(prior State) State {
	phi := prior.Deviation / scale
	sigma := prior.Volatility
	phiStar := math.Sqrt(phi*phi + sigma*sigma)

	return State{
		Rating:     prior.Rating,
		Deviation:  u.clampDeviation(scale * phiStar),
		Volatility: prior.Volatility,
	}
}

// solveVolatility finds the new volatility by the Illinois variant of
// regula falsi on the log-variance scale. When the iteration budget runs
// out before the bracket closes it returns the prior volatility together
// with an error wrapping ErrConvergence.
func (u *Glicko2Updater) solveVolatility(phi, v, delta, sigma float64) (float64, error) {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2 * (phi*phi + v + ex) * (phi*phi + v + ex)

		return num/den - (x-a)/(u.tau*u.tau)
	}

	// Initial bracket [A, B] around the root.
	bigA := a
	var bigB float64
	if delta*delta > phi*phi+v {
		bigB = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*u.tau) < 0 {
			k++
			if int(k) > u.maxIterations {
				return sigma, fmt.Errorf("volatility bracket search exceeded %d steps: %w", u.maxIterations, ErrConvergence)
			}
		}
		bigB = a - k*u.tau
	}

	fA := f(bigA)
	fB := f(bigB)
	for i := 0; i < u.maxIterations; i++ {
		if math.Abs(bigB-bigA) <= u.tolerance {
			return math.Exp(bigA / 2), nil
		}
		c := bigA + (bigA-bigB)*fA/(fB-fA)
		fC := f(c)
		if fC*fB <= 0 {
			bigA = bigB
			fA = fB
		} else {
			// Illinois step: halving fA keeps the stale endpoint
			// from stalling the bracket.
			fA /= 2
		}
		bigB = c
		fB = fC
	}
	if math.Abs(bigB-bigA) <= u.tolerance {
		return math.Exp(bigA / 2), nil
	}

	return sigma, fmt.Errorf("volatility solver exceeded %d iterations: %w", u.maxIterations, ErrConvergence)
}

// clampDeviation applies the configured floor and the initial-deviation cap.
func (u *Glicko2Updater) clampDeviation(d float64) float64 {
	if d > u.initialDeviation {
		d = u.initialDeviation
	}
	if d < u.deviationFloor {
		d = u.deviationFloor
	}

	return d
}

// g scales down the impact of results against uncertain opponents.
func g(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}

// expectation is the expected score against one opponent.
func expectation(mu, muJ, phiJ float64) float64 {
	return 1 / (1 + math.Exp(-g(phiJ)*(mu-muJ)))
}
