// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package algorithms

import (
	"context"
	"math"
	"runtime"
	"sync"
)

// ALSConfig contains configuration for the ALS algorithm.
type ALSConfig struct {
	// NumFactors is the dimension of the latent factor vectors.
	NumFactors int

	// NumIterations is the number of alternating sweeps.
	NumIterations int

	// Regularization is the L2 penalty on factor vectors, scaled by the
	// number of observations of each user or item.
	Regularization float64

	// BiasRegularization shrinks user and item biases toward zero.
	BiasRegularization float64

	// MinRating and MaxRating bound predictions.
	MinRating float64
	MaxRating float64

	// NumWorkers is the number of parallel solvers. If <= 0, runtime.NumCPU().
	NumWorkers int
}

// DefaultALSConfig returns default ALS configuration.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		NumFactors:         50,
		NumIterations:      15,
		Regularization:     0.02,
		BiasRegularization: 5.0,
		MinRating:          1.0,
		MaxRating:          3.0,
		NumWorkers:         runtime.NumCPU(),
	}
}

// ALS is biased matrix factorization for explicit ratings.
//
// Baselines are regularized means: b_i = sum(r - mu) / (lambda_b + n_i), then
// b_u = sum(r - mu - b_i) / (lambda_b + n_u). Factors P and Q are fit to the
// baseline residuals by alternating ridge regressions over the observed
// entries, each solved with a Cholesky decomposition.
type ALS struct {
	config ALSConfig
}

// NewALS creates a new ALS model with the given configuration.
func NewALS(cfg ALSConfig) *ALS {
	def := DefaultALSConfig()
	if cfg.NumFactors <= 0 {
		cfg.NumFactors = def.NumFactors
	}
	if cfg.NumIterations <= 0 {
		cfg.NumIterations = def.NumIterations
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = def.Regularization
	}
	if cfg.BiasRegularization < 0 {
		cfg.BiasRegularization = def.BiasRegularization
	}
	if cfg.MaxRating <= cfg.MinRating {
		cfg.MinRating, cfg.MaxRating = def.MinRating, def.MaxRating
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	return &ALS{config: cfg}
}

// Name returns the model identifier.
func (a *ALS) Name() string {
	return "als"
}

// Config returns the effective configuration.
func (a *ALS) Config() ALSConfig {
	return a.config
}

// observation is one rating against a dense index on the other side.
type observation struct {
	idx   int
	value float64
}

// Train fits a model. Identical input yields identical scores.
//
//nolint:gocyclo // ML training algorithms are inherently complex
func (a *ALS) Train(ctx context.Context, ratings []Rating) (Scorer, error) {
	if len(ratings) == 0 {
		return nil, ErrNoRatings
	}
	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	users := newIndexer()
	items := newIndexer()
	type triple struct {
		u, i int
		r    float64
	}
	obs := make([]triple, len(ratings))
	var sum float64
	for n, r := range ratings {
		obs[n] = triple{u: users.add(r.UserID), i: items.add(r.ItemID), r: r.Value}
		sum += r.Value
	}
	numUsers, numItems := users.len(), items.len()
	mu := sum / float64(len(obs))

	// Item biases first, then user biases on what remains.
	lambdaB := a.config.BiasRegularization
	bi := make([]float64, numItems)
	ni := make([]float64, numItems)
	for _, o := range obs {
		bi[o.i] += o.r - mu
		ni[o.i]++
	}
	for i := range bi {
		bi[i] /= lambdaB + ni[i]
	}

	bu := make([]float64, numUsers)
	nu := make([]float64, numUsers)
	for _, o := range obs {
		bu[o.u] += o.r - mu - bi[o.i]
		nu[o.u]++
	}
	for u := range bu {
		bu[u] /= lambdaB + nu[u]
	}

	// Residual observations grouped by user and by item.
	byUser := make([][]observation, numUsers)
	byItem := make([][]observation, numItems)
	for _, o := range obs {
		e := o.r - mu - bu[o.u] - bi[o.i]
		byUser[o.u] = append(byUser[o.u], observation{idx: o.i, value: e})
		byItem[o.i] = append(byItem[o.i], observation{idx: o.u, value: e})
	}

	k := a.config.NumFactors
	P := initFactors(numUsers, k, 0)
	Q := initFactors(numItems, k, 7)

	for iter := 0; iter < a.config.NumIterations; iter++ {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		a.solveAll(P, Q, byUser)

		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		a.solveAll(Q, P, byItem)
	}

	return &alsScorer{
		mu:    mu,
		bu:    bu,
		bi:    bi,
		P:     P,
		Q:     Q,
		users: users,
		items: items,
		min:   a.config.MinRating,
		max:   a.config.MaxRating,
	}, nil
}

// initFactors fills a rows x k matrix with small deterministic values.
func initFactors(rows, k, offset int) [][]float64 {
	m := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		m[r] = make([]float64, k)
		for f := 0; f < k; f++ {
			m[r][f] = 0.1 * (float64((r*k+f+offset)%1000)/1000.0 - 0.5)
		}
	}
	return m
}

// solveAll updates every row of target with the other side fixed, splitting
// rows across the worker pool. Each worker writes disjoint rows.
func (a *ALS) solveAll(target, fixed [][]float64, groups [][]observation) {
	n := len(target)
	workers := a.config.NumWorkers
	if workers > n {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(rStart, rEnd int) {
			defer wg.Done()
			for r := rStart; r < rEnd; r++ {
				target[r] = a.solveRow(fixed, groups[r])
			}
		}(start, end)
	}
	wg.Wait()
}

// solveRow solves (sum q q' + lambda*n*I) x = sum e q over the row's
// observations.
//
//nolint:gocritic // A follows standard linear algebra notation
func (a *ALS) solveRow(fixed [][]float64, group []observation) []float64 {
	k := a.config.NumFactors
	lambda := a.config.Regularization * math.Max(1, float64(len(group)))

	A := make([][]float64, k)
	for f := range A {
		A[f] = make([]float64, k)
		A[f][f] = lambda
	}
	b := make([]float64, k)

	for _, o := range group {
		y := fixed[o.idx]
		for f1 := 0; f1 < k; f1++ {
			for f2 := f1; f2 < k; f2++ {
				delta := y[f1] * y[f2]
				A[f1][f2] += delta
				if f1 != f2 {
					A[f2][f1] += delta
				}
			}
			b[f1] += o.value * y[f1]
		}
	}

	return solveLinearSystem(A, b)
}

// solveLinearSystem solves A*x = b using Cholesky decomposition.
//
//nolint:gocritic // A, L follow standard linear algebra notation
func solveLinearSystem(A [][]float64, b []float64) []float64 {
	n := len(b)

	// Cholesky decomposition: A = L * L'
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}

			if i == j {
				if sum <= 0 {
					sum = 1e-10
				}
				L[i][j] = math.Sqrt(sum)
			} else if L[j][j] != 0 {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// Forward substitution: L * z = b
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= L[i][j] * z[j]
		}
		if L[i][i] != 0 {
			z[i] = sum / L[i][i]
		}
	}

	// Back substitution: L' * x = z
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= L[j][i] * x[j]
		}
		if L[i][i] != 0 {
			x[i] = sum / L[i][i]
		}
	}

	return x
}

type alsScorer struct {
	mu     float64
	bu, bi []float64
	P, Q   [][]float64
	users  *indexer
	items  *indexer
	min    float64
	max    float64
}

// Score returns mu + b_u + b_i + p_u . q_i, dropping unknown terms.
func (s *alsScorer) Score(userID, itemID string) float64 {
	u, knownUser := s.users.lookup(userID)
	i, knownItem := s.items.lookup(itemID)

	score := s.mu
	if knownUser {
		score += s.bu[u]
	}
	if knownItem {
		score += s.bi[i]
	}
	if knownUser && knownItem {
		score += dot(s.P[u], s.Q[i])
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = s.mu
	}
	return clamp(score, s.min, s.max)
}

func (s *alsScorer) Users() int { return s.users.len() }
func (s *alsScorer) Items() int { return s.items.len() }

// Ensure interface compliance.
var _ Model = (*ALS)(nil)
