package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/hupe1980/qvcompress/distance"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("kmeans: k must be positive")
	// ErrNotEnoughVectors is returned when there are fewer vectors than clusters.
	ErrNotEnoughVectors = errors.New("kmeans: fewer vectors than clusters")
	// ErrInvalidDimension is returned when dim is not positive or does not divide the data.
	ErrInvalidDimension = errors.New("kmeans: invalid dimension")
)

// Init selects how initial centroids are chosen.
type Init int

const (
	// InitPlusPlus seeds centroids with k-means++ (D(x)^2 sampling).
	InitPlusPlus Init = iota
	// InitRandom seeds centroids with k distinct random vectors.
	InitRandom
)

func (i Init) String() string {
	switch i {
	case InitPlusPlus:
		return "kmeans++"
	case InitRandom:
		return "random"
	default:
		return "unknown"
	}
}

// DefaultMaxIter is used when Options.MaxIter is not positive.
const DefaultMaxIter = 100

// Options configures Train.
type Options struct {
	MaxIter int
	Init    Init
	Seed    int64

	// OnEmptyCluster is called when a cluster lost all members and was
	// reseeded from a random vector.
	OnEmptyCluster func(cluster, iteration int)
}

// Result holds trained centroids.
type Result struct {
	// Centroids is flattened (k * dim).
	Centroids   []float64
	Assignments []int
	Iterations  int
	Converged   bool
}

// Train trains k centroids from the given flattened vectors using Lloyd's
// algorithm under the squared Euclidean distance.
// Assignment ties resolve to the lowest centroid index.
func Train(ctx context.Context, vectors []float64, dim int, k int, opts Options) (*Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if dim <= 0 || len(vectors)%dim != 0 {
		return nil, ErrInvalidDimension
	}
	n := len(vectors) / dim
	if n < k {
		return nil, ErrNotEnoughVectors
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultMaxIter
	}

	distFunc := distance.SquaredL2
	rng := rand.New(rand.NewSource(opts.Seed))

	var centroids []float64
	switch opts.Init {
	case InitRandom:
		centroids = initRandom(rng, vectors, n, dim, k)
	default:
		centroids = initPlusPlus(rng, vectors, n, dim, k, distFunc)
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	res := &Result{Centroids: centroids, Assignments: assignments}

	for iter := 0; iter < opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		// Assignment step
		changed := false
		for i := 0; i < n; i++ {
			best := Nearest(vectors[i*dim:(i+1)*dim], centroids, dim, distFunc)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			res.Converged = true
			break
		}

		// Update step
		clear(sums)
		clear(counts)

		for i := 0; i < n; i++ {
			cluster := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[cluster*dim+d] += vec[d]
			}
			counts[cluster]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				inv := 1.0 / float64(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * inv
				}
				continue
			}
			// Re-initialize empty cluster with a random point
			idx := rng.Intn(n)
			copy(centroids[j*dim:(j+1)*dim], vectors[idx*dim:(idx+1)*dim])
			if opts.OnEmptyCluster != nil {
				opts.OnEmptyCluster(j, iter)
			}
		}
	}

	return res, nil
}

// Nearest returns the index of the centroid closest to vec. Ties resolve to
// the lowest index.
func Nearest(vec []float64, centroids []float64, dim int, distFunc distance.Func) int {
	k := len(centroids) / dim
	bestCluster := -1
	minDist := math.Inf(1)

	for j := 0; j < k; j++ {
		d := distFunc(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			bestCluster = j
		}
	}
	if bestCluster < 0 && k > 0 {
		// All distances were NaN.
		bestCluster = 0
	}
	return bestCluster
}

func initRandom(rng *rand.Rand, vectors []float64, n, dim, k int) []float64 {
	centroids := make([]float64, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}
	return centroids
}

// initPlusPlus picks the first centroid uniformly and every following one
// with probability proportional to its distance to the nearest chosen centroid.
func initPlusPlus(rng *rand.Rand, vectors []float64, n, dim, k int, distFunc distance.Func) []float64 {
	centroids := make([]float64, k*dim)

	first := rng.Intn(n)
	copy(centroids[:dim], vectors[first*dim:(first+1)*dim])

	minDistances := make([]float64, n)
	for i := 0; i < n; i++ {
		minDistances[i] = distFunc(vectors[i*dim:(i+1)*dim], centroids[:dim])
	}

	for c := 1; c < k; c++ {
		var total float64
		for _, d := range minDistances {
			total += d
		}

		selected := n - 1
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, d := range minDistances {
				cum += d
				if cum >= target && d > 0 {
					selected = i
					break
				}
			}
		} else {
			selected = rng.Intn(n)
		}

		center := centroids[c*dim : (c+1)*dim]
		copy(center, vectors[selected*dim:(selected+1)*dim])

		for i := 0; i < n; i++ {
			if d := distFunc(vectors[i*dim:(i+1)*dim], center); d < minDistances[i] {
				minDistances[i] = d
			}
		}
	}

	return centroids
}
