// Package dataset holds the immutable per-study inputs consumed by every
// estimator: observed effects, sampling variances, optional covariates and
// sample sizes. All transformations derive new values; nothing mutates a
// Dataset after construction.
package dataset

import (
	"fmt"
	"math"
	"strconv"

	"gometa/domain/core"

	"gonum.org/v1/gonum/mat"
)

// InterceptName is the covariate name assigned to the implicit intercept column.
const InterceptName = "intercept"

// Dataset is an ordered sequence of k studies. All slices have length k;
// the covariate matrix has k rows and p columns (intercept included unless
// suppressed at construction).
type Dataset struct {
	y     []float64
	v     []float64 // nil when variances are unknown (sample-size variants only)
	n     []float64 // nil when sample sizes were not supplied
	x     []float64 // row-major k x p
	p     int
	names []string
	ids   []core.StudyID
}

// Option configures Dataset construction.
type Option func(*builder)

type builder struct {
	x            [][]float64
	names        []string
	n            []float64
	ids          []core.StudyID
	noIntercept  bool
	hasCovariate bool
}

// WithCovariates supplies one covariate row per study. Names are optional;
// missing names default to x1, x2, ...
func WithCovariates(rows [][]float64, names ...string) Option {
	return func(b *builder) {
		b.x = rows
		b.names = names
		b.hasCovariate = true
	}
}

// WithSampleSizes supplies per-study sample sizes, used by sample-size based
// estimators and by weighted p-value combination.
func WithSampleSizes(n []float64) Option {
	return func(b *builder) { b.n = n }
}

// WithStudyIDs supplies opaque per-study labels. Defaults to the positional index.
func WithStudyIDs(ids []core.StudyID) Option {
	return func(b *builder) { b.ids = ids }
}

// WithoutIntercept suppresses the implicit leading column of ones.
func WithoutIntercept() Option {
	return func(b *builder) { b.noIntercept = true }
}

// New validates and constructs a Dataset. The variance slice may be nil when
// sample sizes are supplied instead; if present it must be strictly positive.
func New(y, v []float64, opts ...Option) (*Dataset, error) {
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	k := len(y)
	if k == 0 {
		return nil, core.ErrEmptyDataset
	}
	if v != nil && len(v) != k {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "v",
			fmt.Sprintf("len(v)=%d, len(y)=%d", len(v), k))
	}
	for i, vi := range v {
		if vi <= 0 || math.IsNaN(vi) || math.IsInf(vi, 0) {
			return nil, core.NewValidationError(core.ErrNonPositiveVariance, "v",
				fmt.Sprintf("v[%d]=%g", i, vi))
		}
	}
	if b.n != nil {
		if len(b.n) != k {
			return nil, core.NewValidationError(core.ErrShapeMismatch, "n",
				fmt.Sprintf("len(n)=%d, len(y)=%d", len(b.n), k))
		}
		for i, ni := range b.n {
			if ni <= 0 || math.IsNaN(ni) || math.IsInf(ni, 0) {
				return nil, core.NewValidationError(core.ErrNonPositiveSample, "n",
					fmt.Sprintf("n[%d]=%g", i, ni))
			}
		}
	}
	if b.hasCovariate && len(b.x) != k {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "X",
			fmt.Sprintf("%d rows, %d studies", len(b.x), k))
	}

	cols := 0
	if b.hasCovariate {
		cols = len(b.x[0])
		for i, row := range b.x {
			if len(row) != cols {
				return nil, core.NewValidationError(core.ErrShapeMismatch, "X",
					fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), cols))
			}
		}
	}
	if b.names != nil && len(b.names) != cols {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "X_names",
			fmt.Sprintf("%d names for %d covariates", len(b.names), cols))
	}

	ds := &Dataset{
		y: append([]float64(nil), y...),
	}
	if v != nil {
		ds.v = append([]float64(nil), v...)
	}
	if b.n != nil {
		ds.n = append([]float64(nil), b.n...)
	}

	names := b.names
	if names == nil {
		names = make([]string, cols)
		for j := range names {
			names[j] = "x" + strconv.Itoa(j+1)
		}
	}

	ds.p = cols
	ds.x = make([]float64, k*cols)
	for i, row := range b.x {
		copy(ds.x[i*cols:(i+1)*cols], row)
	}
	ds.names = append([]string(nil), names...)

	if b.ids != nil {
		if len(b.ids) != k {
			return nil, core.NewValidationError(core.ErrShapeMismatch, "study_ids",
				fmt.Sprintf("%d ids for %d studies", len(b.ids), k))
		}
		seen := make(map[core.StudyID]struct{}, k)
		for _, id := range b.ids {
			if _, dup := seen[id]; dup {
				return nil, core.NewValidationError(core.ErrDuplicateStudyID, "study_ids", id.String())
			}
			seen[id] = struct{}{}
		}
		ds.ids = append([]core.StudyID(nil), b.ids...)
	} else {
		ds.ids = make([]core.StudyID, k)
		for i := range ds.ids {
			ds.ids[i] = core.StudyID(strconv.Itoa(i))
		}
	}

	if !b.noIntercept {
		ds = ds.AddIntercept()
	}
	if ds.p == 0 {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "X",
			"no covariates and intercept suppressed")
	}
	if ds.p > len(ds.y) {
		return nil, fmt.Errorf("%w: k=%d, p=%d", core.ErrTooFewStudies, len(ds.y), ds.p)
	}
	return ds, nil
}

// AddIntercept returns a new Dataset with a leading column of ones, unless a
// constant column is already present.
func (d *Dataset) AddIntercept() *Dataset {
	if d.hasConstantColumn() {
		return d
	}
	k := len(d.y)
	out := d.shallowCopy()
	out.p = d.p + 1
	out.x = make([]float64, k*out.p)
	out.names = append([]string{InterceptName}, d.names...)
	for i := 0; i < k; i++ {
		out.x[i*out.p] = 1
		copy(out.x[i*out.p+1:(i+1)*out.p], d.x[i*d.p:(i+1)*d.p])
	}
	return out
}

func (d *Dataset) hasConstantColumn() bool {
	k := len(d.y)
	for j := 0; j < d.p; j++ {
		constant := true
		for i := 1; i < k; i++ {
			if d.x[i*d.p+j] != d.x[j] {
				constant = false
				break
			}
		}
		if constant && k > 0 && d.x[j] != 0 {
			return true
		}
	}
	return false
}

// K returns the number of studies.
func (d *Dataset) K() int { return len(d.y) }

// P returns the number of regression coefficients.
func (d *Dataset) P() int { return d.p }

// HasVariances reports whether per-study sampling variances were supplied.
func (d *Dataset) HasVariances() bool { return d.v != nil }

// HasSampleSizes reports whether per-study sample sizes were supplied.
func (d *Dataset) HasSampleSizes() bool { return d.n != nil }

// Effects returns a copy of the observed effects.
func (d *Dataset) Effects() []float64 {
	return append([]float64(nil), d.y...)
}

// Variances returns a copy of the sampling variances, or nil when absent.
func (d *Dataset) Variances() []float64 {
	if d.v == nil {
		return nil
	}
	return append([]float64(nil), d.v...)
}

// SampleSizes returns a copy of the sample sizes, or nil when absent.
func (d *Dataset) SampleSizes() []float64 {
	if d.n == nil {
		return nil
	}
	return append([]float64(nil), d.n...)
}

// Design returns a copy of the k x p covariate matrix.
func (d *Dataset) Design() *mat.Dense {
	return mat.NewDense(len(d.y), d.p, append([]float64(nil), d.x...))
}

// CovariateNames returns the column names of the design matrix.
func (d *Dataset) CovariateNames() []string {
	return append([]string(nil), d.names...)
}

// StudyIDs returns the per-study labels.
func (d *Dataset) StudyIDs() []core.StudyID {
	return append([]core.StudyID(nil), d.ids...)
}

// Fingerprint hashes the numeric content, for log correlation.
func (d *Dataset) Fingerprint() core.Fingerprint {
	cols := map[string][]float64{"y": d.y, "x": d.x}
	if d.v != nil {
		cols["v"] = d.v
	}
	if d.n != nil {
		cols["n"] = d.n
	}
	return core.ComputeFingerprint(cols)
}

// PermuteCovariates returns a new Dataset whose covariate rows are reordered
// by perm relative to the fixed effects and variances. The intercept column
// (constant columns in general) is left in place.
func (d *Dataset) PermuteCovariates(perm []int) *Dataset {
	k := len(d.y)
	out := d.shallowCopy()
	out.x = make([]float64, len(d.x))
	for i := 0; i < k; i++ {
		src := perm[i]
		for j := 0; j < d.p; j++ {
			if d.columnConstant(j) {
				out.x[i*d.p+j] = d.x[i*d.p+j]
			} else {
				out.x[i*d.p+j] = d.x[src*d.p+j]
			}
		}
	}
	return out
}

// FlipSigns returns a new Dataset with y negated wherever mask is set.
// Used by sign-flipping permutation of the pooled effect.
func (d *Dataset) FlipSigns(mask []bool) *Dataset {
	out := d.shallowCopy()
	out.y = append([]float64(nil), d.y...)
	for i, flip := range mask {
		if flip {
			out.y[i] = -out.y[i]
		}
	}
	return out
}

func (d *Dataset) columnConstant(j int) bool {
	k := len(d.y)
	for i := 1; i < k; i++ {
		if d.x[i*d.p+j] != d.x[j] {
			return false
		}
	}
	return true
}

// shallowCopy shares the immutable backing slices; callers replace the ones
// they derive anew.
func (d *Dataset) shallowCopy() *Dataset {
	out := *d
	return &out
}
