package forecast

import (
	"math"
	"math/rand"
)

// param is one trainable tensor stored flat, with its gradient accumulator
// and Adam moments. l2 > 0 adds weight decay to the gradient at step time.
type param struct {
	w  []float64
	g  []float64
	m  []float64
	v  []float64
	l2 float64
}

func newParam(size int, l2 float64) *param {
	return &param{
		w:  make([]float64, size),
		g:  make([]float64, size),
		m:  make([]float64, size),
		v:  make([]float64, size),
		l2: l2,
	}
}

func (p *param) zeroGrad() {
	for i := range p.g {
		p.g[i] = 0
	}
}

func glorotInit(p *param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range p.w {
		p.w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// --- LSTM layer ---

// lstmLayer is a single LSTM with gate-stacked kernels in i, f, g, o order.
// wx rows are (4*units) x inputSize, wh rows (4*units) x units.
type lstmLayer struct {
	inputSize int
	units     int
	wx        *param
	wh        *param
	b         *param
}

func newLSTMLayer(inputSize, units int, l2 float64, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		inputSize: inputSize,
		units:     units,
		wx:        newParam(4*units*inputSize, l2),
		wh:        newParam(4*units*units, 0),
		b:         newParam(4*units, 0),
	}
	glorotInit(l.wx, inputSize, units, rng)
	glorotInit(l.wh, units, units, rng)
	// open forget gates at init so early gradients flow through time
	for u := 0; u < units; u++ {
		l.b.w[units+u] = 1
	}
	return l
}

// lstmCache holds everything the backward pass needs for one sequence.
type lstmCache struct {
	x     [][]float64
	i     [][]float64
	f     [][]float64
	g     [][]float64
	o     [][]float64
	c     [][]float64
	h     [][]float64
	tanhC [][]float64
}

// forward runs one sequence through the layer and returns the full hidden
// sequence. Callers wanting only the final state take out[len(out)-1].
func (l *lstmLayer) forward(x [][]float64) ([][]float64, *lstmCache) {
	steps := len(x)
	u := l.units
	cache := &lstmCache{
		x:     x,
		i:     make([][]float64, steps),
		f:     make([][]float64, steps),
		g:     make([][]float64, steps),
		o:     make([][]float64, steps),
		c:     make([][]float64, steps),
		h:     make([][]float64, steps),
		tanhC: make([][]float64, steps),
	}
	hPrev := make([]float64, u)
	cPrev := make([]float64, u)
	z := make([]float64, 4*u)
	for t := 0; t < steps; t++ {
		copy(z, l.b.w)
		for r := 0; r < 4*u; r++ {
			row := l.wx.w[r*l.inputSize : (r+1)*l.inputSize]
			s := z[r]
			for k, xv := range x[t] {
				s += row[k] * xv
			}
			row = l.wh.w[r*u : (r+1)*u]
			for k, hv := range hPrev {
				s += row[k] * hv
			}
			z[r] = s
		}
		it := make([]float64, u)
		ft := make([]float64, u)
		gt := make([]float64, u)
		ot := make([]float64, u)
		ct := make([]float64, u)
		ht := make([]float64, u)
		tc := make([]float64, u)
		for k := 0; k < u; k++ {
			it[k] = sigmoid(z[k])
			ft[k] = sigmoid(z[u+k])
			gt[k] = math.Tanh(z[2*u+k])
			ot[k] = sigmoid(z[3*u+k])
			ct[k] = ft[k]*cPrev[k] + it[k]*gt[k]
			tc[k] = math.Tanh(ct[k])
			ht[k] = ot[k] * tc[k]
		}
		cache.i[t], cache.f[t], cache.g[t], cache.o[t] = it, ft, gt, ot
		cache.c[t], cache.h[t], cache.tanhC[t] = ct, ht, tc
		hPrev, cPrev = ht, ct
	}
	return cache.h, cache
}

// backward propagates dOut (one gradient row per timestep; rows may be nil
// for timesteps that received no gradient, e.g. when only the final state
// fed the next layer) and accumulates parameter gradients. Returns dX.
func (l *lstmLayer) backward(cache *lstmCache, dOut [][]float64) [][]float64 {
	steps := len(cache.x)
	u := l.units
	dx := make([][]float64, steps)
	dhNext := make([]float64, u)
	dcNext := make([]float64, u)
	dz := make([]float64, 4*u)
	for t := steps - 1; t >= 0; t-- {
		dh := make([]float64, u)
		copy(dh, dhNext)
		if dOut[t] != nil {
			for k := range dh {
				dh[k] += dOut[t][k]
			}
		}
		var cPrev, hPrev []float64
		if t > 0 {
			cPrev = cache.c[t-1]
			hPrev = cache.h[t-1]
		} else {
			cPrev = make([]float64, u)
			hPrev = make([]float64, u)
		}
		for k := 0; k < u; k++ {
			it, ft, gt, ot := cache.i[t][k], cache.f[t][k], cache.g[t][k], cache.o[t][k]
			tc := cache.tanhC[t][k]
			do := dh[k] * tc
			dc := dh[k]*ot*(1-tc*tc) + dcNext[k]
			di := dc * gt
			dg := dc * it
			df := dc * cPrev[k]
			dcNext[k] = dc * ft
			dz[k] = di * it * (1 - it)
			dz[u+k] = df * ft * (1 - ft)
			dz[2*u+k] = dg * (1 - gt*gt)
			dz[3*u+k] = do * ot * (1 - ot)
		}
		dxt := make([]float64, l.inputSize)
		for k := range dhNext {
			dhNext[k] = 0
		}
		for r := 0; r < 4*u; r++ {
			grow := l.wx.g[r*l.inputSize : (r+1)*l.inputSize]
			wrow := l.wx.w[r*l.inputSize : (r+1)*l.inputSize]
			for k, xv := range cache.x[t] {
				grow[k] += dz[r] * xv
				dxt[k] += wrow[k] * dz[r]
			}
			grow = l.wh.g[r*u : (r+1)*u]
			wrow = l.wh.w[r*u : (r+1)*u]
			for k, hv := range hPrev {
				grow[k] += dz[r] * hv
				dhNext[k] += wrow[k] * dz[r]
			}
			l.b.g[r] += dz[r]
		}
		dx[t] = dxt
	}
	return dx
}

func (l *lstmLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

// --- batch normalization ---

const (
	bnMomentum = 0.99
	bnEpsilon  = 1e-3
)

// batchNormLayer normalizes each feature over the batch rows it sees in one
// training pass, and over running statistics at inference.
type batchNormLayer struct {
	size    int
	gamma   *param
	beta    *param
	runMean []float64
	runVar  []float64
}

func newBatchNormLayer(size int) *batchNormLayer {
	l := &batchNormLayer{
		size:    size,
		gamma:   newParam(size, 0),
		beta:    newParam(size, 0),
		runMean: make([]float64, size),
		runVar:  make([]float64, size),
	}
	for i := range l.gamma.w {
		l.gamma.w[i] = 1
		l.runVar[i] = 1
	}
	return l
}

type bnCache struct {
	xhat [][]float64
	std  []float64
}

// forward normalizes rows in place-order (fresh slices). In training mode
// batch statistics are used and folded into the running estimates.
func (l *batchNormLayer) forward(rows [][]float64, training bool) ([][]float64, *bnCache) {
	n := float64(len(rows))
	mean := make([]float64, l.size)
	variance := make([]float64, l.size)
	if training && len(rows) > 0 {
		for _, r := range rows {
			for j, v := range r {
				mean[j] += v
			}
		}
		for j := range mean {
			mean[j] /= n
		}
		for _, r := range rows {
			for j, v := range r {
				d := v - mean[j]
				variance[j] += d * d
			}
		}
		for j := range variance {
			variance[j] /= n
		}
		for j := range mean {
			l.runMean[j] = bnMomentum*l.runMean[j] + (1-bnMomentum)*mean[j]
			l.runVar[j] = bnMomentum*l.runVar[j] + (1-bnMomentum)*variance[j]
		}
	} else {
		copy(mean, l.runMean)
		copy(variance, l.runVar)
	}
	std := make([]float64, l.size)
	for j := range std {
		std[j] = math.Sqrt(variance[j] + bnEpsilon)
	}
	out := make([][]float64, len(rows))
	xhat := make([][]float64, len(rows))
	for i, r := range rows {
		xo := make([]float64, l.size)
		yo := make([]float64, l.size)
		for j, v := range r {
			xo[j] = (v - mean[j]) / std[j]
			yo[j] = l.gamma.w[j]*xo[j] + l.beta.w[j]
		}
		xhat[i] = xo
		out[i] = yo
	}
	return out, &bnCache{xhat: xhat, std: std}
}

func (l *batchNormLayer) backward(cache *bnCache, dOut [][]float64) [][]float64 {
	n := float64(len(dOut))
	sumDy := make([]float64, l.size)
	sumDyXhat := make([]float64, l.size)
	for i, r := range dOut {
		for j, dy := range r {
			sumDy[j] += dy
			sumDyXhat[j] += dy * cache.xhat[i][j]
			l.beta.g[j] += dy
			l.gamma.g[j] += dy * cache.xhat[i][j]
		}
	}
	dx := make([][]float64, len(dOut))
	for i, r := range dOut {
		d := make([]float64, l.size)
		for j, dy := range r {
			d[j] = l.gamma.w[j] / (n * cache.std[j]) *
				(n*dy - sumDy[j] - cache.xhat[i][j]*sumDyXhat[j])
		}
		dx[i] = d
	}
	return dx
}

func (l *batchNormLayer) params() []*param { return []*param{l.gamma, l.beta} }

// --- dense layer ---

type denseLayer struct {
	in  int
	out int
	w   *param // out x in, row-major
	b   *param
}

func newDenseLayer(in, out int, rng *rand.Rand) *denseLayer {
	l := &denseLayer{in: in, out: out, w: newParam(out*in, 0), b: newParam(out, 0)}
	glorotInit(l.w, in, out, rng)
	return l
}

func (l *denseLayer) forward(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		o := make([]float64, l.out)
		for k := 0; k < l.out; k++ {
			s := l.b.w[k]
			row := l.w.w[k*l.in : (k+1)*l.in]
			for j, v := range r {
				s += row[j] * v
			}
			o[k] = s
		}
		out[i] = o
	}
	return out
}

func (l *denseLayer) backward(input, dOut [][]float64) [][]float64 {
	dx := make([][]float64, len(input))
	for i := range input {
		dx[i] = make([]float64, l.in)
	}
	for i, r := range dOut {
		for k, dy := range r {
			grow := l.w.g[k*l.in : (k+1)*l.in]
			wrow := l.w.w[k*l.in : (k+1)*l.in]
			for j, v := range input[i] {
				grow[j] += dy * v
				dx[i][j] += wrow[j] * dy
			}
			l.b.g[k] += dy
		}
	}
	return dx
}

func (l *denseLayer) params() []*param { return []*param{l.w, l.b} }

// --- dropout ---

// dropoutRows applies inverted dropout, returning masked rows and the mask
// used. A nil mask means dropout was inactive (rate 0 or nil rng).
func dropoutRows(rows [][]float64, rate float64, rng *rand.Rand) ([][]float64, [][]float64) {
	if rate <= 0 || rng == nil {
		return rows, nil
	}
	keep := 1 - rate
	out := make([][]float64, len(rows))
	mask := make([][]float64, len(rows))
	for i, r := range rows {
		mi := make([]float64, len(r))
		oi := make([]float64, len(r))
		for j, v := range r {
			if rng.Float64() < keep {
				mi[j] = 1 / keep
				oi[j] = v * mi[j]
			}
		}
		mask[i] = mi
		out[i] = oi
	}
	return out, mask
}

func dropoutBackward(dOut, mask [][]float64) [][]float64 {
	if mask == nil {
		return dOut
	}
	dx := make([][]float64, len(dOut))
	for i, r := range dOut {
		d := make([]float64, len(r))
		for j, dy := range r {
			d[j] = dy * mask[i][j]
		}
		dx[i] = d
	}
	return dx
}
