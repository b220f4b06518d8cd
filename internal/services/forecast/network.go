package forecast

import (
	"math"
	"math/rand"
)

const (
	denseHiddenUnits = 16
	l2Coefficient    = 0.01
	baseLearningRate = 0.001

	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// passMode selects how stochastic layers behave during a forward pass.
type passMode int

const (
	// passTrain uses batch statistics and active dropout, caching for backprop.
	passTrain passMode = iota
	// passInfer is fully deterministic: running statistics, no dropout.
	passInfer
	// passSample keeps dropout active over frozen running statistics. Used
	// for Monte-Carlo uncertainty sampling; never mutates layer state.
	passSample
)

// network is the stacked recurrent regressor: LSTM blocks (each followed by
// dropout and batch normalization), a ReLU hidden layer with dropout at half
// the base rate, and a single linear output unit. Recurrent input kernels
// carry L2 regularization.
type network struct {
	nFeatures int
	units     []int
	dropout   float64

	lstm   []*lstmLayer
	norm   []*batchNormLayer
	hidden *denseLayer
	output *denseLayer

	lr   float64
	step int
	rng  *rand.Rand
}

func newNetwork(nFeatures int, units []int, dropout float64, seed int64) *network {
	rng := rand.New(rand.NewSource(seed))
	n := &network{
		nFeatures: nFeatures,
		units:     append([]int(nil), units...),
		dropout:   dropout,
		lr:        baseLearningRate,
		rng:       rng,
	}
	in := nFeatures
	for _, u := range units {
		n.lstm = append(n.lstm, newLSTMLayer(in, u, l2Coefficient, rng))
		n.norm = append(n.norm, newBatchNormLayer(u))
		in = u
	}
	n.hidden = newDenseLayer(in, denseHiddenUnits, rng)
	n.output = newDenseLayer(denseHiddenUnits, 1, rng)
	return n
}

func (n *network) params() []*param {
	var ps []*param
	for i := range n.lstm {
		ps = append(ps, n.lstm[i].params()...)
		ps = append(ps, n.norm[i].params()...)
	}
	ps = append(ps, n.hidden.params()...)
	ps = append(ps, n.output.params()...)
	return ps
}

type batchCache struct {
	lstm       [][]*lstmCache // [layer][sample]
	dropMasks  [][][]float64  // [layer] masks over flattened rows
	bn         []*bnCache
	lastRows   [][]float64 // rows entering the hidden layer
	hiddenAct  [][]float64 // post-ReLU
	hiddenMask [][]float64
	outIn      [][]float64 // rows entering the output layer
}

// forwardBatch runs a batch of windows through the stack. rng is only
// consulted in passTrain and passSample; deterministic inference ignores it.
func (n *network) forwardBatch(x [][][]float64, mode passMode, rng *rand.Rand) ([]float64, *batchCache) {
	batch := len(x)
	training := mode == passTrain
	var dropRNG *rand.Rand
	if mode == passTrain || mode == passSample {
		dropRNG = rng
	}

	cache := &batchCache{
		lstm:      make([][]*lstmCache, len(n.lstm)),
		dropMasks: make([][][]float64, len(n.lstm)),
		bn:        make([]*bnCache, len(n.lstm)),
	}

	seqs := x
	var rows [][]float64
	for li, layer := range n.lstm {
		last := li == len(n.lstm)-1
		caches := make([]*lstmCache, batch)
		outs := make([][][]float64, batch)
		for s := range seqs {
			h, c := layer.forward(seqs[s])
			outs[s] = h
			caches[s] = c
		}
		cache.lstm[li] = caches

		if last {
			rows = make([][]float64, batch)
			for s := range outs {
				rows[s] = outs[s][len(outs[s])-1]
			}
		} else {
			rows = make([][]float64, 0, batch*len(outs[0]))
			for s := range outs {
				rows = append(rows, outs[s]...)
			}
		}

		rows, cache.dropMasks[li] = dropoutRows(rows, n.dropout, dropRNG)
		rows, cache.bn[li] = n.norm[li].forward(rows, training)

		if !last {
			steps := len(seqs[0])
			next := make([][][]float64, batch)
			for s := 0; s < batch; s++ {
				next[s] = rows[s*steps : (s+1)*steps]
			}
			seqs = next
		}
	}

	cache.lastRows = rows
	hidden := n.hidden.forward(rows)
	for _, r := range hidden {
		for j, v := range r {
			if v < 0 {
				r[j] = 0
			}
		}
	}
	cache.hiddenAct = hidden
	dropped, mask := dropoutRows(hidden, n.dropout/2, dropRNG)
	cache.hiddenMask = mask
	cache.outIn = dropped

	out := n.output.forward(dropped)
	preds := make([]float64, batch)
	for i, r := range out {
		preds[i] = r[0]
	}
	return preds, cache
}

func (n *network) backwardBatch(x [][][]float64, dPred []float64, cache *batchCache) {
	batch := len(x)
	dRows := make([][]float64, batch)
	for i, d := range dPred {
		dRows[i] = []float64{d}
	}
	d := n.output.backward(cache.outIn, dRows)
	d = dropoutBackward(d, cache.hiddenMask)
	for i, r := range d {
		for j := range r {
			if cache.hiddenAct[i][j] <= 0 {
				r[j] = 0
			}
		}
	}
	d = n.hidden.backward(cache.lastRows, d)

	for li := len(n.lstm) - 1; li >= 0; li-- {
		last := li == len(n.lstm)-1
		d = n.norm[li].backward(cache.bn[li], d)
		d = dropoutBackward(d, cache.dropMasks[li])

		steps := len(cache.lstm[li][0].x)
		dNext := make([][]float64, 0, batch*steps)
		for s := 0; s < batch; s++ {
			var dSeq [][]float64
			if last {
				dSeq = make([][]float64, steps)
				dSeq[steps-1] = d[s]
			} else {
				dSeq = d[s*steps : (s+1)*steps]
			}
			dx := n.lstm[li].backward(cache.lstm[li][s], dSeq)
			dNext = append(dNext, dx...)
		}
		d = dNext
	}
}

// adamStep applies one Adam update over all parameters at the current
// learning rate, folding L2 decay into gradients where configured.
func (n *network) adamStep() {
	n.step++
	c1 := 1 - math.Pow(adamBeta1, float64(n.step))
	c2 := 1 - math.Pow(adamBeta2, float64(n.step))
	for _, p := range n.params() {
		for i := range p.w {
			g := p.g[i]
			if p.l2 > 0 {
				g += 2 * p.l2 * p.w[i]
			}
			p.m[i] = adamBeta1*p.m[i] + (1-adamBeta1)*g
			p.v[i] = adamBeta2*p.v[i] + (1-adamBeta2)*g*g
			p.w[i] -= n.lr * (p.m[i] / c1) / (math.Sqrt(p.v[i]/c2) + adamEpsilon)
		}
	}
}

func (n *network) zeroGrads() {
	for _, p := range n.params() {
		p.zeroGrad()
	}
}

// trainBatch runs one optimization step and returns the batch MSE and MAE.
func (n *network) trainBatch(x [][][]float64, y []float64) (float64, float64) {
	n.zeroGrads()
	preds, cache := n.forwardBatch(x, passTrain, n.rng)
	var mse, mae float64
	dPred := make([]float64, len(preds))
	for i, p := range preds {
		diff := p - y[i]
		mse += diff * diff
		mae += math.Abs(diff)
		dPred[i] = 2 * diff / float64(len(preds))
	}
	mse /= float64(len(preds))
	mae /= float64(len(preds))
	n.backwardBatch(x, dPred, cache)
	n.adamStep()
	return mse, mae
}

// evaluate computes deterministic MSE and MAE over a dataset.
func (n *network) evaluate(x [][][]float64, y []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	preds, _ := n.forwardBatch(x, passInfer, nil)
	var mse, mae float64
	for i, p := range preds {
		diff := p - y[i]
		mse += diff * diff
		mae += math.Abs(diff)
	}
	return mse / float64(len(preds)), mae / float64(len(preds))
}

// --- weight snapshots ---

// stateVectors lists every float tensor that defines the trained model,
// including batch-norm running statistics, in a fixed order.
func (n *network) stateVectors() [][]float64 {
	var vs [][]float64
	for i := range n.lstm {
		vs = append(vs, n.lstm[i].wx.w, n.lstm[i].wh.w, n.lstm[i].b.w)
		vs = append(vs, n.norm[i].gamma.w, n.norm[i].beta.w, n.norm[i].runMean, n.norm[i].runVar)
	}
	vs = append(vs, n.hidden.w.w, n.hidden.b.w, n.output.w.w, n.output.b.w)
	return vs
}

func (n *network) captureWeights() [][]float64 {
	src := n.stateVectors()
	out := make([][]float64, len(src))
	for i, v := range src {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

func (n *network) restoreWeights(snap [][]float64) {
	dst := n.stateVectors()
	for i := range dst {
		copy(dst[i], snap[i])
	}
}

// NetworkState is the serializable architecture+weights artifact.
type NetworkState struct {
	SequenceLength int         `json:"sequence_length"`
	NFeatures      int         `json:"n_features"`
	Units          []int       `json:"lstm_units"`
	DropoutRate    float64     `json:"dropout_rate"`
	Tensors        [][]float64 `json:"tensors"`
}

func (n *network) state(seqLen int) *NetworkState {
	return &NetworkState{
		SequenceLength: seqLen,
		NFeatures:      n.nFeatures,
		Units:          append([]int(nil), n.units...),
		DropoutRate:    n.dropout,
		Tensors:        n.captureWeights(),
	}
}

func newNetworkFromState(s *NetworkState, seed int64) (*network, error) {
	if s.NFeatures <= 0 || len(s.Units) == 0 {
		return nil, configErrorf("weights", "invalid architecture: %d features, %d layers", s.NFeatures, len(s.Units))
	}
	n := newNetwork(s.NFeatures, s.Units, s.DropoutRate, seed)
	vs := n.stateVectors()
	if len(s.Tensors) != len(vs) {
		return nil, configErrorf("weights", "tensor count %d does not match architecture (want %d)", len(s.Tensors), len(vs))
	}
	for i, v := range vs {
		if len(s.Tensors[i]) != len(v) {
			return nil, configErrorf("weights", "tensor %d has %d values, want %d", i, len(s.Tensors[i]), len(v))
		}
	}
	n.restoreWeights(s.Tensors)
	return n, nil
}
