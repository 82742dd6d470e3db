package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer. Weights are stored in x out so a batch
// (rows) multiplies on the left.
type dense struct {
	w    *mat.Dense
	b    *mat.VecDense
	relu bool
}

// newDense initializes weights Glorot-uniform and biases to zero.
func newDense(in, out int, relu bool, r *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (r.Float64()*2 - 1) * limit
	}
	return &dense{
		w:    mat.NewDense(in, out, data),
		b:    mat.NewVecDense(out, nil),
		relu: relu,
	}
}

// forward returns the pre-activation z and the activation a for batch x.
// For linear layers a and z are the same matrix.
func (l *dense) forward(x mat.Matrix) (z, a *mat.Dense) {
	rows, _ := x.Dims()
	z = &mat.Dense{}
	z.Mul(x, l.w)
	bias := l.b.RawVector().Data
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	if !l.relu {
		return z, z
	}
	a = &mat.Dense{}
	a.Apply(func(_, _ int, v float64) float64 { return max(0, v) }, z)
	return z, a
}

// network is a stack of dense layers ending in a single linear unit.
type network struct {
	layers []*dense
}

func newNetwork(inputs int, hidden []int, r *rand.Rand) *network {
	n := &network{}
	in := inputs
	for _, size := range hidden {
		n.layers = append(n.layers, newDense(in, size, true, r))
		in = size
	}
	n.layers = append(n.layers, newDense(in, 1, false, r))
	return n
}

// gradient holds the loss gradient for one layer's parameters.
type gradient struct {
	w *mat.Dense
	b []float64
}

// scratch collects intermediate matrices so they can be released together
// once a step completes.
type scratch []*mat.Dense

func (s *scratch) keep(ms ...*mat.Dense) {
	*s = append(*s, ms...)
}

func (s *scratch) release() {
	for _, m := range *s {
		if m != nil && !m.IsEmpty() {
			m.Reset()
		}
	}
	*s = (*s)[:0]
}

// predict runs x (batch x inputs) through the network and returns one
// output per row. Intermediate buffers are released before returning.
func (n *network) predict(x *mat.Dense) []float64 {
	var tmp scratch
	defer tmp.release()

	a := x
	for _, l := range n.layers {
		z, out := l.forward(a)
		tmp.keep(z)
		if out != z {
			tmp.keep(out)
		}
		a = out
	}
	rows, _ := a.Dims()
	outputs := make([]float64, rows)
	for i := range outputs {
		outputs[i] = a.At(i, 0)
	}
	return outputs
}

// loss returns the mean squared error of the network on x against y.
func (n *network) loss(x *mat.Dense, y []float64) float64 {
	return mse(n.predict(x), y)
}

// step runs one forward and backward pass over the batch, applies an
// optimizer update, and returns the batch loss measured before the update.
func (n *network) step(x *mat.Dense, y []float64, opt *adam) float64 {
	var tmp scratch
	defer tmp.release()

	acts := make([]*mat.Dense, 0, len(n.layers)+1)
	pres := make([]*mat.Dense, 0, len(n.layers))
	acts = append(acts, x)
	a := x
	for _, l := range n.layers {
		z, out := l.forward(a)
		tmp.keep(z)
		if out != z {
			tmp.keep(out)
		}
		pres = append(pres, z)
		acts = append(acts, out)
		a = out
	}

	batch := len(y)
	delta := mat.NewDense(batch, 1, nil)
	tmp.keep(delta)
	var sum float64
	for i := 0; i < batch; i++ {
		d := a.At(i, 0) - y[i]
		sum += d * d
		delta.Set(i, 0, 2*d/float64(batch))
	}

	grads := make([]gradient, len(n.layers))
	for li := len(n.layers) - 1; li >= 0; li-- {
		l := n.layers[li]
		if l.relu {
			z := pres[li]
			delta.Apply(func(i, j int, v float64) float64 {
				if z.At(i, j) <= 0 {
					return 0
				}
				return v
			}, delta)
		}

		gw := &mat.Dense{}
		gw.Mul(acts[li].T(), delta)
		tmp.keep(gw)
		grads[li] = gradient{w: gw, b: columnSums(delta)}

		if li > 0 {
			next := &mat.Dense{}
			next.Mul(delta, l.w.T())
			tmp.keep(next)
			delta = next
		}
	}

	opt.update(n.layers, grads)
	return sum / float64(batch)
}

func columnSums(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j, v := range m.RawRowView(i) {
			out[j] += v
		}
	}
	return out
}

func mse(pred, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(y))
}
