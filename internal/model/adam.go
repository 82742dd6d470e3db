package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam keeps first and second moment estimates for every parameter.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	mw, vw                [][]float64
	mb, vb                [][]float64
}

func newAdam(cfg TrainConfig, layers []*dense) *adam {
	o := &adam{lr: cfg.LearningRate, beta1: cfg.Beta1, beta2: cfg.Beta2, eps: cfg.Epsilon}
	for _, l := range layers {
		nw := len(rawDense(l.w))
		nb := l.b.Len()
		o.mw = append(o.mw, make([]float64, nw))
		o.vw = append(o.vw, make([]float64, nw))
		o.mb = append(o.mb, make([]float64, nb))
		o.vb = append(o.vb, make([]float64, nb))
	}
	return o
}

func (o *adam) update(layers []*dense, grads []gradient) {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, l := range layers {
		o.apply(rawDense(l.w), rawDense(grads[i].w), o.mw[i], o.vw[i], c1, c2)
		o.apply(l.b.RawVector().Data, grads[i].b, o.mb[i], o.vb[i], c1, c2)
	}
}

func (o *adam) apply(param, grad, m, v []float64, c1, c2 float64) {
	for i := range param {
		g := grad[i]
		m[i] = o.beta1*m[i] + (1-o.beta1)*g
		v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
		param[i] -= o.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.eps)
	}
}

// rawDense returns the backing slice of a contiguous matrix.
func rawDense(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride != raw.Cols {
		panic("model: non-contiguous matrix")
	}
	return raw.Data[:raw.Rows*raw.Cols]
}
