package model

// Tensor3 is a dense rank-3 tensor of shape (n, tasks, classes), used for
// multitask class-probability predictions.
type Tensor3 struct {
	data    []float64
	n       int
	tasks   int
	classes int
}

// NewTensor3 allocates a zeroed (n, tasks, classes) tensor.
func NewTensor3(n, tasks, classes int) *Tensor3 {
	return &Tensor3{
		data:    make([]float64, n*tasks*classes),
		n:       n,
		tasks:   tasks,
		classes: classes,
	}
}

// Dims returns the tensor dimensions.
func (t *Tensor3) Dims() (n, tasks, classes int) {
	return t.n, t.tasks, t.classes
}

// At returns the element at (i, task, class).
func (t *Tensor3) At(i, task, class int) float64 {
	return t.data[(i*t.tasks+task)*t.classes+class]
}

// Set assigns the element at (i, task, class).
func (t *Tensor3) Set(i, task, class int, v float64) {
	t.data[(i*t.tasks+task)*t.classes+class] = v
}

// SetTask copies a (n × classes) probability matrix into the task column.
// probs must be row-major with n*classes values.
func (t *Tensor3) SetTask(task int, probs []float64) {
	for i := 0; i < t.n; i++ {
		copy(t.data[(i*t.tasks+task)*t.classes:(i*t.tasks+task)*t.classes+t.classes],
			probs[i*t.classes:(i+1)*t.classes])
	}
}
