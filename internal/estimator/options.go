package estimator

import "github.com/fengrk/pymltools/internal/schedule"

// options collects the knobs shared by the model-function builders.
type options struct {
	optimizer OptimizerType
	sched     schedule.Schedule
	margin    float32
	squared   bool
	l2        bool
	l2Axis    int
}

func defaultOptions() options {
	return options{
		optimizer: OptimizerAdam,
		sched:     schedule.Constant{Rate: 0.001},
		margin:    0.5,
		l2Axis:    1,
	}
}

// Option configures a model-function builder.
type Option func(*options)

// WithOptimizer selects the optimizer built for the train op.
func WithOptimizer(t OptimizerType) Option {
	return func(o *options) { o.optimizer = t }
}

// WithSchedule sets the learning-rate schedule.
func WithSchedule(s schedule.Schedule) Option {
	return func(o *options) { o.sched = s }
}

// WithMargin sets the triplet-loss margin.
func WithMargin(m float32) Option {
	return func(o *options) { o.margin = m }
}

// WithSquaredDistance switches the triplet loss to squared Euclidean
// distances.
func WithSquaredDistance() Option {
	return func(o *options) { o.squared = true }
}

// WithL2Normalize unit-normalizes embeddings before the loss and the
// predictions. Axis 1 normalizes each embedding vector; axis 0
// normalizes each dimension across the batch.
func WithL2Normalize(axis int) Option {
	return func(o *options) {
		o.l2 = true
		o.l2Axis = axis
	}
}
