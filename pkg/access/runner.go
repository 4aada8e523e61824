package access

import (
	"context"
	"fmt"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/errors"
	"github.com/zostay/sdv-admin/pkg/metrics"
)

// Result summarizes a batch of operations.
type Result struct {
	Total  int
	Failed int
	Errors *errors.Aggregate
}

// Succeeded returns the number of requests that worked.
func (r Result) Succeeded() int {
	return r.Total - r.Failed
}

// Runner performs a batch of requests, one after the other.
type Runner struct {
	svc *Service
}

// NewRunner returns a Runner performing requests with svc.
func NewRunner(svc *Service) *Runner {
	return &Runner{svc: svc}
}

// Run performs every request in order. A request with an unknown operation or
// one whose operation fails counts as failed, and processing continues with
// the next request.
func (r *Runner) Run(ctx context.Context, reqs []Request) Result {
	logger := config.LoggerFrom(ctx).Sugar()

	res := Result{
		Total:  len(reqs),
		Errors: errors.NewAggregate(nil),
	}

	for i, req := range reqs {
		op, err := req.Parse()
		if err == nil {
			logger.Infow(
				"handling operation",
				"index", i,
				"operation", op,
				"user", req.User,
				"role", req.Role,
			)
			err = r.svc.Do(ctx, op, req)
		}

		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailure
			res.Failed++
			res.Errors.Add(fmt.Errorf("operation %d (%s): %w", i, req.Operation, err))
			logger.Errorw(
				"operation failed",
				"index", i,
				"operation", req.Operation,
				"user", req.User,
				"role", req.Role,
				"error", err,
			)
		}
		metrics.AccessOperationsTotal.WithLabelValues(op.String(), result).Inc()
	}

	logger.Infow(
		"operations list finished",
		"total", res.Total,
		"failed", res.Failed,
	)

	return res
}
