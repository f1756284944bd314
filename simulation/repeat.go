package simulation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Factory builds the simulator of one repetition. Every repetition should
// get its own random source.
type Factory func(rep int) (*Simulator, error)

// Repeat runs repetitions independent simulations of nRounds rounds each,
// at most parallelism at a time. When ctx is cancelled, the reports of the
// repetitions that ran, including partial ones, are still returned in
// repetition order.
func Repeat(
	ctx context.Context,
	factory Factory,
	repetitions, nRounds, parallelism int,
) ([]*Report, error) {
	reports := make([]*Report, repetitions)

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for rep := 0; rep < repetitions; rep++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			s, err := factory(rep)
			if err != nil {
				return fmt.Errorf("repetition %d: %w", rep, err)
			}

			s.InitNodes()

			report, err := s.Start(gctx, nRounds)
			if err != nil {
				return fmt.Errorf("repetition %d: %w", rep, err)
			}

			reports[rep] = report

			return nil
		})
	}

	err := g.Wait()

	done := make([]*Report, 0, repetitions)
	for _, r := range reports {
		if r != nil {
			done = append(done, r)
		}
	}

	return done, err
}
