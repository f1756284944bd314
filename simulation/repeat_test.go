package simulation

import (
	"context"
	"errors"
	"sync"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gossiplearn/hooking"
)

func onEnd(fn func()) hooking.Hook {
	return hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos == HookPosSimulationEnd {
			fn()
		}
	})
}

var _ = ginkgo.Describe("Repeat", func() {
	ginkgo.It("should run every repetition with its own seed", func() {
		var (
			lock  sync.Mutex
			built []int
		)

		factory := func(rep int) (*Simulator, error) {
			lock.Lock()
			built = append(built, rep)
			lock.Unlock()

			return newTestSimulator(uint64(rep+1), nil), nil
		}

		reports, err := Repeat(context.Background(), factory, 3, 2, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(3))
		Expect(built).To(ConsistOf(0, 1, 2))

		for _, r := range reports {
			Expect(r.Evaluations).To(HaveLen(2))
		}

		Expect(reports[0]).NotTo(Equal(reports[1]))
	})

	ginkgo.It("should return reports in repetition order", func() {
		factory := func(rep int) (*Simulator, error) {
			return newTestSimulator(uint64(rep+10), nil), nil
		}

		sequential, err := Repeat(context.Background(), factory, 2, 2, 1)
		Expect(err).NotTo(HaveOccurred())

		parallel, err := Repeat(context.Background(), factory, 2, 2, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(parallel).To(Equal(sequential))
	})

	ginkgo.It("should keep finished runs when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		factory := func(rep int) (*Simulator, error) {
			s := newTestSimulator(uint64(rep+1), nil)
			s.AcceptHook(onEnd(cancel))

			return s, nil
		}

		reports, err := Repeat(ctx, factory, 3, 2, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(1))
		Expect(reports[0].Evaluations).To(HaveLen(2))
		Expect(reports[0].Interrupted).To(BeFalse())
	})

	ginkgo.It("should stop on factory errors", func() {
		boom := errors.New("boom")

		factory := func(rep int) (*Simulator, error) {
			if rep == 1 {
				return nil, boom
			}

			return newTestSimulator(uint64(rep+1), nil), nil
		}

		reports, err := Repeat(context.Background(), factory, 3, 1, 1)

		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("repetition 1"))
		Expect(reports).To(HaveLen(1))
	})
})
