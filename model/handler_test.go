package model

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func separable() *Dataset {
	return &Dataset{
		X: [][]float64{{1, 2}, {2, 1}, {-1, -2}, {-2, -1}},
		Y: []float64{1, 1, 0, 0},
	}
}

var _ = Describe("Compose", func() {
	var (
		rng   *rand.Rand
		data  *Dataset
		local *SGDHandler
		recv  *SGDHandler
	)

	BeforeEach(func() {
		rng = rand.New(rand.NewPCG(1, 2))
		data = separable()
		local = NewSGDHandler(2, 0.1, 0, ModeMergeUpdate)
		local.Init(rng)
		recv = NewSGDHandler(2, 0.1, 0, ModeMergeUpdate)
		recv.Init(rng)
	})

	It("should adopt the received model after updating it", func() {
		local.CreateMode = ModeUpdate
		expected := recv.Clone()
		Expect(expected.Update(data)).To(Succeed())

		Expect(Compose(local, recv, data, 1)).To(Succeed())

		Expect(local.Params().Equal(expected.Params())).To(BeTrue())
		Expect(local.Updates()).To(Equal(1))
	})

	It("should merge then update", func() {
		expected := local.Clone()
		Expect(expected.Merge(recv)).To(Succeed())
		Expect(expected.Update(data)).To(Succeed())

		Expect(Compose(local, recv, data, 1)).To(Succeed())

		Expect(local.Params().Equal(expected.Params())).To(BeTrue())
	})

	It("should update both then merge", func() {
		local.CreateMode = ModeUpdateMerge
		expectedLocal := local.Clone()
		expectedRecv := recv.Clone()
		Expect(expectedLocal.Update(data)).To(Succeed())
		Expect(expectedRecv.Update(data)).To(Succeed())
		Expect(expectedLocal.Merge(expectedRecv)).To(Succeed())

		Expect(Compose(local, recv, data, 1)).To(Succeed())

		Expect(local.Params().Equal(expectedLocal.Params())).To(BeTrue())
	})

	It("should pass the received model through untouched", func() {
		Expect(Compose(WithMode(local, ModePass), recv, data, 1)).To(Succeed())

		Expect(local.Params().Equal(recv.Params())).To(BeTrue())
		Expect(local.Updates()).To(Equal(0))
		Expect(local.Mode()).To(Equal(ModeMergeUpdate))
	})

	It("should run several epochs per training step", func() {
		expected := local.Clone()
		Expect(expected.Merge(recv)).To(Succeed())
		for i := 0; i < 3; i++ {
			Expect(expected.Update(data)).To(Succeed())
		}

		Expect(Compose(local, recv, data, 3)).To(Succeed())

		Expect(local.Params().Equal(expected.Params())).To(BeTrue())
		Expect(local.Updates()).To(Equal(3))
	})

	It("should reject an unknown mode", func() {
		local.CreateMode = CreateMode(42)

		err := Compose(local, recv, data, 1)

		Expect(err).To(MatchError(ErrUnknownMode))
	})

	It("should reject mismatched architectures", func() {
		other := NewSGDHandler(3, 0.1, 0, ModeMergeUpdate)

		Expect(local.Merge(other)).To(MatchError(ErrParamMismatch))
		Expect(local.Adopt(other)).To(MatchError(ErrParamMismatch))
		Expect(local.Merge(NewPegasosHandler(2, 0.1, ModeMergeUpdate))).
			To(MatchError(ErrParamMismatch))
	})
})

var _ = Describe("CreateMode", func() {
	It("should parse known names", func() {
		for _, mode := range []CreateMode{
			ModeUpdate, ModeMergeUpdate, ModeUpdateMerge, ModePass,
		} {
			parsed, err := ParseCreateMode(mode.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(mode))
		}
	})

	It("should fail on unknown names", func() {
		_, err := ParseCreateMode("average")
		Expect(err).To(MatchError(ErrUnknownMode))
	})
})
