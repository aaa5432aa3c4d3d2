package hierarchy_test

import (
	"bytes"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/hierarchy"
	"github.com/sarchlab/memsim/timing/latency"
	"github.com/sarchlab/memsim/timing/stats"
)

// smallConfig is the reference hierarchy: L1 4x4B, L2 4x8B, 100-cycle
// memory, 4B and 8B buses, hit times 1 and 10.
func smallConfig() *latency.TimingConfig {
	config := latency.DefaultTimingConfig()
	config.L1BlockSize = 4
	config.L1LineCount = 4
	config.L1HitLatency = 1
	config.L2Present = true
	config.L2BlockSize = 8
	config.L2LineCount = 4
	config.L2HitLatency = 10
	config.MemoryLatency = 100
	config.BusWidthL1L2 = 4
	config.BusWidthL2MM = 8
	return config
}

type fakeRecorder struct {
	requests []hierarchy.Request
	results  []hierarchy.AccessResult
}

func (r *fakeRecorder) Record(req hierarchy.Request, result hierarchy.AccessResult) {
	r.requests = append(r.requests, req)
	r.results = append(r.results, result)
}

var _ = Describe("Hierarchy", func() {
	var (
		config *latency.TimingConfig
		h      *hierarchy.Hierarchy
	)

	build := func(opts ...hierarchy.Option) {
		var err error
		h, err = hierarchy.New(config, opts...)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		config = smallConfig()
		build()
	})

	Describe("Construction", func() {
		It("should build both levels", func() {
			Expect(h.L1()).NotTo(BeNil())
			Expect(h.L2()).NotTo(BeNil())
			Expect(h.Memory().Size()).To(Equal(latency.DefaultMemorySize))
		})

		It("should reject an L2 block smaller than the L1 block", func() {
			config.L2BlockSize = 2
			_, err := hierarchy.New(config)
			Expect(errors.Is(err, latency.ErrConfiguration)).To(BeTrue())
		})

		It("should reject non power of two line counts", func() {
			config.L1LineCount = 5
			_, err := hierarchy.New(config)
			Expect(errors.Is(err, latency.ErrConfiguration)).To(BeTrue())
		})

		It("should not be affected by later changes to the config", func() {
			config.L1HitLatency = 50
			Expect(h.Config().L1HitLatency).To(Equal(uint64(1)))
		})
	})

	Describe("Write miss on a cold hierarchy", func() {
		var result hierarchy.AccessResult

		BeforeEach(func() {
			var err error
			result, err = h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should miss in both levels and fetch from memory", func() {
			Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))
			Expect(result.L1).To(Equal(stats.CompulsoryMiss))
			Expect(result.L2).To(Equal(stats.CompulsoryMiss))
			// 1 (L1) + 10 (L2) + 100 + 8/8 (memory) + 4/4 (L2->L1)
			Expect(result.Cycles).To(Equal(uint64(113)))
		})

		It("should leave the L1 line dirty and memory untouched", func() {
			line := h.L1().Line(0)
			Expect(line.Valid).To(BeTrue())
			Expect(line.Dirty).To(BeTrue())
			Expect(line.Data).To(Equal([]byte{1, 2, 3, 4}))

			Expect(h.L2().Line(0).Dirty).To(BeFalse())

			data, err := h.Memory().Peek(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0, 0, 0, 0}))
		})

		It("should read the written bytes back with a hit", func() {
			read, err := h.Read(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Outcome).To(Equal(stats.L1Hit))
			Expect(read.Cycles).To(Equal(uint64(1)))
			Expect(read.Data).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should serve the other half of the L2 block from L2", func() {
			read, err := h.Read(0x5, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Outcome).To(Equal(stats.L1MissL2Hit))
			Expect(read.L2).To(Equal(stats.Hit))
			// 1 (L1) + 10 (L2) + 4/4 (L2->L1)
			Expect(read.Cycles).To(Equal(uint64(12)))
		})
	})

	It("should read the last byte of memory on a cold hierarchy", func() {
		result, err := h.Read(16*1024*1024-1, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.L1).To(Equal(stats.CompulsoryMiss))
		Expect(result.L2).To(Equal(stats.CompulsoryMiss))
		Expect(result.Data).To(Equal([]byte{0}))
	})

	It("should shorten a default read at the end of memory", func() {
		result, err := h.Read(16*1024*1024-1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.L1).To(Equal(stats.CompulsoryMiss))
		Expect(result.L2).To(Equal(stats.CompulsoryMiss))
		Expect(result.Data).To(Equal([]byte{0}))
		Expect(result.Cycles).To(Equal(uint64(113)))
	})

	It("should hit on any byte of a resident block", func() {
		_, err := h.Write(4, []byte{9, 8, 7, 6})
		Expect(err).NotTo(HaveOccurred())

		result, err := h.Read(0x5, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(stats.L1Hit))
		Expect(result.Cycles).To(Equal(config.L1HitLatency))
		Expect(result.Data).To(Equal([]byte{8}))
	})

	Describe("Write-back cascade", func() {
		It("should flush a dirty L2 line to memory exactly once", func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())

			// 32 maps to L1 index 0 and L2 index 0 with new tags.
			result, err := h.Write(32, []byte{5, 6, 7, 8})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))
			Expect(result.L1).To(Equal(stats.ConflictMiss))
			Expect(result.L2).To(Equal(stats.ConflictMiss))
			Expect(result.Writebacks).To(Equal(2))
			// 1 (L1)
			// + 4/4 + 10 (L1 victim merged into L2)
			// + 10 (L2 lookup)
			// + 101 (L2 victim to memory) + 101 (fill from memory)
			// + 4/4 (L2->L1)
			Expect(result.Cycles).To(Equal(uint64(225)))

			data, err := h.Memory().Peek(0, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4, 0, 0, 0, 0}))

			Expect(h.Stats().L1().Writebacks).To(Equal(uint64(1)))
			Expect(h.Stats().L2().Writebacks).To(Equal(uint64(1)))
			Expect(h.Memory().BlockWrites()).To(Equal(uint64(1)))
		})

		It("should merge an L1 victim into a resident L2 line", func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())

			// 16 maps to L1 index 0 but to L2 index 2.
			result, err := h.Read(16, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.L1).To(Equal(stats.ConflictMiss))
			Expect(result.L2).To(Equal(stats.CompulsoryMiss))
			// 1 + (1 + 10) + 10 + 101 + 1
			Expect(result.Cycles).To(Equal(uint64(124)))

			l2Line := h.L2().Line(0)
			Expect(l2Line.Dirty).To(BeTrue())
			Expect(l2Line.Data[:4]).To(Equal([]byte{1, 2, 3, 4}))
			Expect(h.L1().Line(0).Dirty).To(BeFalse())

			read, err := h.Read(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Outcome).To(Equal(stats.L1MissL2Hit))
			Expect(read.Data).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should not charge a clean victim", func() {
			_, err := h.Read(0, 4)
			Expect(err).NotTo(HaveOccurred())

			result, err := h.Read(32, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Writebacks).To(BeZero())
			Expect(result.Cycles).To(Equal(uint64(113)))
		})
	})

	Describe("Without L2", func() {
		BeforeEach(func() {
			config.L2Present = false
			build()
		})

		It("should go straight to memory", func() {
			Expect(h.L2()).To(BeNil())

			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1MissMemory))
			Expect(result.L2).To(Equal(stats.NotAccessed))
			// 1 + 100 + ceil(4/8)
			Expect(result.Cycles).To(Equal(uint64(102)))
		})

		It("should write dirty victims to memory", func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())

			result, err := h.Write(16, []byte{5, 6, 7, 8})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(1 + 101 + 101)))

			data, err := h.Memory().Peek(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should make local and global L1 miss rates equal", func() {
			for i, addr := range []uint64{0, 4, 0, 16, 0, 64, 68, 4, 100, 0} {
				var err error
				if i%3 == 0 {
					_, err = h.Write(addr, []byte{byte(i)})
				} else {
					_, err = h.Read(addr, 1)
				}
				Expect(err).NotTo(HaveOccurred())
			}

			r := h.Report()
			Expect(r.Levels).To(HaveLen(1))
			Expect(r.Levels[0].GlobalMissRate).To(Equal(r.Levels[0].LocalMissRate))
			Expect(r.Levels[0].LocalMissRate).To(BeNumerically(">", 0))
		})
	})

	Describe("Mismatched block sizes", func() {
		BeforeEach(func() {
			config.L2BlockSize = 16
			build()
		})

		It("should extract the L1 sub-block from the L2 line", func() {
			Expect(h.Memory().Poke(8, []byte{1, 1, 1, 1, 7, 7, 7, 7})).To(Succeed())

			result, err := h.Read(12, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data).To(Equal([]byte{7, 7, 7, 7}))
			// 1 + 10 + 100 + 16/8 + 4/4
			Expect(result.Cycles).To(Equal(uint64(114)))

			result, err = h.Read(8, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1MissL2Hit))
			Expect(result.Data).To(Equal([]byte{1, 1, 1, 1}))
		})
	})

	Describe("Round trips", func() {
		shapes := []struct {
			l1Block, l2Block int
			l2               bool
		}{
			{1, 8, true},
			{2, 4, true},
			{4, 8, true},
			{4, 4, true},
			{16, 64, true},
			{8, 8, false},
			{64, 0, false},
		}

		It("should read back what was written for every geometry", func() {
			for _, shape := range shapes {
				config = smallConfig()
				config.L1BlockSize = shape.l1Block
				config.L2Present = shape.l2
				if shape.l2 {
					config.L2BlockSize = shape.l2Block
				}
				build()

				addrs := []uint64{0, 3, 64, 1000, 0x12345, 0xFFFF00}
				for i, addr := range addrs {
					value := []byte{byte(i + 1), byte(i + 2), byte(i + 3), byte(i + 4)}

					_, err := h.Write(addr, value)
					Expect(err).NotTo(HaveOccurred())

					read, err := h.Read(addr, len(value))
					Expect(err).NotTo(HaveOccurred())
					Expect(read.Data).To(Equal(value))
					Expect(read.Outcome).To(Equal(stats.L1Hit))
				}

				// Earlier writes survive eviction through the hierarchy.
				for i, addr := range addrs {
					read, err := h.Read(addr, 1)
					Expect(err).NotTo(HaveOccurred())
					Expect(read.Data).To(Equal([]byte{byte(i + 1)}))
				}
			}
		})

		It("should return identical data and hit on a repeated read", func() {
			Expect(h.Memory().Poke(40, []byte{0xDE, 0xAD, 0xBE, 0xEF})).To(Succeed())

			first, err := h.Read(40, 4)
			Expect(err).NotTo(HaveOccurred())
			second, err := h.Read(40, 4)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Data).To(Equal(first.Data))
			Expect(second.Outcome).To(Equal(stats.L1Hit))
			Expect(second.Cycles).To(Equal(uint64(1)))
		})
	})

	Describe("Statistics", func() {
		It("should keep hits plus misses equal to accesses at every level", func() {
			addrs := []uint64{0, 32, 0, 4, 8, 64, 96, 0, 128, 36, 4}
			for i, addr := range addrs {
				var err error
				if i%2 == 0 {
					_, err = h.Write(addr, []byte{byte(i)})
				} else {
					_, err = h.Read(addr, 2)
				}
				Expect(err).NotTo(HaveOccurred())
			}

			l1 := h.Stats().L1()
			l2 := h.Stats().L2()
			Expect(l1.Accesses()).To(Equal(uint64(len(addrs))))
			Expect(l1.Hits() + l1.CompulsoryMisses + l1.ConflictMisses).To(Equal(l1.Accesses()))
			Expect(l2.Hits() + l2.CompulsoryMisses + l2.ConflictMisses).To(Equal(l2.Accesses()))
			Expect(l2.Accesses()).To(Equal(l1.Misses()))
		})

		It("should classify a repeated miss on a used index as conflict", func() {
			_, err := h.Read(0, 1)
			Expect(err).NotTo(HaveOccurred())
			result, err := h.Read(16, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.L1).To(Equal(stats.ConflictMiss))
			result, err = h.Read(0, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.L1).To(Equal(stats.ConflictMiss))

			Expect(h.Stats().L1().CompulsoryMisses).To(Equal(uint64(1)))
			Expect(h.Stats().L1().ConflictMisses).To(Equal(uint64(2)))
		})

		It("should reset statistics without touching the caches", func() {
			_, err := h.Read(0, 1)
			Expect(err).NotTo(HaveOccurred())
			h.ResetStats()

			Expect(h.Stats().Requests()).To(BeZero())
			result, err := h.Read(0, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1Hit))
		})
	})

	Describe("FlushAll", func() {
		BeforeEach(func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should leave memory stale when not called", func() {
			data, err := h.Memory().Peek(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0, 0, 0, 0}))
		})

		It("should push dirty data down to memory", func() {
			cycles := h.FlushAll()
			// (4/4 + 10) into L2, then 100 + 8/8 into memory
			Expect(cycles).To(Equal(uint64(112)))

			data, err := h.Memory().Peek(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4}))

			Expect(h.L1().DirtyIndices()).To(BeEmpty())
			Expect(h.L2().DirtyIndices()).To(BeEmpty())
			Expect(h.Report().FlushCycles).To(Equal(uint64(112)))
		})

		It("should keep lines valid", func() {
			h.FlushAll()

			result, err := h.Read(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1Hit))
			Expect(h.Stats().Requests()).To(Equal(uint64(2)))
		})

		It("should cost nothing when nothing is dirty", func() {
			h.FlushAll()
			Expect(h.FlushAll()).To(BeZero())
		})
	})

	Describe("Requests spanning L1 blocks", func() {
		It("should hit when every block is resident", func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			_, err = h.Write(4, []byte{5, 6, 7, 8})
			Expect(err).NotTo(HaveOccurred())

			result, err := h.Read(2, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1Hit))
			Expect(result.Cycles).To(Equal(uint64(1)))
			Expect(result.Data).To(Equal([]byte{3, 4, 5, 6}))
		})

		It("should charge the lookup once and every missing block", func() {
			// 6..7 lives in L2 block 0, 8..9 in L2 block 8.
			result, err := h.Read(6, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))
			Expect(result.L1).To(Equal(stats.CompulsoryMiss))
			Expect(result.L2).To(Equal(stats.CompulsoryMiss))
			Expect(result.Cycles).To(Equal(uint64(1 + 112 + 112)))
			Expect(result.Data).To(Equal([]byte{0, 0, 0, 0}))

			Expect(h.Stats().Requests()).To(Equal(uint64(1)))
			Expect(h.Stats().L1().Accesses()).To(Equal(uint64(1)))
			Expect(h.Stats().L2().Accesses()).To(Equal(uint64(1)))
		})

		It("should report the deepest outcome of its blocks", func() {
			_, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())

			// 4..5 comes from L2, 8..9 from memory.
			result, err := h.Read(2, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))
			Expect(result.Cycles).To(Equal(uint64(1 + 11 + 112)))
			Expect(result.Data).To(Equal([]byte{3, 4, 0, 0, 0, 0, 0, 0}))
		})

		It("should write across a block boundary", func() {
			_, err := h.Write(6, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())

			Expect(h.L1().Line(1).Dirty).To(BeTrue())
			Expect(h.L1().Line(2).Dirty).To(BeTrue())

			h.FlushAll()
			data, err := h.Memory().Peek(6, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4}))
		})
	})

	Describe("Blocks smaller than a word", func() {
		It("should serve a word from two-byte blocks", func() {
			config.L1BlockSize = 2
			build()

			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			// 113 for the first block, then an L2 hit of 10 + 2/4.
			Expect(result.Cycles).To(Equal(uint64(113 + 11)))
			Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))

			read, err := h.Read(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Outcome).To(Equal(stats.L1Hit))
			Expect(read.Cycles).To(Equal(uint64(1)))
			Expect(read.Data).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should serve a word from one-byte blocks", func() {
			config.L1BlockSize = 1
			build()

			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(113 + 3*11)))

			read, err := h.Read(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Data).To(Equal([]byte{1, 2, 3, 4}))
			Expect(read.Cycles).To(Equal(uint64(1)))

			Expect(h.Stats().L1().Accesses()).To(Equal(uint64(2)))
		})

		It("should take each block of a word through the fast path", func() {
			config.L1BlockSize = 2
			config.WriteFullBlockFastPath = true
			build()

			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(stats.L1MissNoFetch))
			Expect(result.Cycles).To(Equal(uint64(1)))
			Expect(h.Memory().BlockReads()).To(BeZero())
		})
	})

	Describe("Bus control overhead", func() {
		It("should be charged once per link crossing", func() {
			config.BusControlOverhead = 3
			build()

			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			// 1 + 10 + (100 + 8/8 + 3) + (4/4 + 3)
			Expect(result.Cycles).To(Equal(uint64(113 + 2*3)))

			result, err = h.Read(4, 0)
			Expect(err).NotTo(HaveOccurred())
			// 1 + 10 + (4/4 + 3)
			Expect(result.Cycles).To(Equal(uint64(12 + 3)))
		})
	})

	Describe("Full-block write fast path", func() {
		It("should fetch by default", func() {
			result, err := h.Write(0, []byte{1, 2, 3, 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(113)))
		})

		Context("when enabled", func() {
			BeforeEach(func() {
				config.WriteFullBlockFastPath = true
				build()
			})

			It("should skip the fetch for a full-block write", func() {
				result, err := h.Write(0, []byte{1, 2, 3, 4})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Outcome).To(Equal(stats.L1MissNoFetch))
				Expect(result.L2).To(Equal(stats.NotAccessed))
				Expect(result.Cycles).To(Equal(uint64(1)))
				Expect(h.Stats().L2().Accesses()).To(BeZero())
				Expect(h.Memory().BlockReads()).To(BeZero())

				read, err := h.Read(0, 4)
				Expect(err).NotTo(HaveOccurred())
				Expect(read.Data).To(Equal([]byte{1, 2, 3, 4}))
			})

			It("should still write back a dirty victim", func() {
				_, err := h.Write(0, []byte{1, 2, 3, 4})
				Expect(err).NotTo(HaveOccurred())

				result, err := h.Write(16, []byte{5, 6, 7, 8})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Writebacks).To(Equal(1))
				// 1 + (4/4 + 10 + fill L2 index 0: 101)
				Expect(result.Cycles).To(Equal(uint64(113)))
			})

			It("should fetch for a partial write", func() {
				result, err := h.Write(0, []byte{1, 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Outcome).To(Equal(stats.L1MissL2Miss))
				Expect(result.Cycles).To(Equal(uint64(113)))
			})
		})
	})

	Describe("Errors", func() {
		It("should reject addresses beyond memory without side effects", func() {
			_, err := h.Read(16*1024*1024, 1)
			Expect(errors.Is(err, cache.ErrInvalidAddress)).To(BeTrue())
			Expect(h.Stats().Requests()).To(BeZero())
			Expect(h.L1().Line(0).Valid).To(BeFalse())
		})

		It("should reject an explicit read running past the end of memory", func() {
			_, err := h.Read(16*1024*1024-1, 4)
			Expect(errors.Is(err, cache.ErrInvalidAddress)).To(BeTrue())
			Expect(h.Stats().Requests()).To(BeZero())
		})

		It("should reject a write without a value", func() {
			_, err := h.Write(0, nil)
			Expect(errors.Is(err, hierarchy.ErrMalformedRequest)).To(BeTrue())
		})

		It("should reject a read carrying a value", func() {
			_, err := h.Access(hierarchy.Request{Address: 0, Op: hierarchy.OpRead, Value: []byte{1}})
			Expect(errors.Is(err, hierarchy.ErrMalformedRequest)).To(BeTrue())
		})

		It("should continue normally after a rejected request", func() {
			_, err := h.Read(16*1024*1024, 1)
			Expect(err).To(HaveOccurred())

			result, err := h.Read(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(113)))
		})
	})

	Describe("Options", func() {
		It("should pass every completed request to recorders", func() {
			recorder := &fakeRecorder{}
			build(hierarchy.WithRecorder(recorder))

			_, err := h.Write(0, []byte{1})
			Expect(err).NotTo(HaveOccurred())
			_, err = h.Read(0, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.Read(16*1024*1024, 1)
			Expect(err).To(HaveOccurred())

			Expect(recorder.requests).To(HaveLen(2))
			Expect(recorder.requests[0].Op).To(Equal(hierarchy.OpWrite))
			Expect(recorder.results[1].Outcome).To(Equal(stats.L1Hit))
		})

		It("should log write-backs and fills", func() {
			var buf bytes.Buffer
			build(hierarchy.WithLogger(log.New(&buf, "", 0)))

			_, err := h.Write(0, []byte{1})
			Expect(err).NotTo(HaveOccurred())
			_, err = h.Read(32, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(buf.String()).To(ContainSubstring("L2 fill 0x000000"))
			Expect(buf.String()).To(ContainSubstring("L1 write-back 0x000000"))
		})
	})
})
