package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/l1dsim/instrumentation/hooking"
	"github.com/sarchlab/l1dsim/mem/cache"
)

var _ = Describe("Cache hooks", func() {
	var (
		mockCtrl *gomock.Controller
		memory   *MockMemory
		hook     *MockHook
		events   []hooking.HookCtx
		c        *cache.LRUCache
	)

	positions := func() []*hooking.HookPos {
		out := make([]*hooking.HookPos, 0, len(events))
		for _, e := range events {
			out = append(out, e.Pos)
		}

		return out
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		memory = NewMockMemory(mockCtrl)
		hook = NewMockHook(mockCtrl)
		events = nil

		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) { events = append(events, ctx) }).
			AnyTimes()

		var err error
		c, err = cache.MakeBuilder().
			WithNumSets(1).
			WithNumWays(1).
			WithHook(hook).
			BuildLRU()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should raise read, miss, and write on a read miss", func() {
		memory.EXPECT().Read(uint64(0x40), uint64(64)).Return([]byte{1}, nil)

		_, err := c.Read(0x40, memory)

		Expect(err).NotTo(HaveOccurred())
		Expect(positions()).To(Equal([]*hooking.HookPos{
			cache.HookPosRead, cache.HookPosMiss, cache.HookPosWrite,
		}))
		Expect(events[0].Domain).To(BeIdenticalTo(c))
		Expect(events[0].Item).To(Equal(uint64(0x40)))

		detail := events[2].Detail.(cache.AccessDetail)
		Expect(detail.Tag).To(Equal(uint64(1)))
		Expect(detail.Way).To(Equal(0))
		Expect(detail.Replaced).To(BeFalse())
		Expect(detail.Data).To(Equal([]byte{1}))
	})

	It("should raise an eviction with the victim", func() {
		c.Write(0x0, []byte{0xAA})
		c.Write(0x40, []byte{0xBB})

		Expect(positions()).To(Equal([]*hooking.HookPos{
			cache.HookPosWrite, cache.HookPosEvict, cache.HookPosWrite,
		}))

		detail := events[1].Detail.(cache.AccessDetail)
		Expect(detail.Address).To(Equal(uint64(0)))
		Expect(detail.Tag).To(Equal(uint64(0)))
		Expect(detail.Way).To(Equal(0))
		Expect(detail.Data).To(Equal([]byte{0xAA}))
	})

	It("should raise lookups without changing anything", func() {
		c.Write(0x0, []byte{0xAA})
		events = nil

		Expect(c.IsCached(0x10)).To(BeTrue())
		Expect(c.IsCached(0x40)).To(BeFalse())

		Expect(positions()).To(Equal([]*hooking.HookPos{
			cache.HookPosLookup, cache.HookPosLookup,
		}))
		Expect(events[0].Detail.(cache.AccessDetail).Present()).To(BeTrue())
		Expect(events[1].Detail.(cache.AccessDetail).Present()).To(BeFalse())
	})

	It("should raise flushes", func() {
		c.FlushAddress(0x80)
		c.Reset()

		Expect(positions()).To(Equal([]*hooking.HookPos{
			cache.HookPosFlushAddress, cache.HookPosFlush, cache.HookPosReset,
		}))
		Expect(events[1].Item).To(BeNil())
	})
})
