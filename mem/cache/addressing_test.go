package cache_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1dsim/mem/cache"
)

var _ = Describe("AddressMapper", func() {
	var mapper cache.AddressMapper

	BeforeEach(func() {
		mapper = cache.AddressMapper{NumSets: 64, LineSize: 64}
	})

	It("should find the set and the tag", func() {
		Expect(mapper.SetIndex(0x0)).To(Equal(uint64(0)))
		Expect(mapper.SetIndex(0x3F)).To(Equal(uint64(0)))
		Expect(mapper.SetIndex(0x40)).To(Equal(uint64(1)))
		Expect(mapper.SetIndex(0xFC0)).To(Equal(uint64(63)))
		Expect(mapper.SetIndex(0x1000)).To(Equal(uint64(0)))

		Expect(mapper.Tag(0xFFF)).To(Equal(uint64(0)))
		Expect(mapper.Tag(0x1000)).To(Equal(uint64(1)))
		Expect(mapper.Tag(0x12345)).To(Equal(uint64(0x12)))
	})

	It("should decompose into set and tag", func() {
		setIndex, tag := mapper.Decompose(0x12345)

		Expect(setIndex).To(Equal(uint64(0xD)))
		Expect(tag).To(Equal(uint64(0x12)))
	})

	It("should reconstruct the line base address", func() {
		addresses := []uint64{0, 1, 63, 64, 65, 4095, 4096, 0xDEADBEEF}

		r := rand.New(rand.NewSource(1))
		for range 1000 {
			addresses = append(addresses, r.Uint64()>>16)
		}

		for _, a := range addresses {
			base := mapper.LineBase(mapper.Tag(a), mapper.SetIndex(a))
			Expect(base).To(Equal(a-a%64), "address 0x%x", a)
		}
	})

	It("should tolerate geometries that are not powers of two", func() {
		mapper = cache.AddressMapper{NumSets: 3, LineSize: 24}

		for a := uint64(0); a < 1000; a++ {
			base := mapper.LineBase(mapper.Tag(a), mapper.SetIndex(a))
			Expect(base).To(Equal(a - a%24))
			Expect(mapper.SetIndex(a)).To(BeNumerically("<", 3))
		}
	})

	It("should split addresses of very wide lines", func() {
		mapper = cache.AddressMapper{NumSets: 2, LineSize: 1 << 62}

		Expect(mapper.Tag(0x100)).To(Equal(uint64(0)))
		Expect(mapper.SetIndex(0x100)).To(Equal(uint64(0)))

		top := uint64(math.MaxUint64)
		Expect(mapper.Tag(top)).To(Equal(uint64(1)))
		Expect(mapper.SetIndex(top)).To(Equal(uint64(1)))
		Expect(mapper.LineBase(mapper.Tag(top), mapper.SetIndex(top))).
			To(Equal(top - top%(1<<62)))
	})

	It("should reject geometries whose size overflows", func() {
		_, err := cache.NewLRUCache(4, 2, 1<<62)
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
		Expect(err.Error()).To(ContainSubstring("LineSize makes the cache size overflow"))

		_, err = cache.NewLRUCache(2, 4, 1<<62)
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
		Expect(err.Error()).To(ContainSubstring("NumWays makes the cache size overflow"))

		_, err = cache.NewUnboundedCache(4, 1<<62)
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
	})

	It("should keep every operation total on the widest valid geometry", func() {
		c, err := cache.NewLRUCache(2, 2, 1<<62)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.IsCached(0x100)).To(BeFalse())
		c.Write(math.MaxUint64, []byte{0x1})
		Expect(c.IsCached(math.MaxUint64)).To(BeTrue())
		c.FlushAddress(math.MaxUint64)
		Expect(c.IsCached(math.MaxUint64)).To(BeFalse())
	})

	It("should compute the capacity", func() {
		Expect(mapper.CapacityBytes(8)).To(Equal(uint64(32 * 1024)))
	})

	It("should be shared by both cache variants", func() {
		lru, err := cache.NewLRUCache(16, 4, 32)
		Expect(err).NotTo(HaveOccurred())

		unbounded, err := cache.NewUnboundedCache(16, 32)
		Expect(err).NotTo(HaveOccurred())

		Expect(lru.Mapper()).To(Equal(unbounded.Mapper()))
		Expect(lru.Mapper()).To(Equal(
			cache.AddressMapper{NumSets: 16, LineSize: 32}))
	})
})
