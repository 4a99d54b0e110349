package cache_test

import (
	"bytes"
	"errors"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1dsim/mem/cache"
)

var _ = Describe("Builder", func() {
	It("should build with defaults", func() {
		c, err := cache.MakeBuilder().BuildLRU()

		Expect(err).NotTo(HaveOccurred())
		Expect(c.NumSets()).To(Equal(64))
		Expect(c.NumWays()).To(Equal(8))
		Expect(c.LineSize()).To(Equal(64))
		Expect(c.Debug()).To(BeFalse())
		Expect(c.NumHooks()).To(Equal(0))
	})

	DescribeTable("should reject non-positive configuration",
		func(b cache.Builder, field string, value int) {
			_, err := b.BuildLRU()

			Expect(errors.Is(err, cache.ErrInvalidConfig)).To(BeTrue())

			var configErr *cache.ConfigurationError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(configErr.Field).To(Equal(field))
			Expect(configErr.Value).To(Equal(value))
		},
		Entry("zero sets", cache.MakeBuilder().WithNumSets(0), "NumSets", 0),
		Entry("negative ways",
			cache.MakeBuilder().WithNumWays(-1), "NumWays", -1),
		Entry("zero line size",
			cache.MakeBuilder().WithLineSize(0), "LineSize", 0),
	)

	It("should not require ways for an unbounded cache", func() {
		c, err := cache.MakeBuilder().WithNumWays(0).BuildUnbounded()

		Expect(err).NotTo(HaveOccurred())
		Expect(c.NumSets()).To(Equal(64))
	})

	It("should reject a bad unbounded configuration", func() {
		_, err := cache.NewUnboundedCache(4, -64)

		Expect(err).To(MatchError(cache.ErrInvalidConfig))
		Expect(err.Error()).To(ContainSubstring("LineSize must be positive"))
	})

	It("should trace every operation in debug mode", func() {
		buf := new(bytes.Buffer)
		c, err := cache.MakeBuilder().
			WithNumSets(1).
			WithNumWays(1).
			WithDebug(true).
			WithLogger(log.New(buf, "", 0)).
			BuildLRU()
		Expect(err).NotTo(HaveOccurred())

		c.IsCached(0x40)
		c.Write(0x0, []byte{0xAB})
		c.Write(0x0, []byte{0xCD})
		c.Write(0x40, []byte{0x01})
		_, _ = c.Read(0x40, nil)
		c.FlushAddress(0x0)
		c.FlushAddress(0x40)
		c.Reset()

		Expect(strings.Split(strings.TrimSpace(buf.String()), "\n")).To(Equal([]string{
			"Not present in cache: 0x40",
			"Writing to cache: 0x0, value = ab",
			"Writing to cache: 0x0, value = cd (replaced old value)",
			"Evicted tag 0x0 (addr 0x0) from set 0",
			"Writing to cache: 0x40, value = 01",
			"Reading from cache: 0x40",
			"Cache hit: 0x40, set 0, way 0",
			"Address 0x0 was not in cache, nothing to flush",
			"Flushed address 0x40 from cache",
			"Flushed complete cache",
			"Reset cache to initial state",
		}))
	})

	It("should stay silent without debug mode", func() {
		buf := new(bytes.Buffer)
		c, _ := cache.MakeBuilder().WithLogger(log.New(buf, "", 0)).BuildLRU()

		c.Write(0, []byte{1})
		c.IsCached(0)
		c.Flush()

		Expect(buf.Len()).To(Equal(0))
	})

	It("should not share hooks between derived builders", func() {
		base := cache.MakeBuilder().WithHook(discardLogTracer())
		first := base.WithHook(discardLogTracer())
		second := base.WithHook(discardLogTracer())

		c1, _ := first.BuildLRU()
		c2, _ := second.BuildUnbounded()

		Expect(c1.NumHooks()).To(Equal(2))
		Expect(c2.NumHooks()).To(Equal(2))
		Expect(c1.Hooks()[1]).NotTo(BeIdenticalTo(c2.Hooks()[1]))
	})
})

func discardLogTracer() *cache.LogTracer {
	return cache.NewLogTracer(log.New(new(bytes.Buffer), "", 0))
}
