package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1dsim/mem/cache"
	"github.com/sarchlab/l1dsim/mem/storage"
)

var _ = Describe("Storage", func() {
	It("should read and write in single unit", func() {
		s := storage.New(4096)
		Expect(s.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(0, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2}))

		res, _ = s.Read(1, 2)
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across units", func() {
		s := storage.New(8192)
		Expect(s.Write(4094, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(4094, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
		Expect(s.NumAllocatedUnits()).To(Equal(2))
	})

	It("should read untouched memory as zeros without allocating", func() {
		s := storage.New(1 << 20)

		res, err := s.Read(0x8000, 64)

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(make([]byte, 64)))
		Expect(s.NumAllocatedUnits()).To(Equal(0))
	})

	It("should return error if accessing over the capacity", func() {
		s := storage.New(4096)

		_, err := s.Read(4095, 2)
		Expect(err).To(MatchError(storage.ErrOutOfRange))

		err = s.Write(4096, []byte{1})
		Expect(err).To(MatchError(storage.ErrOutOfRange))
	})

	It("should use small units", func() {
		s := storage.NewWithUnitSize(256, 16)
		Expect(s.Write(10, make([]byte, 40))).To(Succeed())
		Expect(s.NumAllocatedUnits()).To(Equal(4))
	})

	It("should back a cache", func() {
		s := storage.New(1 << 16)
		Expect(s.Write(0x1000, []byte{0xDE, 0xAD})).To(Succeed())
		c, err := cache.NewLRUCache(8, 2, 64)
		Expect(err).NotTo(HaveOccurred())

		line, err := c.Read(0x1000, s)

		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(HaveLen(64))
		Expect(line[:2]).To(Equal([]byte{0xDE, 0xAD}))
	})

	It("should fail a cache read past the end", func() {
		s := storage.New(0x100)
		c, _ := cache.NewLRUCache(8, 2, 64)

		_, err := c.Read(0x100, s)

		Expect(err).To(MatchError(storage.ErrOutOfRange))
		Expect(c.IsCached(0x100)).To(BeFalse())
	})
})
