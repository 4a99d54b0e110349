package replay_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1dsim/mem/cache"
	"github.com/sarchlab/l1dsim/mem/replay"
	"github.com/sarchlab/l1dsim/mem/storage"
)

func mustParse(trace string) []replay.Access {
	accesses, err := replay.Parse(strings.NewReader(trace))
	Expect(err).NotTo(HaveOccurred())

	return accesses
}

var _ = Describe("Replayer", func() {
	var (
		c        *cache.LRUCache
		memory   *storage.Storage
		out      *bytes.Buffer
		replayer *replay.Replayer
	)

	BeforeEach(func() {
		var err error
		c, err = cache.NewLRUCache(1, 2, 64)
		Expect(err).NotTo(HaveOccurred())

		memory = storage.New(4096)
		Expect(memory.Write(0x40, []byte{0xAB})).To(Succeed())

		out = new(bytes.Buffer)
		replayer = replay.NewReplayer(c, memory).WithOutput(out)
	})

	It("should count hits and misses", func() {
		err := replayer.Run(context.Background(), mustParse(`
R 0x40
R 0x48
R 0x80
R 0xC0
R 0x40
Q 0xC0
Q 0x0
`))

		Expect(err).NotTo(HaveOccurred())
		Expect(replayer.Stats()).To(Equal(replay.Stats{
			Accesses:  7,
			Reads:     5,
			Hits:      1,
			Misses:    4,
			Queries:   2,
			QueryHits: 1,
		}))
	})

	It("should fill lines from memory", func() {
		Expect(replayer.Run(context.Background(),
			mustParse("R 0x40"))).To(Succeed())

		data, err := c.Read(0x40, cache.MemoryFunc(
			func(_, _ uint64) ([]byte, error) {
				return nil, errors.New("unexpected memory access")
			}))
		Expect(err).NotTo(HaveOccurred())
		Expect(data[0]).To(Equal(byte(0xAB)))
	})

	It("should apply writes, flushes and resets", func() {
		err := replayer.Run(context.Background(), mustParse(`
W 0x0 01
W 0x40 02
FA 0x0
F
W 0x80 03
X
`))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.TotalLines()).To(Equal(0))
		Expect(replayer.Stats()).To(Equal(replay.Stats{
			Accesses:       6,
			Writes:         3,
			Flushes:        1,
			AddressFlushes: 1,
			Resets:         1,
		}))
	})

	It("should print the cache", func() {
		replayer.WithPrintOptions(cache.PrettyPrintOptions{PreviewBytes: 1})

		err := replayer.Run(context.Background(), mustParse(`
W 0x0 ff
P
`))

		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("L1D Cache Status:"))
		Expect(out.String()).To(ContainSubstring("Data: ff"))
		Expect(replayer.Stats().Prints).To(Equal(1))
	})

	It("should print every set for a zero set limit", func() {
		wide, err := cache.NewLRUCache(4, 1, 64)
		Expect(err).NotTo(HaveOccurred())

		trace := mustParse("W 0x0 01\nW 0xC0 02\nP 0\nP\nP 1\n")

		outputs := make([]string, 0, 3)
		for _, a := range trace[2:] {
			buf := new(bytes.Buffer)
			r := replay.NewReplayer(wide, memory).WithOutput(buf)
			Expect(r.Run(context.Background(), append(trace[:2:2], a))).
				To(Succeed())
			outputs = append(outputs, buf.String())
		}

		Expect(outputs[0]).To(Equal(outputs[1]))
		Expect(outputs[0]).To(ContainSubstring("Set   3: 1/1 ways occupied"))
		Expect(outputs[0]).NotTo(ContainSubstring("more sets"))
		Expect(outputs[2]).NotTo(ContainSubstring("Set   3"))
		Expect(outputs[2]).To(HaveSuffix("... 3 more sets ...\n"))
	})

	It("should stop at the first memory fault", func() {
		err := replayer.Run(context.Background(), mustParse(`
R 0x40
R 0x10000
R 0x80
`))

		Expect(err).To(MatchError(storage.ErrOutOfRange))
		Expect(err.Error()).To(HavePrefix("line 3: read 0x10000"))
		Expect(replayer.Stats().Reads).To(Equal(2))
		Expect(replayer.Stats().Misses).To(Equal(2))
		Expect(c.IsCached(0x10000)).To(BeFalse())
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := replayer.Run(ctx, mustParse("R 0x40"))

		Expect(err).To(MatchError(context.Canceled))
		Expect(replayer.Stats().Accesses).To(Equal(0))
	})

	It("should hold the lock around every access", func() {
		lock := &countingLocker{}
		replayer.WithLocker(lock)

		Expect(replayer.Run(context.Background(),
			mustParse("R 0x40\nQ 0x40"))).To(Succeed())
		Expect(lock.locks).To(Equal(2))
	})
})

type countingLocker struct {
	sync.Mutex
	locks int
}

func (l *countingLocker) Lock() {
	l.Mutex.Lock()
	l.locks++
}

type countingProgress struct {
	finished uint64
}

func (p *countingProgress) IncrementFinished(amount uint64) {
	p.finished += amount
}

var _ = Describe("Replayer progress", func() {
	It("should report every finished access", func() {
		c, _ := cache.NewUnboundedCache(4, 64)
		progress := &countingProgress{}
		replayer := replay.NewReplayer(c, storage.New(1024)).
			WithProgress(progress)

		err := replayer.Run(context.Background(),
			mustParse("W 0 01\nR 0\nR 0x2000\nR 0"))

		Expect(err).To(HaveOccurred())
		Expect(progress.finished).To(Equal(uint64(2)))
	})
})
