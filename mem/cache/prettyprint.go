package cache

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DefaultPreviewBytes is the number of bytes shown per line when no preview
// length is given.
const DefaultPreviewBytes = 16

// PrettyPrintOptions controls how much of a cache PrettyPrint writes.
type PrettyPrintOptions struct {
	// MaxSets limits the dump to the first MaxSets sets. Zero or negative
	// means all sets, so the zero value dumps the whole cache. A dump always
	// covers at least one set.
	MaxSets int

	// PreviewBytes is the number of bytes shown per line. Zero or negative
	// means DefaultPreviewBytes.
	PreviewBytes int
}

func (o PrettyPrintOptions) setsToPrint(numSets uint64) uint64 {
	if o.MaxSets <= 0 || uint64(o.MaxSets) > numSets {
		return numSets
	}

	return uint64(o.MaxSets)
}

func (o PrettyPrintOptions) previewBytes() int {
	if o.PreviewBytes <= 0 {
		return DefaultPreviewBytes
	}

	return o.PreviewBytes
}

// HexPreview renders the first n bytes of data as lowercase hex, followed by
// "..." if data is longer.
func HexPreview(data []byte, n int) string {
	if len(data) <= n {
		return hex.EncodeToString(data)
	}

	return hex.EncodeToString(data[:n]) + "..."
}

// dumpLayout holds what differs between the dumps of the cache variants.
type dumpLayout struct {
	header    func(p *dumpWriter)
	occupancy func(set *Set) string
	rowLabel  func(way int) string
}

// dumpWriter remembers the first write error so that a dump can be written
// without checking every line.
type dumpWriter struct {
	w   io.Writer
	err error
}

func (p *dumpWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (d *directory) prettyPrint(
	w io.Writer,
	opts PrettyPrintOptions,
	layout dumpLayout,
) error {
	p := &dumpWriter{w: w}

	layout.header(p)
	p.printf("%s\n", strings.Repeat("-", 80))

	numSets := d.mapper.NumSets
	setsToPrint := opts.setsToPrint(numSets)
	preview := opts.previewBytes()

	for setIndex := uint64(0); setIndex < setsToPrint; setIndex++ {
		set := &d.sets[setIndex]
		if set.Len() == 0 && !d.debug {
			continue
		}

		p.printf("Set %3d: %s\n", setIndex, layout.occupancy(set))

		for way, line := range set.Lines {
			p.printf("  %s: Tag 0x%x, Addr 0x%x, Data: %s\n",
				layout.rowLabel(way),
				line.Tag,
				d.mapper.LineBase(line.Tag, setIndex),
				HexPreview(line.Data, preview))
		}

		p.printf("\n")
	}

	if setsToPrint < numSets {
		p.printf("... %d more sets ...\n", numSets-setsToPrint)
	}

	return p.err
}
