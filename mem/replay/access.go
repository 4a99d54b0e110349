// Package replay reads text traces of cache accesses and runs them against a
// cache.
//
// A trace has one access per line:
//
//	R <addr>          read the line holding addr
//	W <addr> <hex>    write the bytes to the line holding addr
//	Q <addr>          ask whether the line holding addr is resident
//	F                 flush the whole cache
//	FA <addr>         flush the line holding addr
//	X                 reset the cache
//	P [max_sets]      print the cache
//
// Operations are case-insensitive. Addresses are parsed with Go integer
// syntax, so both 0x40 and 64 work. Blank lines and lines starting with # are
// ignored. P 0 prints every set, the same as P.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Op is the kind of an access.
type Op int

// The operations a trace may contain.
const (
	OpRead Op = iota
	OpWrite
	OpQuery
	OpFlush
	OpFlushAddress
	OpReset
	OpPrint
)

var opNames = map[Op]string{
	OpRead:         "R",
	OpWrite:        "W",
	OpQuery:        "Q",
	OpFlush:        "F",
	OpFlushAddress: "FA",
	OpReset:        "X",
	OpPrint:        "P",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}

	return fmt.Sprintf("Op(%d)", int(o))
}

// An Access is one parsed trace line.
type Access struct {
	// Line is the 1-based line number in the trace.
	Line    int
	Op      Op
	Address uint64

	// Data is the payload of a write.
	Data []byte

	// MaxSets is the set limit of a print. Zero prints every set.
	MaxSets int
}

// Errors wrapped by ParseError.
var (
	ErrUnknownOp      = errors.New("unknown operation")
	ErrOperandCount   = errors.New("wrong number of operands")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidData    = errors.New("invalid data")
	ErrInvalidMaxSets = errors.New("invalid set limit")
)

// A ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a whole trace. It stops at the first malformed line.
func Parse(r io.Reader) ([]Access, error) {
	var accesses []Access

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		access, err := ParseLine(text)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: text, Err: err}
		}

		access.Line = lineNum
		accesses = append(accesses, access)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return accesses, nil
}

// ParseLine parses a single access. The line must not be blank or a comment.
func ParseLine(text string) (Access, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Access{}, ErrOperandCount
	}

	op, operands := strings.ToUpper(fields[0]), fields[1:]

	switch op {
	case "R":
		return addressAccess(OpRead, operands)
	case "Q":
		return addressAccess(OpQuery, operands)
	case "FA":
		return addressAccess(OpFlushAddress, operands)
	case "W":
		return writeAccess(operands)
	case "F":
		return bareAccess(OpFlush, operands)
	case "X":
		return bareAccess(OpReset, operands)
	case "P":
		return printAccess(operands)
	default:
		return Access{}, fmt.Errorf("%w %q", ErrUnknownOp, fields[0])
	}
}

func bareAccess(op Op, operands []string) (Access, error) {
	if len(operands) != 0 {
		return Access{}, ErrOperandCount
	}

	return Access{Op: op}, nil
}

func addressAccess(op Op, operands []string) (Access, error) {
	if len(operands) != 1 {
		return Access{}, ErrOperandCount
	}

	addr, err := parseAddress(operands[0])
	if err != nil {
		return Access{}, err
	}

	return Access{Op: op, Address: addr}, nil
}

func writeAccess(operands []string) (Access, error) {
	if len(operands) != 2 {
		return Access{}, ErrOperandCount
	}

	addr, err := parseAddress(operands[0])
	if err != nil {
		return Access{}, err
	}

	data, err := hex.DecodeString(strings.TrimPrefix(operands[1], "0x"))
	if err != nil || len(data) == 0 {
		return Access{}, fmt.Errorf("%w %q", ErrInvalidData, operands[1])
	}

	return Access{Op: OpWrite, Address: addr, Data: data}, nil
}

func printAccess(operands []string) (Access, error) {
	switch len(operands) {
	case 0:
		return Access{Op: OpPrint}, nil
	case 1:
		maxSets, err := strconv.Atoi(operands[0])
		if err != nil || maxSets < 0 {
			return Access{}, fmt.Errorf("%w %q", ErrInvalidMaxSets, operands[0])
		}

		return Access{Op: OpPrint, MaxSets: maxSets}, nil
	default:
		return Access{}, ErrOperandCount
	}
}

func parseAddress(s string) (uint64, error) {
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidAddress, s)
	}

	return addr, nil
}
