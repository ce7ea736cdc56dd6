package eval

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/runtime"
)

// Offsets into the in-memory AhoyArray header, matching its field order:
// data, types, length, capacity.
const (
	arrHeaderSize = 24
	arrLengthOff  = 16
	arrCapOff     = 20
)

// native dispatches the functions the dialect links against instead of
// defining.
func (m *Machine) native(name string, args []int64) (int64, error) {
	switch name {
	case "printf":
		if len(args) < 1 {
			return 0, errors.New("printf needs a format string")
		}
		return m.printTo(args[0], args[1:])

	case "fprintf":
		if len(args) < 2 {
			return 0, errors.New("fprintf needs a stream and a format string")
		}
		return m.printTo(args[1], args[2:])

	case "malloc":
		if len(args) != 1 {
			return 0, errors.New("malloc takes one argument")
		}
		return m.mem.alloc(args[0]), nil

	case "realloc":
		return m.realloc(args)

	case "free":
		if len(args) != 1 {
			return 0, errors.New("free takes one argument")
		}
		return 0, m.mem.free(args[0])

	case "ahoy_array_new":
		addr := m.mem.alloc(arrHeaderSize)
		m.arrays[addr] = runtime.NewTaggedArray()
		return addr, nil

	case "ahoy_array_push":
		if len(args) != 3 {
			return 0, errors.New("ahoy_array_push takes three arguments")
		}
		arr, ok := m.arrays[args[0]]
		if !ok {
			return 0, errors.Errorf("push on non-array address %#x", args[0])
		}
		arr.Push(args[1], runtime.ValueType(args[2]))
		if err := m.mem.store(args[0]+arrLengthOff, 4, int64(arr.Len())); err != nil {
			return 0, err
		}
		if err := m.mem.store(args[0]+arrCapOff, 4, int64(arr.Cap())); err != nil {
			return 0, err
		}
		return args[0], nil

	case "ahoy_array_get":
		if len(args) != 2 {
			return 0, errors.New("ahoy_array_get takes two arguments")
		}
		arr, ok := m.arrays[args[0]]
		if !ok {
			return 0, errors.Errorf("get on non-array address %#x", args[0])
		}
		elem, ok := arr.Get(int(args[1]))
		if !ok {
			return 0, errors.Errorf("array index %d out of range", args[1])
		}
		return elem.Word, nil

	case "ahoy_retain":
		if len(args) != 1 {
			return 0, errors.New("ahoy_retain takes one argument")
		}
		if args[0] == 0 {
			return 0, nil
		}
		n, err := m.mem.load(args[0], 4)
		if err != nil {
			return 0, err
		}
		return 0, m.mem.store(args[0], 4, n+1)

	case "ahoy_release":
		if len(args) != 1 {
			return 0, errors.New("ahoy_release takes one argument")
		}
		if args[0] == 0 {
			return 0, nil
		}
		n, err := m.mem.load(args[0], 4)
		if err != nil {
			return 0, err
		}
		if n-1 <= 0 {
			return 0, m.mem.free(args[0])
		}
		return 0, m.mem.store(args[0], 4, n-1)
	}
	return 0, errors.Errorf("call to undefined function %q", name)
}

func (m *Machine) realloc(args []int64) (int64, error) {
	if len(args) != 2 {
		return 0, errors.New("realloc takes two arguments")
	}
	old, size := args[0], args[1]
	fresh := m.mem.alloc(size)
	if old == 0 {
		return fresh, nil
	}
	oldSize, ok := m.mem.allocSize(old)
	if !ok {
		return 0, errors.Errorf("realloc of untracked address %#x", old)
	}
	n := oldSize
	if size < n {
		n = size
	}
	if n > 0 {
		if err := m.mem.copyBytes(fresh, old, n); err != nil {
			return 0, err
		}
	}
	return fresh, m.mem.free(old)
}

// printTo formats into the machine's output writer. Both stream handles
// land in the same writer; tests inspect the combined transcript.
func (m *Machine) printTo(format int64, args []int64) (int64, error) {
	spec, err := m.mem.cstring(format)
	if err != nil {
		return 0, err
	}
	text, err := m.format(unescape(spec), args)
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(m.out, text)
	return int64(n), err
}

// format interprets the printf subset the dialect uses: %d, %ld, %lld,
// %zu, %c, %s, %p, %x and %%. Width and precision are not supported.
func (m *Machine) format(spec string, args []int64) (string, error) {
	var b strings.Builder
	next := 0
	take := func() (int64, error) {
		if next >= len(args) {
			return 0, errors.Errorf("format %q consumes more than %d arguments", spec, len(args))
		}
		v := args[next]
		next++
		return v, nil
	}

	for i := 0; i < len(spec); i++ {
		if spec[i] != '%' {
			b.WriteByte(spec[i])
			continue
		}
		i++
		if i >= len(spec) {
			b.WriteByte('%')
			break
		}
		// Length prefixes carry no information here; every word is 64-bit.
		for i < len(spec) && (spec[i] == 'l' || spec[i] == 'z') {
			i++
		}
		if i >= len(spec) {
			break
		}
		switch spec[i] {
		case '%':
			b.WriteByte('%')
		case 'd', 'i', 'u':
			v, err := take()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%d", v)
		case 'x':
			v, err := take()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%x", v)
		case 'c':
			v, err := take()
			if err != nil {
				return "", err
			}
			b.WriteByte(byte(v))
		case 'p':
			v, err := take()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "0x%x", v)
		case 's':
			v, err := take()
			if err != nil {
				return "", err
			}
			s, err := m.mem.cstring(v)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		default:
			return "", errors.Errorf("unsupported conversion %%%c", spec[i])
		}
	}
	return b.String(), nil
}
