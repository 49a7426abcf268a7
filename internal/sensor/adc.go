package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ADC yields raw conversions normalized to a 16-bit scale.
type ADC interface {
	ReadRaw() (uint16, error)
}

// SysfsADC reads an IIO channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsADC struct {
	Path string
	Bits int
}

func (a SysfsADC) ReadRaw() (uint16, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return 0, fmt.Errorf("read adc %s: %w", a.Path, err)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse adc %s: %w", a.Path, err)
	}

	bits := a.Bits
	if bits <= 0 || bits > 16 {
		bits = 16
	}
	if v >= 1<<bits {
		return 0, fmt.Errorf("adc %s: value %d exceeds %d bits", a.Path, v, bits)
	}
	return uint16(v << (16 - bits)), nil
}

// FakeADC returns Values in order, repeating the last one. Err, when set,
// is returned instead.
type FakeADC struct {
	mu     sync.Mutex
	Values []uint16
	Err    error
	reads  int
}

func (f *FakeADC) ReadRaw() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.Err != nil {
		return 0, f.Err
	}
	if len(f.Values) == 0 {
		return 0, nil
	}
	v := f.Values[0]
	if len(f.Values) > 1 {
		f.Values = f.Values[1:]
	}
	return v, nil
}

func (f *FakeADC) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
