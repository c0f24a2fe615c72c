// Package selftest exercises the pin operations the way a client would:
// valid calls must succeed, out-of-range calls must be rejected, and a
// written output level must read back.
package selftest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fkcurrie/bcmgpio/pkg/gpio"
)

// Pins is implemented by gpio.Controller and by the gpiod client.
type Pins interface {
	Configure(pin int, mode gpio.Mode) error
	Write(pin int, level gpio.Level) error
	Read(pin int) (gpio.Level, error)
}

// Result counts passed and failed checks
type Result struct {
	Passed int
	Failed int
}

// OK reports whether every check passed.
func (r Result) OK() bool {
	return r.Failed == 0
}

type runner struct {
	out io.Writer
	res Result
}

func (r *runner) expect(desc string, err error, succeed bool) {
	switch {
	case succeed && err == nil:
		r.res.Passed++
		fmt.Fprintf(r.out, "PASSED (%s)\n", desc)
	case !succeed && errors.Is(err, gpio.ErrInvalidArgument):
		r.res.Passed++
		fmt.Fprintf(r.out, "PASSED (correct reject) (%s): %v\n", desc, err)
	case succeed:
		r.res.Failed++
		fmt.Fprintf(r.out, "FAILED (%s): %v\n", desc, err)
	default:
		r.res.Failed++
		fmt.Fprintf(r.out, "FAILED (should be rejected) (%s): %v\n", desc, err)
	}
}

// Run checks configure, write and read against p, using pin as the output
// for the read-back checks. settle is how long to wait for the level to
// latch before reading it back.
func Run(p Pins, pin int, settle time.Duration, out io.Writer) Result {
	r := &runner{out: out}

	fmt.Fprintln(out, "Testing configure")
	r.expect(fmt.Sprintf("configure pin %d as OUTPUT", pin), p.Configure(pin, gpio.Output), true)
	r.expect("configure pin 17 as INPUT", p.Configure(17, gpio.Input), true)
	r.expect("configure pin 0 as OUTPUT", p.Configure(0, gpio.Output), true)
	r.expect("configure pin 53 as INPUT", p.Configure(53, gpio.Input), true)
	r.expect("reject negative pin", p.Configure(-1, gpio.Output), false)
	r.expect("reject pin > 53", p.Configure(100, gpio.Output), false)
	r.expect("reject invalid mode", p.Configure(pin, gpio.Mode(5)), false)

	fmt.Fprintln(out, "Testing write")
	r.expect(fmt.Sprintf("write pin %d HIGH", pin), p.Write(pin, gpio.High), true)
	r.expect(fmt.Sprintf("write pin %d LOW", pin), p.Write(pin, gpio.Low), true)
	r.expect("reject write to pin 54", p.Write(54, gpio.High), false)
	r.expect("reject write of value 2", p.Write(pin, gpio.Level(2)), false)

	fmt.Fprintln(out, "Testing read")
	_, err := p.Read(17)
	r.expect("read pin 17", err, true)
	_, err = p.Read(-3)
	r.expect("reject read of pin -3", err, false)

	for _, level := range []gpio.Level{gpio.High, gpio.Low} {
		desc := fmt.Sprintf("pin %d reads back %d", pin, level)
		if err := p.Write(pin, level); err != nil {
			r.expect(desc, err, true)
			continue
		}
		time.Sleep(settle)
		got, err := p.Read(pin)
		if err == nil && got != level {
			err = fmt.Errorf("read %d", got)
		}
		r.expect(desc, err, true)
	}

	fmt.Fprintf(out, "Final Results: success/failed: %d / %d\n", r.res.Passed, r.res.Failed)
	return r.res
}

// Blink configures pin as an output and toggles it every period until ctx
// is done or count toggles have been made. A count of 0 blinks forever.
func Blink(ctx context.Context, p Pins, pin int, period time.Duration, count int) error {
	if err := p.Configure(pin, gpio.Output); err != nil {
		return fmt.Errorf("configure failed: %w", err)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	level := gpio.High
	for i := 0; count == 0 || i < count; i++ {
		if err := p.Write(pin, level); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		level ^= 1

		select {
		case <-ctx.Done():
			return p.Write(pin, gpio.Low)
		case <-ticker.C:
		}
	}
	return p.Write(pin, gpio.Low)
}
