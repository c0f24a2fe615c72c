// Package gpio drives BCM283x GPIO pins through the memory-mapped register
// block: function select for direction, set/clear for output level and the
// level registers for input.
package gpio

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/fkcurrie/bcmgpio/pkg/mmap"
)

// Mode is a pin's function select value
type Mode int

const (
	Input  Mode = 0
	Output Mode = 1
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "INPUT"
	case Output:
		return "OUTPUT"
	}
	return fmt.Sprintf("ALT(%d)", int(m))
}

// Level is a pin's electrical level
type Level int

const (
	Low  Level = 0
	High Level = 1
)

var (
	// ErrInvalidArgument reports a pin, mode or level outside its domain.
	// No register has been touched when it is returned.
	ErrInvalidArgument = errors.New("gpio: invalid argument")

	// ErrResourceUnavailable reports that the register block could not
	// be mapped. Hardware state is unchanged.
	ErrResourceUnavailable = errors.New("gpio: register block unavailable")

	// ErrTransactionFault reports a register access that faulted.
	ErrTransactionFault = errors.New("gpio: register transaction faulted")
)

// Controller performs pin operations on a shared register map
type Controller struct {
	regs   *mmap.RegisterMap
	logger *log.Logger
}

// NewController creates a controller on regs. A nil logger discards
// status lines.
func NewController(regs *mmap.RegisterMap, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Controller{
		regs:   regs,
		logger: logger,
	}
}

// Configure sets pin as an input or an output.
func (c *Controller) Configure(pin int, mode Mode) error {
	if !ValidPin(pin) {
		c.logger.Printf("configure: invalid pin %d (must be 0-%d)", pin, MaxPin)
		return fmt.Errorf("%w: pin %d", ErrInvalidArgument, pin)
	}
	if mode != Input && mode != Output {
		c.logger.Printf("configure: invalid mode %d (must be 0 or 1)", mode)
		return fmt.Errorf("%w: mode %d", ErrInvalidArgument, mode)
	}

	offset, shift := FunctionSelectAddress(pin)
	err := c.transact("configure", func(r mmap.Registers) {
		value := r.Read32(offset)
		value &^= fselMask << shift
		value |= uint32(mode) << shift
		r.Write32(offset, value)
	})
	if err != nil {
		return err
	}

	c.logger.Printf("configure: pin %d configured as %s", pin, mode)
	return nil
}

// Write drives an output pin high or low. It is a single write to the
// bank's set or clear register, which leaves every other pin alone.
func (c *Controller) Write(pin int, level Level) error {
	if !ValidPin(pin) {
		c.logger.Printf("write: invalid pin %d (must be 0-%d)", pin, MaxPin)
		return fmt.Errorf("%w: pin %d", ErrInvalidArgument, pin)
	}
	if level != Low && level != High {
		c.logger.Printf("write: invalid value %d (must be 0 or 1)", level)
		return fmt.Errorf("%w: value %d", ErrInvalidArgument, level)
	}

	bank, bit := BankedAddress(pin)
	offset := bank.ClearOffset()
	if level == High {
		offset = bank.SetOffset()
	}

	return c.transact("write", func(r mmap.Registers) {
		r.Write32(offset, 1<<bit)
	})
}

// Read returns the current level of pin.
func (c *Controller) Read(pin int) (Level, error) {
	if !ValidPin(pin) {
		c.logger.Printf("read: invalid pin %d (must be 0-%d)", pin, MaxPin)
		return Low, fmt.Errorf("%w: pin %d", ErrInvalidArgument, pin)
	}

	bank, bit := BankedAddress(pin)
	var word uint32
	err := c.transact("read", func(r mmap.Registers) {
		word = r.Read32(bank.LevelOffset())
	})
	if err != nil {
		return Low, err
	}

	level := Level((word >> bit) & 1)
	c.logger.Printf("read: pin %d = %d", pin, level)
	return level, nil
}

// Function returns the raw function select field of pin. Values other
// than Input and Output are alternate functions set up elsewhere.
func (c *Controller) Function(pin int) (Mode, error) {
	if !ValidPin(pin) {
		return Input, fmt.Errorf("%w: pin %d", ErrInvalidArgument, pin)
	}

	offset, shift := FunctionSelectAddress(pin)
	var word uint32
	err := c.transact("function", func(r mmap.Registers) {
		word = r.Read32(offset)
	})
	if err != nil {
		return Input, err
	}
	return Mode((word >> shift) & fselMask), nil
}

func (c *Controller) transact(op string, fn func(mmap.Registers)) error {
	err := c.regs.Transact(func(r mmap.Registers) error {
		fn(r)
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mmap.ErrMap):
		c.logger.Printf("%s: failed to map GPIO memory: %v", op, err)
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	case errors.Is(err, mmap.ErrFault):
		c.logger.Printf("%s: %v", op, err)
		return fmt.Errorf("%w: %w", ErrTransactionFault, err)
	}
	return err
}
