// Package lineinfo reports the kernel's view of a GPIO line through the
// character device, without requesting the line.
package lineinfo

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Info is the kernel's description of one line
type Info struct {
	Chip      string
	Pin       int
	Name      string
	Consumer  string
	Used      bool
	Direction string
	ActiveLow bool
}

func (i Info) String() string {
	used := "unused"
	if i.Used {
		used = fmt.Sprintf("used by %q", i.Consumer)
	}
	name := i.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s line %d (%s): %s, %s", i.Chip, i.Pin, name, i.Direction, used)
}

// Describe returns the kernel's description of pin on chip.
func Describe(chip string, pin int) (Info, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open %s: %w", chip, err)
	}
	defer c.Close()

	li, err := c.LineInfo(pin)
	if err != nil {
		return Info{}, fmt.Errorf("failed to get info for %s line %d: %w", chip, pin, err)
	}
	return fromLineInfo(chip, li), nil
}

func fromLineInfo(chip string, li gpiocdev.LineInfo) Info {
	return Info{
		Chip:      chip,
		Pin:       li.Offset,
		Name:      li.Name,
		Consumer:  li.Consumer,
		Used:      li.Used,
		Direction: direction(li.Config.Direction),
		ActiveLow: li.Config.ActiveLow,
	}
}

func direction(d gpiocdev.LineDirection) string {
	switch d {
	case gpiocdev.LineDirectionInput:
		return "input"
	case gpiocdev.LineDirectionOutput:
		return "output"
	}
	return "unknown"
}
