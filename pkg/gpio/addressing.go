package gpio

// Register offsets within the GPIO block
const (
	GPFSEL0 = 0x00 // pins 0-9
	GPFSEL1 = 0x04 // pins 10-19
	GPFSEL2 = 0x08 // pins 20-29
	GPFSEL3 = 0x0C // pins 30-39
	GPFSEL4 = 0x10 // pins 40-49
	GPFSEL5 = 0x14 // pins 50-53

	GPSET0 = 0x1C
	GPSET1 = 0x20
	GPCLR0 = 0x28
	GPCLR1 = 0x2C
	GPLEV0 = 0x34
	GPLEV1 = 0x38
)

const (
	// MaxPin is the highest pin index on the controller.
	MaxPin = 53

	// NumPins is the number of pins on the controller.
	NumPins = MaxPin + 1

	fselBits = 3
	fselMask = 1<<fselBits - 1
	fselPins = 10
)

// Bank selects between the register pairs serving pins 0-31 and 32-53.
type Bank int

const (
	BankLow Bank = iota
	BankHigh
)

// SetOffset returns the offset of the bank's set register.
func (b Bank) SetOffset() uint32 {
	if b == BankHigh {
		return GPSET1
	}
	return GPSET0
}

// ClearOffset returns the offset of the bank's clear register.
func (b Bank) ClearOffset() uint32 {
	if b == BankHigh {
		return GPCLR1
	}
	return GPCLR0
}

// LevelOffset returns the offset of the bank's level register.
func (b Bank) LevelOffset() uint32 {
	if b == BankHigh {
		return GPLEV1
	}
	return GPLEV0
}

func (b Bank) String() string {
	if b == BankHigh {
		return "HIGH"
	}
	return "LOW"
}

// ValidPin reports whether pin is a pin index on the controller.
func ValidPin(pin int) bool {
	return pin >= 0 && pin <= MaxPin
}

// FunctionSelectAddress returns the offset of the function select register
// holding pin's 3-bit field, and the field's shift within it.
// pin must be valid.
func FunctionSelectAddress(pin int) (offset, shift uint32) {
	offset = uint32(pin/fselPins) * 4
	shift = uint32(pin%fselPins) * fselBits
	return offset, shift
}

// BankedAddress returns the set/clear/level bank serving pin and the pin's
// bit position within that bank's registers. pin must be valid.
func BankedAddress(pin int) (bank Bank, bit uint32) {
	if pin >= 32 {
		bank = BankHigh
	}
	return bank, uint32(pin % 32)
}
