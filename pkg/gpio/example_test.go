package gpio_test

import (
	"fmt"

	"github.com/fkcurrie/bcmgpio/pkg/gpio"
	"github.com/fkcurrie/bcmgpio/pkg/mmap"
	"github.com/fkcurrie/bcmgpio/pkg/mmap/mmaptest"
)

func Example() {
	// On a Pi this would be mmap.NewDeviceMapper(mmap.GPIOMemDevice).
	regs := mmap.NewRegisterMap(&mmaptest.Mapper{}, 0x3F200000)
	defer regs.Release()

	ctrl := gpio.NewController(regs, nil)

	if err := ctrl.Configure(29, gpio.Output); err != nil {
		fmt.Printf("Failed to configure pin: %v\n", err)
		return
	}
	if err := ctrl.Write(29, gpio.High); err != nil {
		fmt.Printf("Failed to write pin: %v\n", err)
		return
	}

	mode, _ := ctrl.Function(29)
	fmt.Println("pin 29:", mode)

	err := ctrl.Configure(54, gpio.Output)
	fmt.Println(err)

	// Output:
	// pin 29: OUTPUT
	// gpio: invalid argument: pin 54
}
