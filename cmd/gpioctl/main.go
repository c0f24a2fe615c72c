package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fkcurrie/bcmgpio/internal/client"
	"github.com/fkcurrie/bcmgpio/internal/config"
	"github.com/fkcurrie/bcmgpio/internal/lineinfo"
	"github.com/fkcurrie/bcmgpio/internal/selftest"
	"github.com/fkcurrie/bcmgpio/pkg/gpio"
	"github.com/fkcurrie/bcmgpio/pkg/mmap"
)

const usage = `usage: gpioctl [flags] COMMAND [ARGS]

commands:
  configure PIN MODE      set PIN as input (0) or output (1)
  write PIN VALUE         drive PIN low (0) or high (1)
  read PIN                print the level of PIN
  blink PIN [COUNT]       toggle PIN every -period, forever if COUNT is 0
  selftest [PIN]          run the operation checks, using PIN as output
  info PIN                print the kernel's view of PIN

flags:
`

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	addr := flag.String("addr", "", "gpiod address (default from config)")
	local := flag.Bool("local", false, "Drive the registers in-process instead of through gpiod")
	verbose := flag.Bool("v", false, "Log register operations (with -local)")
	period := flag.Duration("period", time.Second, "Blink period")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintf(flag.CommandLine.Output(), "gpioctl: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *addr == "" {
		*addr = cfg.Server.Listen
	}

	// info talks to the character device and needs no pin backend
	if cmd.name == "info" {
		info, err := lineinfo.Describe(cfg.GPIO.Chip, cmd.args[0])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(info)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = execute(ctx, cfg, cmd, *addr, *local, *verbose, *period)
	stop()
	if err != nil {
		log.Printf("%s: %v", cmd.name, err)
		os.Exit(1)
	}
}

// execute sets up the pin backend and runs cmd on it. Everything it sets up
// is released before it returns.
func execute(ctx context.Context, cfg *config.Config, cmd command, addr string, local, verbose bool, period time.Duration) error {
	var pins selftest.Pins
	if local {
		regs := mmap.NewRegisterMap(mmap.NewDeviceMapper(cfg.GPIO.Device), cfg.Base())
		defer regs.Release()

		logger := log.New(io.Discard, "", 0)
		if verbose {
			logger = log.New(os.Stderr, "gpio: ", 0)
		}
		pins = gpio.NewController(regs, logger)
	} else {
		c, err := client.Dial(ctx, addr)
		if err != nil {
			return err
		}
		defer c.Close()
		pins = c
	}
	return run(ctx, pins, cmd, period)
}

// command is a parsed command line. args holds the integer arguments.
type command struct {
	name string
	args []int
}

// Minimum and maximum argument counts per command
var arity = map[string][2]int{
	"configure": {2, 2},
	"write":     {2, 2},
	"read":      {1, 1},
	"blink":     {1, 2},
	"selftest":  {0, 1},
	"info":      {1, 1},
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("no command")
	}
	name, rest := args[0], args[1:]
	n, ok := arity[name]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q", name)
	}
	if len(rest) < n[0] || len(rest) > n[1] {
		return command{}, fmt.Errorf("%s: got %d arguments, want %d to %d", name, len(rest), n[0], n[1])
	}

	cmd := command{name: name, args: make([]int, len(rest))}
	for i, arg := range rest {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return command{}, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
		cmd.args[i] = v
	}
	return cmd, nil
}

// optional returns argument i of cmd, or def when it was not given.
func (cmd command) optional(i, def int) int {
	if i < len(cmd.args) {
		return cmd.args[i]
	}
	return def
}

func run(ctx context.Context, pins selftest.Pins, cmd command, period time.Duration) error {
	switch cmd.name {
	case "configure":
		return pins.Configure(cmd.args[0], gpio.Mode(cmd.args[1]))
	case "write":
		return pins.Write(cmd.args[0], gpio.Level(cmd.args[1]))
	case "read":
		level, err := pins.Read(cmd.args[0])
		if err != nil {
			return err
		}
		fmt.Println(int(level))
		return nil
	case "blink":
		pin := cmd.args[0]
		log.Printf("Blinking pin %d. Ctrl+C to stop.", pin)
		return selftest.Blink(ctx, pins, pin, period, cmd.optional(1, 0))
	case "selftest":
		res := selftest.Run(pins, cmd.optional(0, 29), 10*time.Millisecond, os.Stdout)
		if !res.OK() {
			return fmt.Errorf("%d checks failed", res.Failed)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.name)
}
