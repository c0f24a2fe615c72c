// Package dispatch routes numbered calls into the pin operations and
// returns their results as integers, zero or a value on success and a
// negated errno on failure.
package dispatch

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/fkcurrie/bcmgpio/internal/types"
	"github.com/fkcurrie/bcmgpio/pkg/gpio"
)

// Call numbers of the pin operations
const (
	SysConfigure = 464
	SysWrite     = 465
	SysRead      = 466
)

var numbers = map[types.Op]int{
	types.OpConfigure: SysConfigure,
	types.OpWrite:     SysWrite,
	types.OpRead:      SysRead,
}

// Number returns the call number of op.
func Number(op types.Op) (int, bool) {
	nr, ok := numbers[op]
	return nr, ok
}

// Table dispatches calls to a controller
type Table struct {
	ctrl *gpio.Controller
}

// NewTable creates a call table on ctrl.
func NewTable(ctrl *gpio.Controller) *Table {
	return &Table{ctrl: ctrl}
}

// Call invokes call nr with args. Missing arguments are rejected like
// out-of-range ones.
func (t *Table) Call(nr int, args ...int) int {
	switch nr {
	case SysConfigure:
		if len(args) != 2 {
			return -int(unix.EINVAL)
		}
		return Errno(t.ctrl.Configure(args[0], gpio.Mode(args[1])))
	case SysWrite:
		if len(args) != 2 {
			return -int(unix.EINVAL)
		}
		return Errno(t.ctrl.Write(args[0], gpio.Level(args[1])))
	case SysRead:
		if len(args) != 1 {
			return -int(unix.EINVAL)
		}
		level, err := t.ctrl.Read(args[0])
		if err != nil {
			return Errno(err)
		}
		return int(level)
	}
	return -int(unix.ENOSYS)
}

// Serve answers a request.
func (t *Table) Serve(req types.Request) types.Response {
	resp := types.Response{ID: req.ID}

	nr, ok := Number(req.Op)
	if !ok {
		resp.Result = -int(unix.ENOSYS)
	} else if req.Op == types.OpRead {
		resp.Result = t.Call(nr, req.Pin)
	} else {
		resp.Result = t.Call(nr, req.Pin, req.Arg)
	}

	if resp.Result < 0 {
		resp.Error = unix.Errno(-resp.Result).Error()
	}
	return resp
}

// Errno returns the negated errno for err, or 0 for nil.
func Errno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, gpio.ErrInvalidArgument):
		return -int(unix.EINVAL)
	case errors.Is(err, gpio.ErrResourceUnavailable):
		return -int(unix.ENOMEM)
	case errors.Is(err, gpio.ErrTransactionFault):
		return -int(unix.EFAULT)
	}
	return -int(unix.EIO)
}

// Err turns a call result back into an error, nil for results >= 0.
func Err(result int) error {
	if result >= 0 {
		return nil
	}
	errno := unix.Errno(-result)
	switch errno {
	case unix.EINVAL:
		return fmt.Errorf("%w (%v)", gpio.ErrInvalidArgument, errno)
	case unix.ENOMEM:
		return fmt.Errorf("%w (%v)", gpio.ErrResourceUnavailable, errno)
	case unix.EFAULT:
		return fmt.Errorf("%w (%v)", gpio.ErrTransactionFault, errno)
	}
	return errno
}
