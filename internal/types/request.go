package types

// Op names one of the pin operations served by gpiod
type Op string

const (
	OpConfigure Op = "configure"
	OpWrite     Op = "write"
	OpRead      Op = "read"
)

// Request is a single pin operation sent to gpiod.
// Arg carries the mode for configure and the level for write.
type Request struct {
	ID  uint64 `json:"id"`
	Op  Op     `json:"op"`
	Pin int    `json:"pin"`
	Arg int    `json:"arg,omitempty"`
}

// Response carries the call result: zero or the level read on success,
// a negated errno on failure.
type Response struct {
	ID     uint64 `json:"id"`
	Result int    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Health is reported by gpiod's health endpoint
type Health struct {
	Mapped       bool   `json:"mapped"`
	Base         string `json:"base"`
	Maps         uint64 `json:"maps"`
	Unmaps       uint64 `json:"unmaps"`
	Transactions uint64 `json:"transactions"`
}
