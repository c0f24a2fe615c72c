package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fkcurrie/bcmgpio/pkg/gpio"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    command
		wantErr bool
	}{
		{"configure", []string{"configure", "29", "1"}, command{"configure", []int{29, 1}}, false},
		{"write", []string{"write", "40", "0"}, command{"write", []int{40, 0}}, false},
		{"read", []string{"read", "-1"}, command{"read", []int{-1}}, false},
		{"blink without count", []string{"blink", "29"}, command{"blink", []int{29}}, false},
		{"blink with count", []string{"blink", "29", "3"}, command{"blink", []int{29, 3}}, false},
		{"selftest default pin", []string{"selftest"}, command{"selftest", []int{}}, false},
		{"info", []string{"info", "17"}, command{"info", []int{17}}, false},
		{"no command", nil, command{}, true},
		{"unknown command", []string{"toggle", "4"}, command{}, true},
		{"missing value", []string{"write", "29"}, command{}, true},
		{"extra argument", []string{"read", "29", "1"}, command{}, true},
		{"not a number", []string{"configure", "29", "out"}, command{}, true},
		{"missing pin", []string{"info"}, command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommand(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

type recordingPins struct {
	calls []string
	err   error
}

func (p *recordingPins) Configure(pin int, mode gpio.Mode) error {
	p.calls = append(p.calls, "configure")
	return p.err
}

func (p *recordingPins) Write(pin int, level gpio.Level) error {
	p.calls = append(p.calls, "write")
	return p.err
}

func (p *recordingPins) Read(pin int) (gpio.Level, error) {
	p.calls = append(p.calls, "read")
	return gpio.High, p.err
}

func TestRunReturnsErrors(t *testing.T) {
	pins := &recordingPins{err: gpio.ErrInvalidArgument}

	cmd, err := parseCommand([]string{"write", "54", "1"})
	if err != nil {
		t.Fatalf("parseCommand() error = %v", err)
	}
	if err := run(context.Background(), pins, cmd, time.Millisecond); !errors.Is(err, gpio.ErrInvalidArgument) {
		t.Errorf("run() error = %v, want ErrInvalidArgument", err)
	}
	if !reflect.DeepEqual(pins.calls, []string{"write"}) {
		t.Errorf("calls = %v, want [write]", pins.calls)
	}
}

func TestRunBlinkCount(t *testing.T) {
	pins := &recordingPins{}

	cmd, err := parseCommand([]string{"blink", "29", "2"})
	if err != nil {
		t.Fatalf("parseCommand() error = %v", err)
	}
	if err := run(context.Background(), pins, cmd, time.Millisecond); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(pins.calls) == 0 || pins.calls[0] != "configure" {
		t.Errorf("calls = %v, want configure first", pins.calls)
	}
}
