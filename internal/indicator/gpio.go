package indicator

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIOLine drives an LED wired to a GPIO character device line.
type GPIOLine struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

// OpenGPIOLine requests offset on chipName as an output, initially low.
func OpenGPIOLine(chipName string, offset int) (*GPIOLine, error) {
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiod.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &GPIOLine{chip: chip, line: line}, nil
}

// Set drives the line high when on.
func (g *GPIOLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

// Close releases the line and the chip.
func (g *GPIOLine) Close() error {
	lerr := g.line.Close()
	cerr := g.chip.Close()
	if lerr != nil {
		return fmt.Errorf("close line: %w", lerr)
	}
	if cerr != nil {
		return fmt.Errorf("close chip: %w", cerr)
	}
	return nil
}

// Discard is an Output for boards without an activity LED.
type Discard struct{}

func (Discard) Set(bool) error { return nil }
