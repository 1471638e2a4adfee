package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gpiolcd/internal/lcd"
)

const (
	defaultRows = 2
	defaultCols = 16
)

// Config describes the display wiring. Every key is optional; unset pins
// fall back to the built-in defaults of the classic Raspberry Pi wiring.
type Config struct {
	Pins struct {
		EN  *int `yaml:"en"`
		RS  *int `yaml:"rs"`
		D4  *int `yaml:"d4"`
		D5  *int `yaml:"d5"`
		D6  *int `yaml:"d6"`
		D7  *int `yaml:"d7"`
		EN2 *int `yaml:"en2"`
		BL  *int `yaml:"bl"`
	} `yaml:"pins"`
	Controllers int  `yaml:"controllers"`
	Backlight   bool `yaml:"backlight"`
	Rows        int  `yaml:"rows"`
	Cols        int  `yaml:"cols"`
}

func getConfig(path string) (*Config, error) {
	if path == "" {
		return parseConfig(nil)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(content)
}

func parseConfig(content []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, err
	}

	if c.Controllers == 0 {
		c.Controllers = 1
	}
	if c.Rows == 0 {
		c.Rows = defaultRows
	}
	if c.Cols == 0 {
		c.Cols = defaultCols
	}
	if c.Controllers < 1 || c.Controllers > 2 {
		return nil, fmt.Errorf("controllers must be 1 or 2, got %d", c.Controllers)
	}
	if c.Rows < 1 || c.Rows > 4 {
		return nil, fmt.Errorf("rows must be between 1 and 4, got %d", c.Rows)
	}
	if c.Cols < 1 || c.Cols > 40 {
		return nil, fmt.Errorf("cols must be between 1 and 40, got %d", c.Cols)
	}

	return c, nil
}

// pinout merges the configured pins over the default pinout.
func (c *Config) pinout() *lcd.Pinout {
	p := lcd.DefaultPinout
	override := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	override(&p.EN, c.Pins.EN)
	override(&p.RS, c.Pins.RS)
	override(&p.D4, c.Pins.D4)
	override(&p.D5, c.Pins.D5)
	override(&p.D6, c.Pins.D6)
	override(&p.D7, c.Pins.D7)
	override(&p.EN2, c.Pins.EN2)
	override(&p.BL, c.Pins.BL)
	return &p
}
