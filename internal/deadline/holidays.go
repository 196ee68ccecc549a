package deadline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// HolidayFile is the YAML layout of a holiday calendar:
//
//	holidays:
//	  - date: "2025-01-01"
//	    name: 元日
type HolidayFile struct {
	Holidays []Holiday `yaml:"holidays"`
}

// Holiday is one non-business day
type Holiday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// LoadCalendar reads a holiday file. An empty path yields a weekday-only calendar.
// Unknown fields fail the load so typos never silently drop a holiday.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return NewCalendar(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday file: %w", err)
	}
	return ParseCalendar(data)
}

// ParseCalendar decodes holiday YAML
func ParseCalendar(data []byte) (*Calendar, error) {
	var f HolidayFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode holiday file: %w", err)
	}

	cal := NewCalendar()
	for i, h := range f.Holidays {
		d, err := ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holidays[%d]: %w", i, err)
		}
		cal.holidays[d] = struct{}{}
	}
	return cal, nil
}
