package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeYAML goes through JSON first so YAML keys match the API field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func render(w io.Writer, c *chart.Chart, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return writeText(w, c)
	case "json":
		return writeJSON(w, c)
	case "yaml", "yml":
		return writeYAML(w, c)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeText(w io.Writer, c *chart.Chart) error {
	line := func(label string, p *chart.Placement) {
		if p == nil {
			fmt.Fprintf(w, "%-10s unknown\n", label)
			return
		}
		fmt.Fprintf(w, "%-10s %s\n", label, p)
	}

	line("Sun", &c.Sun)
	line("Moon", &c.Moon)
	line("Rising", c.Rising)
	line("Midheaven", c.Midheaven)

	fmt.Fprintf(w, "%-10s %s\n", "Instant", c.Instant.Format("2006-01-02 15:04:05 MST"))
	if c.Timezone != "" {
		fmt.Fprintf(w, "%-10s %s (%s)\n", "Timezone", c.Timezone, c.TimezoneSource)
	}
	fmt.Fprintf(w, "%-10s %s\n", "Precision", c.Precision)
	fmt.Fprintf(w, "%-10s %s\n", "Sect", c.Sect)
	if len(c.Warnings) > 0 {
		fmt.Fprintf(w, "%-10s %s\n", "Warnings", strings.Join(c.Warnings, ", "))
	}
	return nil
}
