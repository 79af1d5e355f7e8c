package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// ParseFunc turns a raw command reply into samples. It must be pure.
type ParseFunc func(raw string) ([]types.Sample, error)

// Definition is one catalog entry.
type Definition struct {
	Name    string
	Command string
	Parser  ParseFunc
	Metrics []types.Desc
}

// Parse runs the definition's parser and annotates parse errors with the
// query name and raw payload.
func (d Definition) Parse(raw string) ([]types.Sample, error) {
	samples, err := d.Parser(raw)
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Query = d.Name
		pe.Payload = raw
	}
	return samples, err
}

// ParseError reports a reply that did not match the expected shape.
type ParseError struct {
	Query   string
	Payload string
	Reason  string
}

func (e *ParseError) Error() string {
	payload := e.Payload
	if len(payload) > 120 {
		payload = payload[:120] + "..."
	}
	return fmt.Sprintf("query %s: %s (payload %q)", e.Query, e.Reason, payload)
}

func parseErr(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// catalog is the fixed, ordered query table.
var catalog = []Definition{
	{
		Name:    "list",
		Command: "list",
		Parser:  parseList,
		Metrics: []types.Desc{
			{Name: "players_online", Help: "Number of players currently online."},
			{Name: "players_max", Help: "Maximum number of players the server admits."},
			{Name: "player_online", Help: "Set to 1 for every player currently online.", Labels: []string{"player"}},
		},
	},
	{
		Name:    "tps",
		Command: "tps",
		Parser:  parseTPS,
		Metrics: []types.Desc{
			{Name: "tps", Help: "Server ticks per second averaged over a window.", Labels: []string{"window"}},
		},
	},
	{
		Name:    "mspt",
		Command: "mspt",
		Parser:  parseMSPT,
		Metrics: []types.Desc{
			{Name: "mspt_milliseconds", Help: "Milliseconds per server tick over a window.", Labels: []string{"window", "stat"}},
		},
	},
	{
		Name:    "forge_tps",
		Command: "forge tps",
		Parser:  parseForgeTPS,
		Metrics: []types.Desc{
			{Name: "dimension_tps", Help: "Mean ticks per second of a dimension.", Labels: []string{"dimension"}},
			{Name: "dimension_tick_time_milliseconds", Help: "Mean tick time of a dimension.", Labels: []string{"dimension"}},
			{Name: "overall_tps", Help: "Mean ticks per second across all dimensions."},
			{Name: "overall_tick_time_milliseconds", Help: "Mean tick time across all dimensions."},
		},
	},
	{
		Name:    "worldborder",
		Command: "worldborder get",
		Parser:  parseWorldBorder,
		Metrics: []types.Desc{
			{Name: "world_border_width_blocks", Help: "Current width of the world border."},
		},
	},
}

// DefaultQueries are enabled when the configuration names none. They work
// on vanilla and Paper servers alike.
var DefaultQueries = []string{"list", "tps"}

// Catalog returns a copy of the full query table in catalog order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the names of all catalog entries.
func Names() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.Name
	}
	return out
}

// Lookup returns the definitions with the given names, in catalog order.
// Unknown names are an error.
func Lookup(names ...string) ([]Definition, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Definition
	for _, d := range catalog {
		if want[d.Name] {
			out = append(out, d)
			delete(want, d.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for _, n := range names {
			if want[n] {
				unknown = append(unknown, n)
				delete(want, n)
			}
		}
		return nil, fmt.Errorf("query: unknown queries %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}

// Descs returns every metric declared by defs.
func Descs(defs []Definition) []types.Desc {
	var out []types.Desc
	for _, d := range defs {
		out = append(out, d.Metrics...)
	}
	return out
}
