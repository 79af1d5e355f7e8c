package query

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// values indexes samples by series key for easy assertions.
func values(samples []types.Sample) map[string]float64 {
	out := make(map[string]float64, len(samples))
	for _, s := range samples {
		out[s.Key()] = s.Value
	}
	return out
}

// players returns the sorted player label values of player_online samples.
func players(t *testing.T, samples []types.Sample) []string {
	t.Helper()
	var out []string
	for _, s := range samples {
		if s.Name == "player_online" {
			if s.Value != 1 {
				t.Errorf("player_online{player=%q} = %v, want 1", s.Labels["player"], s.Value)
			}
			out = append(out, s.Labels["player"])
		}
	}
	sort.Strings(out)
	return out
}

func def(t *testing.T, name string) Definition {
	t.Helper()
	defs, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return defs[0]
}

// --- list -------------------------------------------------------------------

func TestParseList_CountAndPlayers(t *testing.T) {
	samples, err := def(t, "list").Parse("There are 3 of a max of 20 players online: Alice, Bob, Carol")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := values(samples)
	if v["players_online"] != 3 {
		t.Errorf("players_online = %v, want 3", v["players_online"])
	}
	if v["players_max"] != 20 {
		t.Errorf("players_max = %v, want 20", v["players_max"])
	}
	if got := strings.Join(players(t, samples), ","); got != "Alice,Bob,Carol" {
		t.Errorf("players = %s, want Alice,Bob,Carol", got)
	}
}

func TestParseList_Variants(t *testing.T) {
	long := strings.Repeat("A", 100)
	tests := []struct {
		name    string
		raw     string
		online  float64
		players []string
	}{
		{"no players", "There are 0 of a max of 20 players online:", 0, nil},
		{"extra whitespace", "There are 2 of a max of 20 players online:  Velisal  , The_Spartan94  ", 2, []string{"The_Spartan94", "Velisal"}},
		{"underscores", "There are 2 of a max of 20 players online: Emzy_matt, The_Spartan94", 2, []string{"Emzy_matt", "The_Spartan94"}},
		{"long name", "There are 1 of a max of 20 players online: " + long, 1, []string{long}},
		{"slash format", "There are 2/20 players online:\nCeles, Silnogard", 2, []string{"Celes", "Silnogard"}},
		{"colour codes", "§6There are §c1§6 of a max of §c20§6 players online: §fSteve", 1, []string{"Steve"}},
		{"paper sentence", "There are 4 out of maximum 50 players online.", 4, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := def(t, "list").Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := values(samples)["players_online"]; got != tc.online {
				t.Errorf("players_online = %v, want %v", got, tc.online)
			}
			got := players(t, samples)
			if strings.Join(got, ",") != strings.Join(tc.players, ",") {
				t.Errorf("players = %v, want %v", got, tc.players)
			}
		})
	}
}

func TestParseList_MissingColonKeepsCount(t *testing.T) {
	samples, err := def(t, "list").Parse("There are 2 of a max of 20 players online\nLaxray\nFra360")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := values(samples)["players_online"]; got != 2 {
		t.Errorf("players_online = %v, want 2", got)
	}
	if p := players(t, samples); len(p) != 0 {
		t.Errorf("players = %v, want none without a colon", p)
	}
}

func TestParseList_Unrecognised(t *testing.T) {
	for _, raw := range []string{"", "Ther are 1 of a max of 20 players online:\nCeles", "Unknown command"} {
		samples, err := def(t, "list").Parse(raw)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q) err = %v, want *ParseError", raw, err)
		}
		if pe.Query != "list" || pe.Payload != raw {
			t.Errorf("ParseError = %+v, want query list and raw payload", pe)
		}
		if len(samples) != 0 {
			t.Errorf("Parse(%q) returned %d samples, want 0", raw, len(samples))
		}
	}
}

// --- tps --------------------------------------------------------------------

func TestParseTPS(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]float64
	}{
		{
			"plain", "TPS: 20.0, 19.8, 19.5",
			map[string]float64{`tps{window="1m"}`: 20, `tps{window="5m"}`: 19.8, `tps{window="15m"}`: 19.5},
		},
		{
			"paper", "§6TPS from last 1m, 5m, 15m: §a*20.0, §a20.0, §a18.25",
			map[string]float64{`tps{window="1m"}`: 20, `tps{window="5m"}`: 20, `tps{window="15m"}`: 18.25},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := def(t, "tps").Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got := values(samples)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d samples, want %d: %v", len(got), len(tc.want), got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestParseTPS_PartialPrefix(t *testing.T) {
	samples, err := def(t, "tps").Parse("TPS: 20.0, oops, 19.5")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if len(samples) != 1 || samples[0].Labels["window"] != "1m" {
		t.Errorf("samples = %+v, want only the 1m window", samples)
	}
}

func TestParseTPS_VanillaUnknownCommand(t *testing.T) {
	_, err := def(t, "tps").Parse("Unknown or incomplete command, see below for error\ntps<--[HERE]")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

// --- mspt -------------------------------------------------------------------

func TestParseMSPT(t *testing.T) {
	raw := "§6Server tick times §e(§7avg§e/§7min§e/§7max§e)§6 from last 5s§7,§6 10s§7,§6 1m§e:\n" +
		"§6◴ §a2.1§7/§a1.3§7/§a5.0§e, §a2.0§7/§a1.1§7/§a6.2§e, §a2.2§7/§a1.0§7/§a9.8"
	samples, err := def(t, "mspt").Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(samples) != 9 {
		t.Fatalf("got %d samples, want 9", len(samples))
	}
	v := values(samples)
	if got := v[`mspt_milliseconds{stat="max",window="1m"}`]; got != 9.8 {
		t.Errorf("1m max = %v, want 9.8", got)
	}
	if got := v[`mspt_milliseconds{stat="avg",window="5s"}`]; got != 2.1 {
		t.Errorf("5s avg = %v, want 2.1", got)
	}
}

func TestParseMSPT_Truncated(t *testing.T) {
	samples, err := def(t, "mspt").Parse("Server tick times (avg/min/max) from last 5s, 10s, 1m:\n◴ 2.1/1.3/5.0")
	if err == nil {
		t.Fatal("expected ParseError for a single window")
	}
	if len(samples) != 3 {
		t.Errorf("got %d samples, want the 3 of the 5s window", len(samples))
	}
}

// --- forge tps --------------------------------------------------------------

func TestParseForgeTPS_Legacy(t *testing.T) {
	raw := "Dim  0 (overworld) : Mean tick time: 0.713 ms. Mean TPS: 20.000\n" +
		"Dim -1 (the_nether) : Mean tick time: 0.201 ms. Mean TPS: 20.000\n" +
		"Overall : Mean tick time: 0.934 ms. Mean TPS: 19.500"
	samples, err := def(t, "forge_tps").Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := values(samples)
	if got := v[`dimension_tick_time_milliseconds{dimension="overworld"}`]; got != 0.713 {
		t.Errorf("overworld tick time = %v, want 0.713", got)
	}
	if got := v[`dimension_tps{dimension="the_nether"}`]; got != 20 {
		t.Errorf("nether tps = %v, want 20", got)
	}
	if got := v["overall_tps"]; got != 19.5 {
		t.Errorf("overall_tps = %v, want 19.5", got)
	}
}

func TestParseForgeTPS_Modern(t *testing.T) {
	raw := "minecraft:overworld: 20.000 TPS (0.713 ms/tick)\n" +
		"minecraft:the_end: 20.000 TPS (0.020 ms/tick)\n" +
		"Overall: 19.900 TPS (0.934 ms/tick)"
	samples, err := def(t, "forge_tps").Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := values(samples)
	if got := v[`dimension_tps{dimension="minecraft:overworld"}`]; got != 20 {
		t.Errorf("overworld tps = %v, want 20", got)
	}
	if got := v["overall_tick_time_milliseconds"]; got != 0.934 {
		t.Errorf("overall tick time = %v, want 0.934", got)
	}
}

func TestParseForgeTPS_NotForge(t *testing.T) {
	if _, err := def(t, "forge_tps").Parse("Unknown or incomplete command"); err == nil {
		t.Fatal("expected ParseError")
	}
}

// --- worldborder ------------------------------------------------------------

func TestParseWorldBorder(t *testing.T) {
	for _, raw := range []string{
		"The world border is currently 59999968 block(s) wide",
		"The world border is currently 59,999,968.0 blocks wide",
	} {
		samples, err := def(t, "worldborder").Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		if got := values(samples)["world_border_width_blocks"]; got != 59999968 {
			t.Errorf("Parse(%q) width = %v, want 59999968", raw, got)
		}
	}
}

// --- catalog ----------------------------------------------------------------

func TestLookup_CatalogOrder(t *testing.T) {
	defs, err := Lookup("tps", "list")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "list" || defs[1].Name != "tps" {
		t.Errorf("Lookup order = %v, want [list tps]", []string{defs[0].Name, defs[1].Name})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("list", "weather", "weather")
	if err == nil || !strings.Contains(err.Error(), "weather") {
		t.Fatalf("err = %v, want unknown query error naming weather", err)
	}
}

func TestDefaultQueriesExist(t *testing.T) {
	if _, err := Lookup(DefaultQueries...); err != nil {
		t.Fatalf("DefaultQueries: %v", err)
	}
}

// Every sample a parser emits must be declared by its definition, with the
// declared label keys.
func TestParsersEmitOnlyDeclaredMetrics(t *testing.T) {
	fixtures := map[string]string{
		"list":        "There are 2 of a max of 20 players online: a, b",
		"tps":         "TPS: 20.0, 19.8, 19.5",
		"mspt":        "Server tick times (avg/min/max) from last 5s, 10s, 1m:\n◴ 1/2/3, 4/5/6, 7/8/9",
		"forge_tps":   "minecraft:overworld: 20.000 TPS (0.713 ms/tick)\nOverall: 20.000 TPS (0.7 ms/tick)",
		"worldborder": "The world border is currently 100 block(s) wide",
	}
	for _, d := range Catalog() {
		raw, ok := fixtures[d.Name]
		if !ok {
			t.Errorf("no fixture for catalog entry %q", d.Name)
			continue
		}
		declared := make(map[string][]string)
		for _, m := range d.Metrics {
			declared[m.Name] = m.Labels
		}
		samples, err := d.Parse(raw)
		if err != nil {
			t.Errorf("%s: Parse: %v", d.Name, err)
		}
		for _, s := range samples {
			labels, ok := declared[s.Name]
			if !ok {
				t.Errorf("%s emitted undeclared metric %q", d.Name, s.Name)
				continue
			}
			if len(labels) != len(s.Labels) {
				t.Errorf("%s: %s has labels %v, declared %v", d.Name, s.Name, s.Labels, labels)
			}
			for _, l := range labels {
				if _, ok := s.Labels[l]; !ok {
					t.Errorf("%s: %s missing label %q", d.Name, s.Name, l)
				}
			}
		}
	}
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{Query: "list", Payload: strings.Repeat("x", 500), Reason: "bad"}
	msg := err.Error()
	if !strings.Contains(msg, "query list: bad") {
		t.Errorf("Error() = %q", msg)
	}
	if len(msg) > 200 {
		t.Errorf("Error() is %d bytes, want the payload truncated", len(msg))
	}
}
