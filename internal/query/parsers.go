package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// formatCode matches Minecraft's section-sign colour and style codes.
var formatCode = regexp.MustCompile(`§.`)

func clean(raw string) string {
	return strings.TrimSpace(formatCode.ReplaceAllString(raw, ""))
}

func sample(name string, value float64, labels ...string) types.Sample {
	s := types.Sample{Name: name, Value: value}
	if len(labels) > 0 {
		s.Labels = make(map[string]string, len(labels)/2)
		for i := 0; i+1 < len(labels); i += 2 {
			s.Labels[labels[i]] = labels[i+1]
		}
	}
	return s
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "*")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// --- list -------------------------------------------------------------------

// listHeader matches the first line of the vanilla, Bukkit and Paper replies:
//
//	There are 3 of a max of 20 players online: a, b, c
//	There are 3/20 players online:
//	There are 3 out of maximum 20 players online.
var listHeader = regexp.MustCompile(
	`^There are (\d+)(?: of a max(?: of)? | out of maximum |/)(\d+) players online(:|\.)?(.*)$`)

func parseList(raw string) ([]types.Sample, error) {
	text := clean(raw)
	if text == "" {
		return nil, parseErr("empty reply")
	}

	header, rest, _ := strings.Cut(text, "\n")
	m := listHeader.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return nil, parseErr("unrecognised player list header")
	}
	online, _ := strconv.ParseFloat(m[1], 64)
	capacity, _ := strconv.ParseFloat(m[2], 64)
	out := []types.Sample{
		sample("players_online", online),
		sample("players_max", capacity),
	}

	// Names are only trusted after "online:"; some servers put them on the
	// following line.
	if m[3] != ":" {
		return out, nil
	}
	names := m[4]
	if strings.TrimSpace(names) == "" {
		names = rest
	}

	seen := make(map[string]bool)
	for _, name := range strings.FieldsFunc(names, func(r rune) bool { return r == ',' || r == '\n' }) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, sample("player_online", 1, "player", name))
	}
	return out, nil
}

// --- tps --------------------------------------------------------------------

var tpsWindows = []string{"1m", "5m", "15m"}

// parseTPS reads "TPS: 20.0, 19.8, 19.5" and Paper's
// "TPS from last 1m, 5m, 15m: *20.0, 19.8, 19.5".
func parseTPS(raw string) ([]types.Sample, error) {
	text := clean(raw)
	i := strings.LastIndexByte(text, ':')
	if !strings.Contains(text, "TPS") || i < 0 {
		return nil, parseErr("no TPS values in reply")
	}

	fields := strings.Split(text[i+1:], ",")
	var out []types.Sample
	for n, f := range fields {
		if n == len(tpsWindows) {
			break
		}
		v, ok := parseNumber(f)
		if !ok {
			return out, parseErr("bad TPS value %q for window %s", strings.TrimSpace(f), tpsWindows[n])
		}
		out = append(out, sample("tps", v, "window", tpsWindows[n]))
	}
	if len(out) < len(tpsWindows) {
		return out, parseErr("got %d TPS values, want %d", len(out), len(tpsWindows))
	}
	return out, nil
}

// --- mspt -------------------------------------------------------------------

var (
	msptWindows = []string{"5s", "10s", "1m"}
	msptStats   = []string{"avg", "min", "max"}
	msptTriple  = regexp.MustCompile(`(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)`)
)

// parseMSPT reads Paper's tick time report:
//
//	Server tick times (avg/min/max) from last 5s, 10s, 1m:
//	◴ 2.1/1.3/5.0, 2.0/1.1/6.2, 2.2/1.0/9.8
func parseMSPT(raw string) ([]types.Sample, error) {
	text := clean(raw)
	i := strings.LastIndexByte(text, ':')
	if !strings.Contains(text, "tick times") || i < 0 {
		return nil, parseErr("no tick time report in reply")
	}

	triples := msptTriple.FindAllStringSubmatch(text[i+1:], len(msptWindows))
	var out []types.Sample
	for n, t := range triples {
		for s, stat := range msptStats {
			v, _ := strconv.ParseFloat(t[s+1], 64)
			out = append(out, sample("mspt_milliseconds", v, "window", msptWindows[n], "stat", stat))
		}
	}
	if len(triples) < len(msptWindows) {
		return out, parseErr("got %d tick time windows, want %d", len(triples), len(msptWindows))
	}
	return out, nil
}

// --- forge tps --------------------------------------------------------------

var (
	// Forge up to 1.16: "Dim  0 (overworld) : Mean tick time: 0.713 ms. Mean TPS: 20.000"
	forgeLegacy = regexp.MustCompile(`^(?:Dim\s+)?(.+?)\s*:\s*Mean tick time:\s*([\d.]+) ms\.?\s*Mean TPS:\s*([\d.]+)`)
	// Forge 1.17+: "minecraft:overworld: 20.000 TPS (0.713 ms/tick)"
	forgeModern = regexp.MustCompile(`^(.+?):\s*([\d.]+) TPS \(([\d.]+) ms/tick\)`)
	// "0 (overworld)" or "minecraft:overworld (minecraft:overworld)"
	dimAlias = regexp.MustCompile(`^\S+\s+\((.+)\)$`)
)

func parseForgeTPS(raw string) ([]types.Sample, error) {
	text := clean(raw)
	var out []types.Sample
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		var name, tps, tick string
		if m := forgeLegacy.FindStringSubmatch(line); m != nil {
			name, tick, tps = m[1], m[2], m[3]
		} else if m := forgeModern.FindStringSubmatch(line); m != nil {
			name, tps, tick = m[1], m[2], m[3]
		} else {
			continue
		}

		tpsV, ok1 := parseNumber(tps)
		tickV, ok2 := parseNumber(tick)
		if !ok1 || !ok2 {
			return out, parseErr("bad numbers in line %q", line)
		}

		name = strings.TrimSpace(name)
		if m := dimAlias.FindStringSubmatch(name); m != nil {
			name = m[1]
		}
		if strings.EqualFold(name, "overall") {
			out = append(out,
				sample("overall_tps", tpsV),
				sample("overall_tick_time_milliseconds", tickV))
			continue
		}
		out = append(out,
			sample("dimension_tps", tpsV, "dimension", name),
			sample("dimension_tick_time_milliseconds", tickV, "dimension", name))
	}
	if len(out) == 0 {
		return nil, parseErr("no dimension statistics in reply")
	}
	return out, nil
}

// --- worldborder ------------------------------------------------------------

var worldBorder = regexp.MustCompile(`(?i)world border is currently ([\d.,]+) blocks?(?:\(s\))? wide`)

func parseWorldBorder(raw string) ([]types.Sample, error) {
	m := worldBorder.FindStringSubmatch(clean(raw))
	if m == nil {
		return nil, parseErr("no world border width in reply")
	}
	v, ok := parseNumber(m[1])
	if !ok {
		return nil, parseErr("bad world border width %q", m[1])
	}
	return []types.Sample{sample("world_border_width_blocks", v)}, nil
}
