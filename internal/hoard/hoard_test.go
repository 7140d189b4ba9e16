package hoard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/qd"
)

var (
	testTypologies = []string{"1b1b", "2b1b", "3b2b"}
	testAxis       = qd.Axis{Min: 0.5, BinWidth: 0.5, Bins: 2}
)

func layout(rooms string) qd.Genome {
	text := "[prompt] a house [layout] " + rooms
	return qd.Genome{ProgramStr: text, ResultObj: text}
}

func testPopulation() *qd.Population {
	g := qd.NewGrid(3, 2)
	g.Set(0, 1, &qd.Elite{Genome: layout("bedroom1: (0,0)(10,0)(10,10)(0,10)"), Fitness: 0.5})
	g.Set(2, 0, &qd.Elite{Genome: layout("bedroom1: (0,0)(10,0)(10,10)(0,10), bedroom2: (10,0)(20,0)(20,10)(10,10)"), Fitness: 0.9})
	g.Set(1, 1, &qd.Elite{Genome: layout("kitchen: (0,0)(5,0)(5,5)(0,5)"), Fitness: 0.5})
	return &qd.Population{Genomes: g}
}

func TestEntries_FittestFirstStable(t *testing.T) {
	entries := Entries(testPopulation().Genomes, testTypologies, testAxis)
	require.Len(t, entries, 3)

	assert.Equal(t, "3b2b", entries[0].Typology)
	assert.Equal(t, 4, entries[0].Index)
	assert.Equal(t, 0.5, entries[0].YValue)

	// equal fitness keeps grid order
	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, 1.0, entries[1].YValue)
	assert.Equal(t, 3, entries[2].Index)
}

func TestListElites_Table(t *testing.T) {
	var buf bytes.Buffer
	err := ListElites(testPopulation(), testTypologies, testAxis, OutputFormatDefault, nil, "session 'demo'", &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Elites in session 'demo'")
	assert.Contains(t, out, "3b2b")
	assert.Contains(t, out, "0.9000")
	assert.Contains(t, out, "3 elites found")
	assert.NotContains(t, out, "[prompt]")
}

func TestListElites_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ListElites(nil, testTypologies, testAxis, OutputFormatDefault, nil, "the checkpoint", &buf))
	assert.Equal(t, "No elites found in the checkpoint\n", buf.String())

	buf.Reset()
	require.NoError(t, ListElites(nil, testTypologies, testAxis, OutputFormatJSONL, nil, "x", &buf))
	assert.Empty(t, buf.String())
}

func TestListElites_JSONLWithFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters *FilterCriteria
		want    []int
	}{
		{"no filters", nil, []int{4, 1, 3}},
		{"min fitness", &FilterCriteria{MinFitness: 0.6}, []int{4}},
		{"typology glob", &FilterCriteria{TypologyGlob: "*b1b"}, []int{1, 3}},
		{"limit", &FilterCriteria{Limit: 2}, []int{4, 1}},
		{"bad glob matches nothing", &FilterCriteria{TypologyGlob: "["}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := ListElites(testPopulation(), testTypologies, testAxis, OutputFormatJSONL, tt.filters, "x", &buf)
			require.NoError(t, err)

			var got []int
			scanner := bufio.NewScanner(&buf)
			for scanner.Scan() {
				var e Entry
				require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
				assert.True(t, strings.HasPrefix(e.Layout, "[prompt]"), "jsonl keeps the full text")
				got = append(got, e.Index)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListElites_UnknownFormat(t *testing.T) {
	err := ListElites(testPopulation(), testTypologies, testAxis, "xml", nil, "x", &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestGetElite(t *testing.T) {
	pop := testPopulation()

	var buf bytes.Buffer
	require.NoError(t, GetElite(pop, testTypologies, testAxis, 4, &buf))
	var e Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "3b2b", e.Typology)
	assert.Equal(t, 0.9, e.Fitness)

	err := GetElite(pop, testTypologies, testAxis, 0, &buf)
	assert.True(t, IsNotFound(err))

	err = GetElite(pop, testTypologies, testAxis, 6, &buf)
	assert.ErrorContains(t, err, "out of range")

	assert.True(t, IsNotFound(GetElite(nil, testTypologies, testAxis, 0, &buf)))
}

func TestFormatLayout(t *testing.T) {
	assert.Equal(t, "-", formatLayout("[prompt] empty [layout]  "))
	assert.Equal(t, "kitchen: (0,0)", formatLayout("[prompt] x [layout] kitchen:   (0,0)"))
	long := formatLayout("[layout] " + strings.Repeat("a", 60))
	assert.Len(t, long, 40)
	assert.True(t, strings.HasSuffix(long, "..."))
}
