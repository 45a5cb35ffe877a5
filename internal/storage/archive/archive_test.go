package archive

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

func testSet(name string) *types.MooringInstrumentSet {
	deployed := time.Date(2021, 10, 5, 1, 30, 0, 0, time.UTC)
	set := &types.MooringInstrumentSet{
		Name:       name,
		Latitude:   22.668,
		Longitude:  -157.946,
		Deployment: &deployed,
	}
	inst := &types.InstrumentSeries{
		Mooring:      name,
		Serial:       "3617",
		Type:         types.InstrumentMicrocat,
		NominalDepth: 7,
		ClockOffset:  -2.5,
	}
	for i := 0; i < 10; i++ {
		inst.Times = append(inst.Times, deployed.Add(time.Duration(i)*time.Minute))
		inst.Temperature = append(inst.Temperature, 24.5-0.01*float64(i))
		inst.Pressure = append(inst.Pressure, 7.2)
	}
	set.Instruments = append(set.Instruments, inst)
	return set
}

func TestArchiveSetRoundTrip(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatal(err)
	}

	want := testSet("whots-18")
	path, err := a.WriteSet("run-0001", want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := a.ReadSet(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != want.Name || got.Latitude != want.Latitude {
		t.Errorf("got %v at %v, want %v at %v", got.Name, got.Latitude, want.Name, want.Latitude)
	}
	if got.Deployment == nil || !got.Deployment.Equal(*want.Deployment) {
		t.Errorf("Deployment = %v, want %v", got.Deployment, want.Deployment)
	}
	if len(got.Instruments) != 1 {
		t.Fatalf("got %d instruments, want 1", len(got.Instruments))
	}
	gi, wi := got.Instruments[0], want.Instruments[0]
	if gi.Serial != wi.Serial || gi.Type != wi.Type || gi.ClockOffset != wi.ClockOffset {
		t.Errorf("instrument: got %+v, want %+v", gi, wi)
	}
	if !reflect.DeepEqual(gi.Temperature, wi.Temperature) || !reflect.DeepEqual(gi.Pressure, wi.Pressure) {
		t.Error("sample values do not round-trip")
	}
	if len(gi.Times) != len(wi.Times) || !gi.Times[9].Equal(wi.Times[9]) {
		t.Error("sample times do not round-trip")
	}
}

func TestArchiveGriddedRoundTrip(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	want := &types.GriddedMooring{
		Mooring:         "whots-18",
		Times:           []time.Time{start, start.Add(2 * time.Minute)},
		Interval:        2 * time.Minute,
		Depths:          []float64{7, 25},
		Serials:         []string{"3617", "1836"},
		InstrumentTags:  []types.InstrumentType{types.InstrumentMicrocat, types.InstrumentThermistor},
		AppliedOffsets:  []float64{-2.5, 0},
		Variables:       map[string][][]float64{types.VarTemperature: {{24.5, 23.1}, {24.4, 23.0}}},
		InstrumentFlags: []int16{1, 2},
		FlagMeanings:    map[int16]string{1: "3617", 2: "1836"},
	}

	path, err := a.WriteGridded("run-0002", want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.ReadGridded(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Mooring != want.Mooring || got.Interval != want.Interval {
		t.Errorf("got %v/%v, want %v/%v", got.Mooring, got.Interval, want.Mooring, want.Interval)
	}
	if !reflect.DeepEqual(got.Serials, want.Serials) || !reflect.DeepEqual(got.Depths, want.Depths) {
		t.Error("level metadata does not round-trip")
	}
	if !reflect.DeepEqual(got.Variables, want.Variables) {
		t.Errorf("Variables:\ngot  %v\nwant %v", got.Variables, want.Variables)
	}
	if !reflect.DeepEqual(got.FlagMeanings, want.FlagMeanings) {
		t.Errorf("FlagMeanings = %v, want %v", got.FlagMeanings, want.FlagMeanings)
	}
	if len(got.Times) != 2 || !got.Times[1].Equal(want.Times[1]) {
		t.Error("grid times do not round-trip")
	}
}

func TestArchiveListAndLatest(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatal(err)
	}

	first, err := a.WriteSet("run-0001", testSet("whots-18"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.WriteSet("run-0002", testSet("whots-18"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.WriteSet("run-0001", testSet("stratus-21")); err != nil {
		t.Fatal(err)
	}

	// Stray files in the directory are not snapshots
	if err := os.WriteFile(filepath.Join(a.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Pin mod times so ordering does not depend on write timing
	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(first, base, base); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(second, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	entries, err := a.List("whots-18")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RunID != "run-0002" || entries[1].RunID != "run-0001" {
		t.Errorf("entries not newest first: %v, %v", entries[0].RunID, entries[1].RunID)
	}
	if entries[0].Kind != KindSet || entries[0].Mooring != "whots-18" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}

	all, err := a.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d entries for the whole archive, want 3", len(all))
	}

	set, path, err := a.LatestSet("whots-18")
	if err != nil {
		t.Fatal(err)
	}
	if path != second {
		t.Errorf("LatestSet path = %v, want %v", path, second)
	}
	if set.Name != "whots-18" {
		t.Errorf("LatestSet name = %v", set.Name)
	}

	if _, _, err := a.LatestGridded("whots-18"); err == nil {
		t.Error("expected an error with no gridded snapshots")
	}
	if _, _, err := a.LatestSet("nope"); err == nil {
		t.Error("expected an error for an unknown mooring")
	}
}

func TestSnapshotNameParsing(t *testing.T) {
	tests := []struct {
		name    string
		mooring string
		runID   string
		kind    string
		ok      bool
	}{
		{"whots-18_run-0001_set.msgpack", "whots-18", "run-0001", "set", true},
		{"wind_station_a_run-9_gridded.msgpack", "wind_station_a", "run-9", "gridded", true},
		{"whots-18_run-0001_set.json", "", "", "", false},
		{"whots-18_set.msgpack", "", "", "", false},
		{"_x_set.msgpack", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := parseSnapshotName(tt.name)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if entry.Mooring != tt.mooring || entry.RunID != tt.runID || entry.Kind != tt.kind {
				t.Errorf("got %+v", entry)
			}
		})
	}
}

func TestWriteSetRequiresMooringName(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.WriteSet("run-0001", &types.MooringInstrumentSet{}); err == nil {
		t.Error("expected an error for an unnamed set")
	}
}
