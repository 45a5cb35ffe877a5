package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const testYAML = `
moorings:
  - name: whots-18
    latitude: 22.668
    longitude: -157.946
    water-depth: 4703
    deployed-at: 2021-10-05T01:30:00Z
    recovered-at: 2022-10-20T19:00:00Z
    instruments:
      - serial: "3617"
        model: SBE37
        nominal-depth: 7
        has-pressure: true
        variables: [temperature, conductivity, pressure]
      - serial: "1836"
        model: SBE39
        nominal-depth: 25
        clock-offset: -4.5
        variables: [temperature]
  - name: whots-19
    latitude: 22.669
    longitude: -157.947
    instruments:
      - serial: "2055"
        nominal-depth: 45

pipeline:
  workers: 4
  variables: [temperature, salinity]
  filter-cutoff-days: 0.25
  filter-order: 4
  grid-interval-seconds: 120
  offset-tolerance-seconds: 2
  climatology: /data/clim/whots.msgpack

storage:
  postgres:
    connection-string: host=localhost dbname=moorproc
  rawstore:
    path: /var/lib/moorproc/raw.db
  archive:
    directory: /var/lib/moorproc/archive

server:
  port: 8480
  listen-addr: 127.0.0.1

capture:
  - name: buoy-feed
    type: tcp
    listen-addr: 0.0.0.0
    port: 7100
    mooring: whots-18
  - name: deck-box
    type: serial
    serialdevice: /dev/ttyUSB0
    baud: 9600
    mooring: whots-18
    serial: "3617"
`

func writeTestYAML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	p := NewYAMLProvider(writeTestYAML(t))
	defer p.Close()

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Moorings) != 2 {
		t.Fatalf("got %d moorings, want 2", len(cfg.Moorings))
	}

	m := cfg.Moorings[0]
	if m.Name != "whots-18" || m.Latitude != 22.668 || m.WaterDepth != 4703 {
		t.Errorf("unexpected mooring: %+v", m)
	}
	wantDeployed := time.Date(2021, 10, 5, 1, 30, 0, 0, time.UTC)
	if m.DeployedAt == nil || !m.DeployedAt.Equal(wantDeployed) {
		t.Errorf("DeployedAt = %v, want %v", m.DeployedAt, wantDeployed)
	}
	if m.RecoveredAt == nil {
		t.Error("RecoveredAt = nil, want set")
	}
	if len(m.Instruments) != 2 {
		t.Fatalf("got %d instruments, want 2", len(m.Instruments))
	}
	inst := m.Instruments[0]
	if inst.Serial != "3617" || !inst.HasPressure || inst.Model != "SBE37" {
		t.Errorf("unexpected instrument: %+v", inst)
	}
	if want := []string{"temperature", "conductivity", "pressure"}; !reflect.DeepEqual(inst.Variables, want) {
		t.Errorf("Variables = %v, want %v", inst.Variables, want)
	}
	if got := m.Instruments[1].ClockOffset; got != -4.5 {
		t.Errorf("ClockOffset = %v, want -4.5", got)
	}

	// whots-19 omits the optional timestamps entirely
	if cfg.Moorings[1].DeployedAt != nil || cfg.Moorings[1].RecoveredAt != nil {
		t.Error("whots-19 should have no deployment timestamps")
	}

	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.FilterCutoffDays != 0.25 {
		t.Errorf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.ClimatologyPath != "/data/clim/whots.msgpack" {
		t.Errorf("ClimatologyPath = %q", cfg.Pipeline.ClimatologyPath)
	}

	if cfg.Storage.Postgres == nil || cfg.Storage.Postgres.ConnectionString != "host=localhost dbname=moorproc" {
		t.Errorf("unexpected postgres config: %+v", cfg.Storage.Postgres)
	}
	if cfg.Storage.RawStore == nil || cfg.Storage.RawStore.Path != "/var/lib/moorproc/raw.db" {
		t.Errorf("unexpected rawstore config: %+v", cfg.Storage.RawStore)
	}
	if cfg.Storage.GRPC != nil {
		t.Error("GRPC storage should be absent")
	}

	if cfg.Server == nil || cfg.Server.Port != 8480 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if len(cfg.Capture) != 2 {
		t.Fatalf("got %d capture sources, want 2", len(cfg.Capture))
	}
	if cfg.Capture[1].Type != "serial" || cfg.Capture[1].Baud != 9600 {
		t.Errorf("unexpected capture source: %+v", cfg.Capture[1])
	}

	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderGetMooring(t *testing.T) {
	p := NewYAMLProvider(writeTestYAML(t))
	defer p.Close()

	m, err := p.GetMooring("whots-19")
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "whots-19" || len(m.Instruments) != 1 {
		t.Errorf("unexpected mooring: %+v", m)
	}

	if _, err := p.GetMooring("nope"); err == nil {
		t.Error("expected an error for an unknown mooring")
	}
}

func TestYAMLProviderInvalidTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := "moorings:\n  - name: m1\n    latitude: 0\n    longitude: 0\n    deployed-at: 2021-13-45\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewYAMLProvider(path).LoadConfig(); err == nil {
		t.Error("expected an error for a malformed deployed-at")
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	yamlProvider := NewYAMLProvider(writeTestYAML(t))
	want, err := yamlProvider.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}

	if err := p.SaveConfig(want); err != nil {
		t.Fatal(err)
	}
	got, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Moorings) != len(want.Moorings) {
		t.Fatalf("got %d moorings, want %d", len(got.Moorings), len(want.Moorings))
	}
	for i := range want.Moorings {
		w, g := want.Moorings[i], got.Moorings[i]
		if g.Name != w.Name || g.Latitude != w.Latitude || g.Longitude != w.Longitude || g.WaterDepth != w.WaterDepth {
			t.Errorf("mooring %s: got %+v, want %+v", w.Name, g, w)
		}
		if !timesMatch(g.DeployedAt, w.DeployedAt) || !timesMatch(g.RecoveredAt, w.RecoveredAt) {
			t.Errorf("mooring %s: timestamps do not round-trip", w.Name)
		}
		if !reflect.DeepEqual(g.Instruments, w.Instruments) {
			t.Errorf("mooring %s instruments:\ngot  %+v\nwant %+v", w.Name, g.Instruments, w.Instruments)
		}
	}

	if !reflect.DeepEqual(got.Pipeline, want.Pipeline) {
		t.Errorf("pipeline:\ngot  %+v\nwant %+v", got.Pipeline, want.Pipeline)
	}
	if !reflect.DeepEqual(got.Storage, want.Storage) {
		t.Errorf("storage:\ngot  %+v\nwant %+v", got.Storage, want.Storage)
	}
	if !reflect.DeepEqual(got.Server, want.Server) {
		t.Errorf("server: got %+v, want %+v", got.Server, want.Server)
	}
	if !reflect.DeepEqual(got.Capture, want.Capture) {
		t.Errorf("capture:\ngot  %+v\nwant %+v", got.Capture, want.Capture)
	}
}

func timesMatch(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func TestSQLiteProviderMooringManagement(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	deployed := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	mooring := &MooringData{
		Name:       "stratus-21",
		Latitude:   -19.62,
		Longitude:  -85.35,
		DeployedAt: &deployed,
		Instruments: []InstrumentData{
			{Serial: "7441", NominalDepth: 15, Variables: []string{"temperature"}},
		},
	}

	if err := p.AddMooring(mooring); err != nil {
		t.Fatal(err)
	}
	if err := p.AddMooring(mooring); err == nil {
		t.Error("expected an error adding a duplicate mooring")
	}

	got, err := p.GetMooring("stratus-21")
	if err != nil {
		t.Fatal(err)
	}
	if got.Latitude != -19.62 || len(got.Instruments) != 1 {
		t.Errorf("unexpected mooring: %+v", got)
	}

	mooring.Instruments = append(mooring.Instruments, InstrumentData{
		Serial: "7442", NominalDepth: 30, HasPressure: true,
	})
	if err := p.UpdateMooring("stratus-21", mooring); err != nil {
		t.Fatal(err)
	}
	got, err = p.GetMooring("stratus-21")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Instruments) != 2 {
		t.Fatalf("got %d instruments after update, want 2", len(got.Instruments))
	}

	if err := p.UpdateMooring("nope", mooring); err == nil {
		t.Error("expected an error updating an unknown mooring")
	}

	if err := p.DeleteMooring("stratus-21"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetMooring("stratus-21"); err == nil {
		t.Error("mooring should be gone after delete")
	}
	if err := p.DeleteMooring("stratus-21"); err == nil {
		t.Error("expected an error deleting a missing mooring")
	}
}
