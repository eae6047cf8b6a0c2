package testutil

import (
	"math"
	"math/rand"

	"github.com/ethpandaops/laptime/pkg/laps"
)

// FixtureDriver pairs a driver with the team they race for in fixtures.
type FixtureDriver struct {
	Driver string
	Team   string
	Offset float64
}

// FixtureEvent is an event and its base lap time in seconds.
type FixtureEvent struct {
	Event string
	Base  float64
}

// FixtureDrivers are the drivers used by SyntheticLaps.
//
//nolint:gochecknoglobals // Test fixtures
var FixtureDrivers = []FixtureDriver{
	{Driver: "VER", Team: "Red Bull Racing", Offset: 0},
	{Driver: "HAM", Team: "Mercedes", Offset: 0.35},
	{Driver: "LEC", Team: "Ferrari", Offset: 0.2},
	{Driver: "NOR", Team: "McLaren", Offset: 0.15},
	{Driver: "ALO", Team: "Aston Martin", Offset: 0.6},
}

// FixtureEvents are the events used by SyntheticLaps.
//
//nolint:gochecknoglobals // Test fixtures
var FixtureEvents = []FixtureEvent{
	{Event: "Bahrain Grand Prix", Base: 95},
	{Event: "British Grand Prix", Base: 90},
	{Event: "Monaco Grand Prix", Base: 75},
	{Event: "Italian Grand Prix", Base: 83},
	{Event: "Spanish Grand Prix", Base: 80},
}

// fixtureCompounds are run in this order, one stint each.
//
//nolint:gochecknoglobals // Test fixtures
var fixtureCompounds = []struct {
	name   string
	offset float64
}{
	{"SOFT", -0.6},
	{"MEDIUM", 0},
	{"HARD", 0.4},
}

// SyntheticLaps generates a deterministic season of raw laps: every fixture
// driver runs a stint of stintLaps on each compound at every fixture event.
// Lap time grows with tyre age and falls as fuel burns off.
func SyntheticLaps(seed int64, stintLaps int) []laps.RawRecord {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixtures

	records := make([]laps.RawRecord, 0, len(FixtureDrivers)*len(FixtureEvents)*len(fixtureCompounds)*stintLaps)

	for _, ev := range FixtureEvents {
		for _, d := range FixtureDrivers {
			lapNumber := 1

			for _, c := range fixtureCompounds {
				for tyre := 1; tyre <= stintLaps; tyre++ {
					noise := rng.NormFloat64() * 0.08
					lapTime := ev.Base + d.Offset + c.offset + 0.06*float64(tyre) - 0.02*float64(lapNumber) + noise

					s1 := lapTime * (0.3 + rng.Float64()*0.01)
					s2 := lapTime * (0.4 + rng.Float64()*0.01)
					s3 := lapTime - s1 - s2

					records = append(records, laps.RawRecord{
						Driver:      d.Driver,
						Team:        d.Team,
						Event:       ev.Event,
						Compound:    c.name,
						TyreLife:    float64(tyre),
						LapNumber:   float64(lapNumber),
						LapTime:     lapTime,
						Sector1Time: s1,
						Sector2Time: s2,
						Sector3Time: s3,
					})

					lapNumber++
				}
			}
		}
	}

	return records
}

// Lap returns a complete raw record with sectors splitting lapTime evenly.
func Lap(driver, team, event, compound string, tyreLife int, lapTime float64) laps.RawRecord {
	return laps.RawRecord{
		Driver:      driver,
		Team:        team,
		Event:       event,
		Compound:    compound,
		TyreLife:    float64(tyreLife),
		LapNumber:   math.NaN(),
		LapTime:     lapTime,
		Sector1Time: lapTime * 0.3,
		Sector2Time: lapTime * 0.4,
		Sector3Time: lapTime * 0.3,
	}
}

// Records cleans raw without outlier removal. It panics on error.
func Records(raw []laps.RawRecord) []laps.Record {
	result, err := laps.Clean(raw, 1)
	if err != nil {
		panic(err)
	}

	return result.Records
}
