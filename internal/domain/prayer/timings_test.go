package prayer

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "18:05", want: TimeOfDay{Hour: 18, Minute: 5}},
		{in: "05:12", want: TimeOfDay{Hour: 5, Minute: 12}},
		{in: "18:05 (CET)", want: TimeOfDay{Hour: 18, Minute: 5}},
		{in: "00:00", want: TimeOfDay{}},
		{in: "", wantErr: true},
		{in: "6:05", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "18:60", wantErr: true},
		{in: "18-05", wantErr: true},
		{in: "6 PM", wantErr: true},
		{in: "18:05 pm", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrParse) {
				t.Errorf("%q: expected ErrParse, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func sampleTimings(date time.Time) *DayTimings {
	return &DayTimings{
		Location: Location{City: "Gera", Country: "Germany"},
		Date:     date,
		Zone:     time.UTC,
		Times: map[Name]TimeOfDay{
			Fajr:    {Hour: 5, Minute: 10},
			Sunrise: {Hour: 7, Minute: 0},
			Dhuhr:   {Hour: 12, Minute: 30},
			Asr:     {Hour: 15, Minute: 20},
			Maghrib: {Hour: 18, Minute: 5},
			Isha:    {Hour: 19, Minute: 40},
		},
	}
}

func TestBoundaryActiveUntilSunset(t *testing.T) {
	day := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	timings := sampleTimings(day)

	b, err := timings.Boundary(time.Date(2026, time.March, 1, 17, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	want := time.Date(2026, time.March, 1, 18, 5, 0, 0, time.UTC)
	if !b.At.Equal(want) || !b.Active {
		t.Fatalf("got %+v, want active boundary at %v", b, want)
	}
	if b.Key != KeyFor(timings.Location, day) {
		t.Fatalf("unexpected key %v", b.Key)
	}

	late, err := timings.Boundary(time.Date(2026, time.March, 1, 18, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	if late.Active {
		t.Fatal("boundary computed after sunset must be inactive")
	}
}

func TestBoundaryMissingSunset(t *testing.T) {
	timings := sampleTimings(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	delete(timings.Times, Maghrib)
	if _, err := timings.Boundary(time.Now()); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestBoundaryUsesTimingsZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	timings := sampleTimings(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	timings.Zone = berlin
	at, _ := timings.At(Maghrib)
	if want := time.Date(2026, time.March, 1, 17, 5, 0, 0, time.UTC); !at.Equal(want) {
		t.Fatalf("got %v, want %v", at.UTC(), want)
	}
}

func TestNextPrayer(t *testing.T) {
	day := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	timings := sampleTimings(day)

	name, at := timings.NextPrayer(time.Date(2026, time.March, 1, 13, 0, 0, 0, time.UTC))
	if name != Asr || at.Hour() != 15 {
		t.Fatalf("got %s at %v, want Asr", name, at)
	}

	name, at = timings.NextPrayer(time.Date(2026, time.March, 1, 21, 0, 0, 0, time.UTC))
	if name != Fajr || at.Day() != 2 {
		t.Fatalf("got %s at %v, want tomorrow's Fajr", name, at)
	}
}

func TestLocationEqualAndKey(t *testing.T) {
	a := Location{City: "Gera", Country: "Germany"}
	b := Location{City: " gera", Country: "GERMANY "}
	if !a.Equal(b) {
		t.Fatal("locations should compare case-insensitively")
	}
	day := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	if KeyFor(a, day) != KeyFor(b, day) {
		t.Fatal("keys should be normalised")
	}
	if KeyFor(a, day) == KeyFor(a, day.AddDate(0, 0, 1)) {
		t.Fatal("keys must differ across days")
	}
	if !(Location{City: "Gera"}).IsZero() {
		t.Fatal("location without country is incomplete")
	}
}
