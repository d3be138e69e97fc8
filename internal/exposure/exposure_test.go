package exposure_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

func TestDefaultsInDomain(t *testing.T) {
	d := exposure.Defaults()

	if d.Aperture < exposure.ApertureMin || d.Aperture > exposure.ApertureMax {
		t.Errorf("default aperture %v outside domain", d.Aperture)
	}
	if d.ShutterSpeed < exposure.ShutterSpeedMin || d.ShutterSpeed > exposure.ShutterSpeedMax {
		t.Errorf("default shutter speed %v outside domain", d.ShutterSpeed)
	}
	if d.ISO < exposure.ISOMin || d.ISO > exposure.ISOMax {
		t.Errorf("default ISO %v outside domain", d.ISO)
	}
	if !d.WhiteBalance.Valid() || !d.FocusMode.Valid() || !d.FlashMode.Valid() || !d.MeteringMode.Valid() {
		t.Errorf("defaults contain invalid enum members: %+v", d)
	}
	if d.ExposureCompensation != 0 {
		t.Errorf("default compensation = %v, want 0", d.ExposureCompensation)
	}
}

func TestApplyClampsNumericValues(t *testing.T) {
	tests := []struct {
		name     string
		override exposure.Override
		check    func(exposure.Settings) (got, want float64)
	}{
		{
			name:     "aperture below min",
			override: exposure.Override{Aperture: exposure.F(0.95)},
			check:    func(s exposure.Settings) (float64, float64) { return s.Aperture, exposure.ApertureMin },
		},
		{
			name:     "aperture above max",
			override: exposure.Override{Aperture: exposure.F(32)},
			check:    func(s exposure.Settings) (float64, float64) { return s.Aperture, exposure.ApertureMax },
		},
		{
			name:     "aperture NaN pinned to floor",
			override: exposure.Override{Aperture: exposure.F(math.NaN())},
			check:    func(s exposure.Settings) (float64, float64) { return s.Aperture, exposure.ApertureMin },
		},
		{
			name:     "shutter speed below min",
			override: exposure.Override{ShutterSpeed: exposure.F(0)},
			check:    func(s exposure.Settings) (float64, float64) { return s.ShutterSpeed, exposure.ShutterSpeedMin },
		},
		{
			name:     "shutter speed above max",
			override: exposure.Override{ShutterSpeed: exposure.F(120)},
			check:    func(s exposure.Settings) (float64, float64) { return s.ShutterSpeed, exposure.ShutterSpeedMax },
		},
		{
			name:     "iso below min",
			override: exposure.Override{ISO: exposure.I(25)},
			check:    func(s exposure.Settings) (float64, float64) { return float64(s.ISO), exposure.ISOMin },
		},
		{
			name:     "iso above max",
			override: exposure.Override{ISO: exposure.I(12800)},
			check:    func(s exposure.Settings) (float64, float64) { return float64(s.ISO), exposure.ISOMax },
		},
		{
			name:     "compensation below min",
			override: exposure.Override{ExposureCompensation: exposure.F(-5)},
			check: func(s exposure.Settings) (float64, float64) {
				return s.ExposureCompensation, exposure.ExposureCompMin
			},
		},
		{
			name:     "compensation above max",
			override: exposure.Override{ExposureCompensation: exposure.F(5)},
			check: func(s exposure.Settings) (float64, float64) {
				return s.ExposureCompensation, exposure.ExposureCompMax
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := exposure.NewStore()
			after := store.Apply(tt.override)
			if got, want := tt.check(after); got != want {
				t.Errorf("got %v, want clamped %v", got, want)
			}
		})
	}
}

func TestApplyInDomainValueStoredExactly(t *testing.T) {
	store := exposure.NewStore()
	after := store.Apply(exposure.Override{Aperture: exposure.F(8)})
	if after.Aperture != 8 {
		t.Errorf("Aperture = %v, want 8 stored without adjustment", after.Aperture)
	}
}

func TestApplyMergesFieldByField(t *testing.T) {
	store := exposure.NewStore()
	base := store.Apply(exposure.Override{
		Aperture:     exposure.F(11),
		ShutterSpeed: exposure.F(1.0 / 500.0),
		ISO:          exposure.I(800),
		WhiteBalance: exposure.WB(exposure.WhiteBalanceManual),
		FocusMode:    exposure.FM(exposure.FocusContinuous),
	})

	after := store.Apply(exposure.Override{ISO: exposure.I(200)})

	if after.ISO != 200 {
		t.Errorf("ISO = %d, want 200", after.ISO)
	}
	want := base
	want.ISO = 200
	if after != want {
		t.Errorf("single-field override touched unrelated fields:\n got %+v\nwant %+v", after, want)
	}
}

func TestApplyEmptyOverrideIsNoOp(t *testing.T) {
	store := exposure.NewStore()
	before := store.Settings()
	after := store.Apply(exposure.Override{})
	if after != before {
		t.Errorf("empty override changed settings:\n got %+v\nwant %+v", after, before)
	}
	if !(exposure.Override{}).IsEmpty() {
		t.Error("IsEmpty() = false for zero override")
	}
}

func TestApplyDropsInvalidEnumMembers(t *testing.T) {
	store := exposure.NewStore()
	before := store.Settings()

	after := store.Apply(exposure.Override{
		WhiteBalance: exposure.WB("tungsten"),
		FocusMode:    exposure.FM("zone"),
		FlashMode:    exposure.Flash("slow-sync"),
		MeteringMode: exposure.MM("highlight"),
	})

	if after != before {
		t.Errorf("invalid enum members were stored:\n got %+v\nwant %+v", after, before)
	}
}

func TestSettersReturnUpdatedSnapshot(t *testing.T) {
	store := exposure.NewStore()

	if got := store.SetAperture(5.6); got.Aperture != 5.6 {
		t.Errorf("SetAperture snapshot = %v, want 5.6", got.Aperture)
	}
	if got := store.SetISO(6400); got.ISO != 6400 {
		t.Errorf("SetISO snapshot = %d, want 6400", got.ISO)
	}
	if got := store.SetFlashMode(exposure.FlashOn); got.FlashMode != exposure.FlashOn {
		t.Errorf("SetFlashMode snapshot = %q, want on", got.FlashMode)
	}
	if got := store.Settings(); got.Aperture != 5.6 || got.ISO != 6400 || got.FlashMode != exposure.FlashOn {
		t.Errorf("Settings() after setters = %+v", got)
	}
}

func TestReset(t *testing.T) {
	store := exposure.NewStore()
	store.SetAperture(16)
	store.SetISO(3200)

	if got, want := store.Reset(), exposure.Defaults(); got != want {
		t.Errorf("Reset() = %+v, want defaults %+v", got, want)
	}
}

func TestOverrideSet(t *testing.T) {
	tests := []struct {
		field, value string
		check        func(o exposure.Override) bool
	}{
		{"aperture", "5.6", func(o exposure.Override) bool { return o.Aperture != nil && *o.Aperture == 5.6 }},
		{"shutterSpeed", "1/1000", func(o exposure.Override) bool { return o.ShutterSpeed != nil && *o.ShutterSpeed == 0.001 }},
		{"shutterSpeed", "2", func(o exposure.Override) bool { return o.ShutterSpeed != nil && *o.ShutterSpeed == 2 }},
		{"iso", "400", func(o exposure.Override) bool { return o.ISO != nil && *o.ISO == 400 }},
		{"whiteBalance", "manual-preset", func(o exposure.Override) bool {
			return o.WhiteBalance != nil && *o.WhiteBalance == exposure.WhiteBalanceManual
		}},
		{"focusMode", "continuous", func(o exposure.Override) bool {
			return o.FocusMode != nil && *o.FocusMode == exposure.FocusContinuous
		}},
		{"flashMode", "on", func(o exposure.Override) bool { return o.FlashMode != nil && *o.FlashMode == exposure.FlashOn }},
		{"exposureCompensation", "-1.5", func(o exposure.Override) bool {
			return o.ExposureCompensation != nil && *o.ExposureCompensation == -1.5
		}},
		{"meteringMode", "spot", func(o exposure.Override) bool {
			return o.MeteringMode != nil && *o.MeteringMode == exposure.MeteringSpot
		}},
	}

	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			var o exposure.Override
			if err := o.Set(tt.field, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) failed: %v", tt.field, tt.value, err)
			}
			if !tt.check(o) {
				t.Errorf("Set(%q, %q) stored wrong value: %+v", tt.field, tt.value, o)
			}
		})
	}
}

func TestOverrideSetErrors(t *testing.T) {
	tests := []struct {
		name, field, value string
		wantUnknown        bool
	}{
		{"unknown field", "whiteBalanceMode", "auto", true},
		{"empty field", "", "1", true},
		{"bad aperture", "aperture", "wide", false},
		{"bad iso", "iso", "4OO", false},
		{"bad shutter fraction", "shutterSpeed", "1/fast", false},
		{"invalid white balance", "whiteBalance", "tungsten", false},
		{"invalid focus mode", "focusMode", "zone", false},
		{"invalid flash mode", "flashMode", "slow-sync", false},
		{"invalid metering mode", "meteringMode", "highlight", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o exposure.Override
			err := o.Set(tt.field, tt.value)
			if err == nil {
				t.Fatalf("Set(%q, %q) succeeded, want error", tt.field, tt.value)
			}
			if got := errors.Is(err, exposure.ErrUnknownField); got != tt.wantUnknown {
				t.Errorf("errors.Is(err, ErrUnknownField) = %v, want %v (err: %v)", got, tt.wantUnknown, err)
			}
			if !o.IsEmpty() {
				t.Errorf("failed Set left override state behind: %+v", o)
			}
		})
	}
}

func TestOverrideValidate(t *testing.T) {
	ok := exposure.Override{Aperture: exposure.F(5.6), ISO: exposure.I(400)}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v for in-domain override", err)
	}

	tests := []struct {
		name     string
		override exposure.Override
	}{
		{"aperture out of domain", exposure.Override{Aperture: exposure.F(64)}},
		{"shutter speed out of domain", exposure.Override{ShutterSpeed: exposure.F(90)}},
		{"iso out of domain", exposure.Override{ISO: exposure.I(10)}},
		{"compensation out of domain", exposure.Override{ExposureCompensation: exposure.F(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.override.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestParseShutterSpeed(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "1/250", want: 0.004},
		{in: "1/8000", want: 1.0 / 8000.0},
		{in: "0.5", want: 0.5},
		{in: "30", want: 30},
		{in: "1 / 2", want: 0.5},
		{in: "1/0", wantErr: true},
		{in: "fast", wantErr: true},
		{in: "x/250", wantErr: true},
		{in: "1/quick", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := exposure.ParseShutterSpeed(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShutterSpeed(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseShutterSpeed(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatShutterSpeed(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.0 / 8000.0, "1/8000"},
		{1.0 / 125.0, "1/125"},
		{0.004, "1/250"},
		{1, "1s"},
		{2.5, "2.5s"},
		{30, "30s"},
		{0, "0s"},
	}

	for _, tt := range tests {
		if got := exposure.FormatShutterSpeed(tt.in); got != tt.want {
			t.Errorf("FormatShutterSpeed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func ExampleStore_Apply() {
	store := exposure.NewStore()
	after := store.Apply(exposure.Override{
		Aperture:     exposure.F(5.6),
		ShutterSpeed: exposure.F(1.0 / 1000.0),
		ISO:          exposure.I(400),
	})
	fmt.Printf("f/%.1f %s ISO %d wb=%s\n",
		after.Aperture, exposure.FormatShutterSpeed(after.ShutterSpeed), after.ISO, after.WhiteBalance)
	// Output: f/5.6 1/1000 ISO 400 wb=auto
}
