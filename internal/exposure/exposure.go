// Package exposure holds the manual exposure parameter state and the
// clamping rules that keep every value inside its photographic domain.
package exposure

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Domain bounds for the numeric settings. Writes outside a domain are
// clamped to the nearest bound, never stored out of range and never
// surfaced as errors.
const (
	ApertureMin = 1.4
	ApertureMax = 22.0

	ShutterSpeedMin = 1.0 / 8000.0 // seconds
	ShutterSpeedMax = 30.0

	ISOMin = 50
	ISOMax = 6400

	ExposureCompMin = -3.0 // EV
	ExposureCompMax = 3.0
)

// ErrUnknownField reports a string-keyed update naming a field that
// does not exist in the closed settings set.
var ErrUnknownField = errors.New("exposure: unknown settings field")

// WhiteBalance selects automatic or manual-preset white balance.
type WhiteBalance string

const (
	WhiteBalanceAuto   WhiteBalance = "auto"
	WhiteBalanceManual WhiteBalance = "manual-preset"
)

func (w WhiteBalance) Valid() bool {
	return w == WhiteBalanceAuto || w == WhiteBalanceManual
}

// FocusMode selects how the camera focuses.
type FocusMode string

const (
	FocusAuto       FocusMode = "auto"
	FocusSingle     FocusMode = "single"
	FocusContinuous FocusMode = "continuous"
	FocusManual     FocusMode = "manual"
)

func (m FocusMode) Valid() bool {
	switch m {
	case FocusAuto, FocusSingle, FocusContinuous, FocusManual:
		return true
	}
	return false
}

// FlashMode turns the flash on or off.
type FlashMode string

const (
	FlashOn  FlashMode = "on"
	FlashOff FlashMode = "off"
)

func (m FlashMode) Valid() bool {
	return m == FlashOn || m == FlashOff
}

// MeteringMode selects the light-metering pattern.
type MeteringMode string

const (
	MeteringMatrix MeteringMode = "matrix"
	MeteringCenter MeteringMode = "center"
	MeteringSpot   MeteringMode = "spot"
)

func (m MeteringMode) Valid() bool {
	switch m {
	case MeteringMatrix, MeteringCenter, MeteringSpot:
		return true
	}
	return false
}

// Settings is the full exposure parameter set. It is a value object;
// the store hands out copies, never references into its own state.
// The JSON names match the string field vocabulary used by Override.Set.
type Settings struct {
	Aperture             float64      `json:"aperture"`     // f-number
	ShutterSpeed         float64      `json:"shutterSpeed"` // seconds
	ISO                  int          `json:"iso"`
	WhiteBalance         WhiteBalance `json:"whiteBalance"`
	FocusMode            FocusMode    `json:"focusMode"`
	FlashMode            FlashMode    `json:"flashMode"`
	ExposureCompensation float64      `json:"exposureCompensation"` // EV
	MeteringMode         MeteringMode `json:"meteringMode"`
}

// Defaults is the starting parameter set: f/2.8, 1/125s, ISO 100,
// everything else automatic/off/matrix.
func Defaults() Settings {
	return Settings{
		Aperture:             2.8,
		ShutterSpeed:         1.0 / 125.0,
		ISO:                  100,
		WhiteBalance:         WhiteBalanceAuto,
		FocusMode:            FocusAuto,
		FlashMode:            FlashOff,
		ExposureCompensation: 0,
		MeteringMode:         MeteringMatrix,
	}
}

// Override is a partial Settings: nil fields are left unchanged when
// applied. The closed field set means unknown settings cannot be
// expressed at all, let alone silently accepted.
type Override struct {
	Aperture             *float64
	ShutterSpeed         *float64
	ISO                  *int
	WhiteBalance         *WhiteBalance
	FocusMode            *FocusMode
	FlashMode            *FlashMode
	ExposureCompensation *float64
	MeteringMode         *MeteringMode
}

// IsEmpty reports whether the override changes nothing.
func (o Override) IsEmpty() bool {
	return o.Aperture == nil && o.ShutterSpeed == nil && o.ISO == nil &&
		o.WhiteBalance == nil && o.FocusMode == nil && o.FlashMode == nil &&
		o.ExposureCompensation == nil && o.MeteringMode == nil
}

// Clone returns an override sharing no pointers with o, so the copy
// can be handed out without aliasing the source.
func (o Override) Clone() Override {
	var c Override
	if o.Aperture != nil {
		c.Aperture = F(*o.Aperture)
	}
	if o.ShutterSpeed != nil {
		c.ShutterSpeed = F(*o.ShutterSpeed)
	}
	if o.ISO != nil {
		c.ISO = I(*o.ISO)
	}
	if o.WhiteBalance != nil {
		c.WhiteBalance = WB(*o.WhiteBalance)
	}
	if o.FocusMode != nil {
		c.FocusMode = FM(*o.FocusMode)
	}
	if o.FlashMode != nil {
		c.FlashMode = Flash(*o.FlashMode)
	}
	if o.ExposureCompensation != nil {
		c.ExposureCompensation = F(*o.ExposureCompensation)
	}
	if o.MeteringMode != nil {
		c.MeteringMode = MM(*o.MeteringMode)
	}
	return c
}

// Validate rejects overrides whose numeric values fall outside their
// domains. User input gets clamped instead; this is for declarations
// (preset catalogs) that should not lean on clamping.
func (o Override) Validate() error {
	if o.Aperture != nil && (*o.Aperture < ApertureMin || *o.Aperture > ApertureMax) {
		return fmt.Errorf("exposure: aperture f/%.2f outside domain [%.1f, %.1f]", *o.Aperture, ApertureMin, ApertureMax)
	}
	if o.ShutterSpeed != nil && (*o.ShutterSpeed < ShutterSpeedMin || *o.ShutterSpeed > ShutterSpeedMax) {
		return fmt.Errorf("exposure: shutter speed %ss outside domain [1/8000, 30]", strconv.FormatFloat(*o.ShutterSpeed, 'g', -1, 64))
	}
	if o.ISO != nil && (*o.ISO < ISOMin || *o.ISO > ISOMax) {
		return fmt.Errorf("exposure: ISO %d outside domain [%d, %d]", *o.ISO, ISOMin, ISOMax)
	}
	if o.ExposureCompensation != nil && (*o.ExposureCompensation < ExposureCompMin || *o.ExposureCompensation > ExposureCompMax) {
		return fmt.Errorf("exposure: compensation %+.2f EV outside domain [%+.1f, %+.1f]", *o.ExposureCompensation, ExposureCompMin, ExposureCompMax)
	}
	return nil
}

// Set assigns one field of the override from its string form, e.g.
// ("aperture", "2.8") or ("shutterSpeed", "1/250"). Numeric values are
// parsed, not range-checked: the domain policy (clamping) applies when
// the override is applied to a store. Enum values must name a known
// member. Unknown field names fail with ErrUnknownField.
func (o *Override) Set(field, value string) error {
	switch field {
	case "aperture":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("exposure: parsing aperture %q: %w", value, err)
		}
		o.Aperture = &v

	case "shutterSpeed":
		v, err := ParseShutterSpeed(value)
		if err != nil {
			return err
		}
		o.ShutterSpeed = &v

	case "iso":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("exposure: parsing iso %q: %w", value, err)
		}
		o.ISO = &v

	case "whiteBalance":
		v := WhiteBalance(value)
		if !v.Valid() {
			return fmt.Errorf("exposure: invalid white balance %q (expected auto or manual-preset)", value)
		}
		o.WhiteBalance = &v

	case "focusMode":
		v := FocusMode(value)
		if !v.Valid() {
			return fmt.Errorf("exposure: invalid focus mode %q (expected auto, single, continuous or manual)", value)
		}
		o.FocusMode = &v

	case "flashMode":
		v := FlashMode(value)
		if !v.Valid() {
			return fmt.Errorf("exposure: invalid flash mode %q (expected on or off)", value)
		}
		o.FlashMode = &v

	case "exposureCompensation":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("exposure: parsing exposure compensation %q: %w", value, err)
		}
		o.ExposureCompensation = &v

	case "meteringMode":
		v := MeteringMode(value)
		if !v.Valid() {
			return fmt.Errorf("exposure: invalid metering mode %q (expected matrix, center or spot)", value)
		}
		o.MeteringMode = &v

	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// FieldNames lists the settable field names in a stable order, for
// help text and error messages.
func FieldNames() []string {
	return []string{
		"aperture", "shutterSpeed", "iso", "whiteBalance",
		"focusMode", "flashMode", "exposureCompensation", "meteringMode",
	}
}

// ParseShutterSpeed accepts seconds as a decimal ("0.008", "2") or a
// fraction ("1/250").
func ParseShutterSpeed(value string) (float64, error) {
	if num, den, ok := strings.Cut(value, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("exposure: parsing shutter speed %q: %w", value, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("exposure: parsing shutter speed %q: %w", value, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("exposure: shutter speed %q has zero denominator", value)
		}
		return n / d, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("exposure: parsing shutter speed %q: %w", value, err)
	}
	return v, nil
}

// FormatShutterSpeed renders seconds the way photographers read them:
// fractions below one second ("1/125"), plain seconds otherwise ("2s").
func FormatShutterSpeed(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	if seconds < 1 {
		return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
	}
	return strconv.FormatFloat(seconds, 'g', -1, 64) + "s"
}

// Pointer helpers keep Override literals readable in presets and
// tests.
func F(v float64) *float64            { return &v }
func I(v int) *int                    { return &v }
func WB(v WhiteBalance) *WhiteBalance { return &v }
func FM(v FocusMode) *FocusMode       { return &v }
func Flash(v FlashMode) *FlashMode    { return &v }
func MM(v MeteringMode) *MeteringMode { return &v }

func clampFloat(v, lo, hi float64, field string) float64 {
	if math.IsNaN(v) {
		slog.Debug("exposure: clamped non-numeric value to domain floor", "field", field, "bound", lo)
		return lo
	}
	switch {
	case v < lo:
		slog.Debug("exposure: clamped value to domain", "field", field, "value", v, "bound", lo)
		return lo
	case v > hi:
		slog.Debug("exposure: clamped value to domain", "field", field, "value", v, "bound", hi)
		return hi
	}
	return v
}

func clampInt(v, lo, hi int, field string) int {
	switch {
	case v < lo:
		slog.Debug("exposure: clamped value to domain", "field", field, "value", v, "bound", lo)
		return lo
	case v > hi:
		slog.Debug("exposure: clamped value to domain", "field", field, "value", v, "bound", hi)
		return hi
	}
	return v
}
