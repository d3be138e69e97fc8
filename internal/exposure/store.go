package exposure

import (
	"log/slog"
	"sync"
)

// Store holds the live exposure settings behind a mutex. Every write
// path clamps numeric values into their domains and drops invalid enum
// members, so the stored state always satisfies the domain rules.
type Store struct {
	mu       sync.RWMutex
	settings Settings
}

// NewStore returns a store holding Defaults().
func NewStore() *Store {
	return &Store{settings: Defaults()}
}

// Settings returns a copy of the current parameter set.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Apply merges the override field by field: set fields replace the
// stored value (clamped into domain), nil fields keep what was there.
// It returns the resulting parameter set.
func (s *Store) Apply(o Override) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Aperture != nil {
		s.settings.Aperture = clampFloat(*o.Aperture, ApertureMin, ApertureMax, "aperture")
	}
	if o.ShutterSpeed != nil {
		s.settings.ShutterSpeed = clampFloat(*o.ShutterSpeed, ShutterSpeedMin, ShutterSpeedMax, "shutterSpeed")
	}
	if o.ISO != nil {
		s.settings.ISO = clampInt(*o.ISO, ISOMin, ISOMax, "iso")
	}
	if o.WhiteBalance != nil {
		if o.WhiteBalance.Valid() {
			s.settings.WhiteBalance = *o.WhiteBalance
		} else {
			slog.Warn("exposure: dropped invalid white balance", "value", string(*o.WhiteBalance))
		}
	}
	if o.FocusMode != nil {
		if o.FocusMode.Valid() {
			s.settings.FocusMode = *o.FocusMode
		} else {
			slog.Warn("exposure: dropped invalid focus mode", "value", string(*o.FocusMode))
		}
	}
	if o.FlashMode != nil {
		if o.FlashMode.Valid() {
			s.settings.FlashMode = *o.FlashMode
		} else {
			slog.Warn("exposure: dropped invalid flash mode", "value", string(*o.FlashMode))
		}
	}
	if o.ExposureCompensation != nil {
		s.settings.ExposureCompensation = clampFloat(*o.ExposureCompensation, ExposureCompMin, ExposureCompMax, "exposureCompensation")
	}
	if o.MeteringMode != nil {
		if o.MeteringMode.Valid() {
			s.settings.MeteringMode = *o.MeteringMode
		} else {
			slog.Warn("exposure: dropped invalid metering mode", "value", string(*o.MeteringMode))
		}
	}
	return s.settings
}

// SetAperture stores the f-number, clamped into [1.4, 22].
func (s *Store) SetAperture(v float64) Settings {
	return s.Apply(Override{Aperture: &v})
}

// SetShutterSpeed stores the shutter speed in seconds, clamped into
// [1/8000, 30].
func (s *Store) SetShutterSpeed(v float64) Settings {
	return s.Apply(Override{ShutterSpeed: &v})
}

// SetISO stores the sensitivity, clamped into [50, 6400].
func (s *Store) SetISO(v int) Settings {
	return s.Apply(Override{ISO: &v})
}

// SetWhiteBalance stores the white balance; invalid members are
// dropped.
func (s *Store) SetWhiteBalance(v WhiteBalance) Settings {
	return s.Apply(Override{WhiteBalance: &v})
}

// SetFocusMode stores the focus mode; invalid members are dropped.
func (s *Store) SetFocusMode(v FocusMode) Settings {
	return s.Apply(Override{FocusMode: &v})
}

// SetFlashMode stores the flash mode; invalid members are dropped.
func (s *Store) SetFlashMode(v FlashMode) Settings {
	return s.Apply(Override{FlashMode: &v})
}

// SetExposureCompensation stores the EV bias, clamped into [-3, +3].
func (s *Store) SetExposureCompensation(v float64) Settings {
	return s.Apply(Override{ExposureCompensation: &v})
}

// SetMeteringMode stores the metering pattern; invalid members are
// dropped.
func (s *Store) SetMeteringMode(v MeteringMode) Settings {
	return s.Apply(Override{MeteringMode: &v})
}

// Reset restores Defaults() and returns them.
func (s *Store) Reset() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = Defaults()
	return s.settings
}
