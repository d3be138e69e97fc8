package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/lyra-camera-engine/internal/capture"
	"github.com/e7canasta/lyra-camera-engine/internal/device"
	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
	"github.com/e7canasta/lyra-camera-engine/internal/modes"
)

func newTestEngine(t *testing.T, tweaks ...func(*Options)) *Engine {
	t.Helper()

	opts := Options{
		InstanceID: "lyra-test",
		Provider:   device.NewSynthetic(device.SyntheticConfig{}),
		DefaultRequest: device.Request{
			Facing:     device.FacingEnvironment,
			Resolution: device.Res480p,
			FPS:        60,
		},
		ExportDir: t.TempDir(),
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}

	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(e.Shutdown)
	return e
}

func TestNewValidation(t *testing.T) {
	base := func() Options {
		return Options{
			InstanceID:     "lyra-test",
			Provider:       device.NewSynthetic(device.SyntheticConfig{}),
			DefaultRequest: device.Request{Facing: device.FacingEnvironment, Resolution: device.Res480p},
			ExportDir:      t.TempDir(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty instance id", func(o *Options) { o.InstanceID = "" }},
		{"invalid facing", func(o *Options) { o.DefaultRequest.Facing = "sideways" }},
		{"empty export dir", func(o *Options) { o.ExportDir = "" }},
		{"nil provider", func(o *Options) { o.Provider = nil }},
		{"bad jpeg quality", func(o *Options) { o.Pipeline.JPEGQuality = 400 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestFreezeMotionSelection(t *testing.T) {
	e := newTestEngine(t)

	got, err := e.SelectMode("freezeMotion")
	require.NoError(t, err)

	assert.Equal(t, 5.6, got.Aperture)
	assert.Equal(t, 1.0/1000, got.ShutterSpeed)
	assert.Equal(t, 400, got.ISO)
	assert.Equal(t, exposure.FocusContinuous, got.FocusMode)
	assert.Equal(t, "freezeMotion", e.ActiveMode())

	// Fields the mode does not name keep their previous values.
	defaults := exposure.Defaults()
	assert.Equal(t, defaults.WhiteBalance, got.WhiteBalance)
	assert.Equal(t, defaults.FlashMode, got.FlashMode)
	assert.Equal(t, defaults.ExposureCompensation, got.ExposureCompensation)
	assert.Equal(t, defaults.MeteringMode, got.MeteringMode)
}

func TestManualModeChangesNothing(t *testing.T) {
	e := newTestEngine(t)

	before, err := e.SetField("iso", "800")
	require.NoError(t, err)

	after, err := e.SelectMode(modes.ManualID)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, 800, after.ISO)
	assert.Equal(t, modes.ManualID, e.ActiveMode())
}

func TestSelectModeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.SelectMode("nightScene")
	require.NoError(t, err)
	second, err := e.SelectMode("nightScene")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "nightScene", e.ActiveMode())
}

func TestSelectUnknownMode(t *testing.T) {
	e := newTestEngine(t)
	before := e.Settings()

	_, err := e.SelectMode("astro")
	assert.ErrorIs(t, err, modes.ErrNotFound)
	assert.Equal(t, before, e.Settings())
	assert.Equal(t, modes.ManualID, e.ActiveMode())
}

func TestModesListedInDeclarationOrder(t *testing.T) {
	e := newTestEngine(t)

	list := e.Modes()
	require.NotEmpty(t, list)
	assert.Equal(t, modes.ManualID, list[0].ID)

	m, err := e.Mode("portrait")
	require.NoError(t, err)
	assert.Equal(t, "portrait", m.ID)
}

func TestSetFieldClampsOutOfDomainValues(t *testing.T) {
	e := newTestEngine(t)

	got, err := e.SetField("iso", "99999")
	require.NoError(t, err)
	assert.Equal(t, exposure.ISOMax, got.ISO)

	got, err = e.SetField("aperture", "0.5")
	require.NoError(t, err)
	assert.Equal(t, exposure.ApertureMin, got.Aperture)
}

func TestSetFieldUnknownField(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SetField("sharpness", "high")
	assert.ErrorIs(t, err, exposure.ErrUnknownField)
	assert.Equal(t, exposure.Defaults(), e.Settings())
}

func TestDirectWritesKeepActiveModeLabel(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SelectMode("portrait")
	require.NoError(t, err)

	_, err = e.SetField("iso", "1600")
	require.NoError(t, err)
	assert.Equal(t, "portrait", e.ActiveMode())
}

func TestResetSettings(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SelectMode("macro")
	require.NoError(t, err)
	_, err = e.SetField("exposureCompensation", "2")
	require.NoError(t, err)

	got := e.ResetSettings()
	assert.Equal(t, exposure.Defaults(), got)
	assert.Equal(t, modes.ManualID, e.ActiveMode())
}

func TestCaptureBeforeStart(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Capture(context.Background())
	assert.ErrorIs(t, err, capture.ErrNotLive)

	_, ok := e.Artifact()
	assert.False(t, ok)
}

func TestCaptureExportFlow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	_, err := e.SelectMode("landscape")
	require.NoError(t, err)

	art, err := e.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "landscape", art.Mode)
	assert.Equal(t, 100, art.Settings.ISO)
	assert.Equal(t, 640, art.Width)
	assert.Equal(t, 480, art.Height)

	path, err := e.Export("")
	require.NoError(t, err)
	assert.Equal(t, art.Filename(), filepath.Base(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	other := t.TempDir()
	path, err = e.Export(other)
	require.NoError(t, err)
	assert.Equal(t, other, filepath.Dir(path))
}

func TestCaptureAfterStop(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	e.Stop()
	e.Stop() // idempotent

	_, err := e.Capture(ctx)
	assert.ErrorIs(t, err, capture.ErrNotLive)
}

func TestStartWithOverrides(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.StartWith(ctx, "user", "720p"))

	st := e.Status()
	assert.Equal(t, capture.StateLive, st.State)
	assert.Equal(t, "user", st.Facing)
	assert.Equal(t, "720p", st.Resolution)
}

func TestStartWithInvalidArguments(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.StartWith(ctx, "sideways", "")
	assert.Error(t, err)

	err = e.StartWith(ctx, "", "4k")
	assert.Error(t, err)

	// Neither bad request touched the session.
	assert.Equal(t, capture.StateIdle, e.Status().State)
}

func TestStatusSnapshot(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st := e.Status()
	assert.Equal(t, "lyra-test", st.InstanceID)
	assert.Equal(t, capture.StateIdle, st.State)
	assert.Equal(t, modes.ManualID, st.ActiveMode)
	assert.Empty(t, st.Facing)
	assert.Nil(t, st.Artifact)
	assert.Equal(t, exposure.Defaults(), st.Settings)

	require.NoError(t, e.Start(ctx))
	_, err := e.Capture(ctx)
	require.NoError(t, err)

	st = e.Status()
	assert.Equal(t, capture.StateLive, st.State)
	assert.Equal(t, "environment", st.Facing)
	assert.Equal(t, "480p", st.Resolution)
	require.NotNil(t, st.Artifact)
	assert.Equal(t, uint64(1), st.Artifact.Seq)
	assert.NotZero(t, st.Artifact.SizeBytes)
	assert.Equal(t, uint64(1), st.Pipeline.Captures)
	assert.True(t, st.Pipeline.HasArtifact)
}

func TestFallbackWhenPrimaryFacingMissing(t *testing.T) {
	// Simulated hardware with only a user-facing camera: asking for
	// environment must fall back and still go live.
	e := newTestEngine(t, func(o *Options) {
		o.Provider = device.NewSynthetic(device.SyntheticConfig{
			Facings: []device.Facing{device.FacingUser},
		})
	})

	require.NoError(t, e.Start(context.Background()))

	st := e.Status()
	assert.Equal(t, capture.StateLive, st.State)
	assert.Equal(t, "user", st.Facing)
	assert.Equal(t, "480p", st.Resolution)
	assert.Equal(t, uint64(1), st.Session.Fallbacks)
}
