package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "FRAME_WORKERS", "JPEG_QUALITY", "BRIGHTNESS_SCALE", "DEFAULT_PRESET"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.FrameWorkers != 2 || cfg.JPEGQuality != 95 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BrightnessScale != 0.95 || cfg.DefaultPreset != "road-marking" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("FRAME_WORKERS", "6")
	t.Setenv("BRIGHTNESS_SCALE", "0.8")
	t.Setenv("MIN_ROI_SIZE", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FrameWorkers != 6 || cfg.BrightnessScale != 0.8 {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if cfg.MinROISize != 5 {
		t.Fatalf("bad int should fall back, got %d", cfg.MinROISize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"FRAME_WORKERS":    "0",
		"JPEG_QUALITY":     "101",
		"PIXEL_WORKERS":    "-1",
		"BRIGHTNESS_SCALE": "-2",
		"MIN_ROI_SIZE":     "-3",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", k, v)
			}
		})
	}
}
