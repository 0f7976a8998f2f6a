package image

import (
	"bytes"
	"context"
	"image/png"
	"testing"
)

func TestSyntheticGeneratorIsDeterministic(t *testing.T) {
	gen := NewSyntheticGenerator(64)
	a, err := gen.Generate(context.Background(), "sunset over dunes")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := gen.Generate(context.Background(), "sunset over dunes")
	if !bytes.Equal(a, b) {
		t.Fatalf("same prompt produced different images")
	}
	c, _ := gen.Generate(context.Background(), "forest at dawn")
	if bytes.Equal(a, c) {
		t.Fatalf("different prompts produced identical images")
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 64 {
		t.Fatalf("size = %dx%d, want 64x64", cfg.Width, cfg.Height)
	}
}
