// Package qr wraps the QR symbol encoder, turning a content string and a
// rendering spec into PNG bytes. It writes nothing to disk; packaging is
// the archive layer's concern.
package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Module size bounds, in pixels per symbol module.
const (
	MinModuleSize = 1
	MaxModuleSize = 40
)

// Level is a QR error-correction level.
type Level string

const (
	LevelLow     Level = "L" // ~7% recovery
	LevelMedium  Level = "M" // ~15% recovery
	LevelQuality Level = "Q" // ~25% recovery
	LevelHigh    Level = "H" // ~30% recovery
)

// Spec configures one generation run. A Spec is immutable once the run
// starts; out-of-range values are rejected by Validate rather than
// clamped, so a misconfigured request fails before any row is processed.
type Spec struct {
	// ModuleSize is the rendered size of one symbol module in pixels,
	// within [MinModuleSize, MaxModuleSize].
	ModuleSize int `json:"module_size"`

	// Border is the quiet-zone width in modules. Non-negative; the QR
	// standard recommends 4.
	Border int `json:"border"`

	// OutputSize, when positive, rescales the final image to
	// OutputSize x OutputSize pixels. Zero keeps the native size.
	OutputSize int `json:"output_size"`

	// ErrorCorrection is one of L, M, Q, H.
	ErrorCorrection Level `json:"error_correction"`
}

// DefaultSpec mirrors the defaults users see in the generation form.
func DefaultSpec() Spec {
	return Spec{
		ModuleSize:      10,
		Border:          4,
		ErrorCorrection: LevelLow,
	}
}

// Validate checks all fields and reports every problem at once.
func (s Spec) Validate() error {
	var errs []string

	if s.ModuleSize < MinModuleSize || s.ModuleSize > MaxModuleSize {
		errs = append(errs, fmt.Sprintf("module size (%d) must be %d-%d", s.ModuleSize, MinModuleSize, MaxModuleSize))
	}
	if s.Border < 0 {
		errs = append(errs, fmt.Sprintf("border (%d) must be non-negative", s.Border))
	}
	if s.OutputSize < 0 {
		errs = append(errs, fmt.Sprintf("output size (%d) must be non-negative", s.OutputSize))
	}
	if _, err := s.recoveryLevel(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid qr spec: %s", strings.Join(errs, "; "))
	}
	return nil
}

// recoveryLevel maps the spec's level to the encoder's constant.
func (s Spec) recoveryLevel() (qrcode.RecoveryLevel, error) {
	switch Level(strings.ToUpper(string(s.ErrorCorrection))) {
	case LevelLow, "":
		return qrcode.Low, nil
	case LevelMedium:
		return qrcode.Medium, nil
	case LevelQuality:
		return qrcode.High, nil
	case LevelHigh:
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("error correction (%q) must be one of L, M, Q, H", s.ErrorCorrection)
	}
}
