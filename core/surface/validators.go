package surface

import (
	"image/color"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/image/colornames"

	"github.com/trezcool/masomo-board/core"
)

var (
	// custom validation tags & texts
	objectKindTag  = "objectkind"
	objectKindText = "{0} must be one of: path, line, rect, ellipse, text"
	compositeTag   = "composite"
	compositeText  = "{0} must be one of: source-over, destination-out"
	colorTag       = "color"
	colorText      = "{0} must be a hex color or a CSS color name"

	errInvalidColor = errors.New("invalid color")
)

// InitValidators registers the surface validation tags. translator may be nil.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(objectKindTag, func(fl validator.FieldLevel) bool {
		return Kind(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(compositeTag, func(fl validator.FieldLevel) bool {
		c := Composite(fl.Field().String())
		return c == CompositeInk || c == CompositeErase
	})
	_ = validate.RegisterValidation(colorTag, func(fl validator.FieldLevel) bool {
		_, err := ParseColor(fl.Field().String())
		return err == nil
	})

	if translator != nil {
		core.RegisterCustomTranslation(validate, translator, objectKindTag, objectKindText)
		core.RegisterCustomTranslation(validate, translator, compositeTag, compositeText)
		core.RegisterCustomTranslation(validate, translator, colorTag, colorText)
	}
}

// NewValidator returns a validator that knows the surface tags.
func NewValidator() *validator.Validate {
	validate := validator.New()
	InitValidators(validate, nil)
	return validate
}

// ParseColor parses `#rgb`, `#rrggbb` and CSS color names (eg: "black", "red").
func ParseColor(s string) (color.Color, error) {
	s = core.CleanString(s, true /* lower */)
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		switch len(hex) {
		case 3:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6:
		default:
			return nil, errInvalidColor
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, errInvalidColor
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	return nil, errInvalidColor
}

func mustParseColor(s string, fallback color.Color) color.Color {
	if c, err := ParseColor(s); err == nil {
		return c
	}
	return fallback
}
