package script

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor accepts an SVG colour name, #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.RGBA, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	if spec == "" {
		return color.RGBA{}, fmt.Errorf("color cannot be empty")
	}
	if spec == "transparent" {
		return color.RGBA{}, nil
	}
	if c, ok := colornames.Map[spec]; ok {
		return c, nil
	}
	if strings.HasPrefix(spec, "#") && (len(spec) == 7 || len(spec) == 9) {
		var ch [4]uint8
		ch[3] = 255
		for i := 0; i < (len(spec)-1)/2; i++ {
			v, err := strconv.ParseUint(spec[1+2*i:3+2*i], 16, 8)
			if err != nil {
				return color.RGBA{}, fmt.Errorf("invalid color %q", s)
			}
			ch[i] = uint8(v)
		}
		// image/color wants premultiplied channels
		a := uint32(ch[3])
		return color.RGBA{
			R: uint8(uint32(ch[0]) * a / 255),
			G: uint8(uint32(ch[1]) * a / 255),
			B: uint8(uint32(ch[2]) * a / 255),
			A: ch[3],
		}, nil
	}
	return color.RGBA{}, fmt.Errorf("invalid color %q", s)
}
