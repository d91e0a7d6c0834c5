package theme

import "fmt"

// Blend mixes two #RRGGBB colors; pos 0 is a, 1 is b. Values outside [0,1]
// are clamped.
func Blend(a, b string, pos float64) string {
	pos = min(max(pos, 0), 1)
	r1, g1, b1 := parseHex(a)
	r2, g2, b2 := parseHex(b)
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x)*(1-pos) + float64(y)*pos)
	}
	return fmt.Sprintf("#%02x%02x%02x", mix(r1, r2), mix(g1, g2), mix(b1, b2))
}

// parseHex reads #RRGGBB. Anything else is black.
func parseHex(hex string) (r, g, b uint8) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) == 6 {
		_, _ = fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	}
	return r, g, b
}
