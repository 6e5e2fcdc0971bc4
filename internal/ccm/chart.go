package ccm

// Checker24 holds the sRGB values of the classic 24-patch color checker, row by
// row from dark skin to black, in buffer channel order (B, G, R).
var Checker24 = []Vec3{
	{68, 82, 115},   // dark skin
	{130, 150, 194}, // light skin
	{157, 122, 98},  // blue sky
	{67, 108, 87},   // foliage
	{177, 128, 133}, // blue flower
	{170, 189, 103}, // bluish green
	{44, 126, 214},  // orange
	{166, 91, 80},   // purplish blue
	{99, 90, 193},   // moderate red
	{108, 60, 94},   // purple
	{64, 188, 157},  // yellow green
	{46, 163, 224},  // orange yellow
	{150, 61, 56},   // blue
	{73, 148, 70},   // green
	{60, 54, 175},   // red
	{31, 199, 231},  // yellow
	{149, 86, 187},  // magenta
	{161, 133, 8},   // cyan
	{242, 243, 243}, // white
	{200, 200, 200}, // neutral 8
	{160, 160, 160}, // neutral 6.5
	{121, 122, 122}, // neutral 5
	{85, 85, 85},    // neutral 3.5
	{52, 52, 52},    // black
}

// ReferenceChart returns a copy of Checker24.
func ReferenceChart() []Vec3 {
	out := make([]Vec3, len(Checker24))
	copy(out, Checker24)
	return out
}
