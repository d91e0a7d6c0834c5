package theme

// NewCatppuccinMocha creates the default Catppuccin Mocha theme.
func NewCatppuccinMocha() *Theme {
	return &Theme{
		Name:   "catppuccin-mocha",
		IsDark: true,

		Primary:   "#cba6f7", // Mauve
		Secondary: "#b4befe", // Lavender
		Tertiary:  "#89b4fa", // Blue

		BgCrust:    "#11111b",
		BgMantle:   "#181825",
		BgBase:     "#1e1e2e",
		BgSurface0: "#313244",
		BgSurface1: "#45475a",
		BgSurface2: "#585b70",

		FgMuted:  "#6c7086", // Overlay0
		FgSubtle: "#a6adc8", // Subtext0
		FgBase:   "#cdd6f4", // Text
		FgBright: "#f5e0dc", // Rosewater

		Success: "#a6e3a1", // Green
		Warning: "#f9e2af", // Yellow
		Error:   "#f38ba8", // Red
		Info:    "#89dceb", // Sky
	}
}
