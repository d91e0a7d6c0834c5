package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers the wizard tools with the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("wizard-state",
			mcp.WithDescription("Show the current wizard step, its choices, the collected settings and any error notice"),
		),
		s.handleState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-select",
			mcp.WithDescription("Choose an entry on a list step (language, keyboard, timezone, network, disk)"),
			mcp.WithString("id", mcp.Required(),
				mcp.Description("Choice id as listed by wizard-state"),
			),
			mcp.WithString("step",
				mcp.Description("Step to select on (default: current step)"),
			),
			mcp.WithString("partitioning",
				mcp.Description("Disk step only: auto or manual"),
				mcp.Enum("auto", "manual"),
			),
		),
		s.handleSelect,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-set-field",
			mcp.WithDescription("Fill an account form field"),
			mcp.WithString("field", mcp.Required(),
				mcp.Description("Form field"),
				mcp.Enum("fullname", "username", "password", "confirm", "hostname"),
			),
			mcp.WithString("value", mcp.Required(),
				mcp.Description("New field value"),
			),
		),
		s.handleSetField,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-advance",
			mcp.WithDescription("Submit the current step and move to the next one. Leaving the summary starts the installation"),
		),
		s.handleAdvance,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-retreat",
			mcp.WithDescription("Go back one step without submitting"),
		),
		s.handleRetreat,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-connect-network",
			mcp.WithDescription("Join a Wi-Fi network reported on the network step"),
			mcp.WithString("ssid", mcp.Required(),
				mcp.Description("Network name"),
			),
			mcp.WithString("password",
				mcp.Description("Passphrase for secured networks"),
			),
		),
		s.handleConnectNetwork,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wizard-dismiss-notice",
			mcp.WithDescription("Clear the current error notice"),
		),
		s.handleDismissNotice,
	)
}
