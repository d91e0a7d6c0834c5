package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/twinaos/installer/internal/wizard"
)

// stateDoc is the JSON shape returned by wizard-state and after every
// successful action.
type stateDoc struct {
	Step       wizard.StepID     `json:"step"`
	Title      string            `json:"title"`
	Index      int               `json:"index"`
	Total      int               `json:"total"`
	CanAdvance bool              `json:"can_advance"`
	CanRetreat bool              `json:"can_retreat"`
	Busy       bool              `json:"busy"`
	Choices    []choiceDoc       `json:"choices,omitempty"`
	Form       map[string]string `json:"form,omitempty"`
	Config     wizard.Config     `json:"config"`
	Summary    *wizard.Summary   `json:"summary,omitempty"`
	Progress   *progressDoc      `json:"progress,omitempty"`
	Notice     string            `json:"notice,omitempty"`
}

type choiceDoc struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Detail   string `json:"detail,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

type progressDoc struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

func describe(v wizard.View) stateDoc {
	doc := stateDoc{
		Step:       v.Step,
		Title:      v.Step.Title(),
		Index:      v.Index,
		Total:      len(v.Steps),
		CanAdvance: v.CanAdvance,
		CanRetreat: v.CanRetreat,
		Busy:       v.Busy,
		Config:     v.Config,
	}
	if cl, ok := v.Choices[v.Step]; ok {
		for _, it := range cl.Items {
			doc.Choices = append(doc.Choices, choiceDoc{
				ID:       it.ID,
				Label:    it.Label,
				Detail:   it.Detail,
				Selected: it.ID == cl.Selected,
			})
		}
	}
	switch v.Step {
	case wizard.StepUser:
		u := v.Form.User
		doc.Form = map[string]string{
			"fullname": u.FullName,
			"username": u.Username,
			"hostname": u.Hostname,
			"password": v.Strength.Label,
			"confirm":  v.Confirm.String(),
		}
	case wizard.StepDisk:
		doc.Form = map[string]string{"partitioning": string(v.Form.Partitioning)}
	case wizard.StepSummary:
		doc.Summary = &v.Summary
	case wizard.StepProgress, wizard.StepComplete:
		doc.Progress = &progressDoc{Percent: v.Progress.Percent, Message: v.Progress.Message, Done: v.Progress.Done}
	}
	if v.Notice != nil {
		doc.Notice = v.Notice.Message
	}
	return doc
}

func (s *Server) stateResult() (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(describe(s.wiz.View()), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleState(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.stateResult()
}

func (s *Server) handleSelect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("missing 'id' parameter"), nil
	}
	step := wizard.StepID(request.GetString("step", string(s.wiz.View().Step)))
	if err := s.wiz.Select(step, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if mode := request.GetString("partitioning", ""); mode != "" {
		if step != wizard.StepDisk {
			return mcp.NewToolResultError("partitioning applies to the disk step only"), nil
		}
		s.wiz.SetPartitioning(wizard.PartitionMode(mode))
	}
	return s.stateResult()
}

func (s *Server) handleSetField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field := request.GetString("field", "")
	if err := s.wiz.SetField(wizard.Field(field), request.GetString("value", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.stateResult()
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.wiz.Advance(ctx); err != nil {
		msg := err.Error()
		if n := s.wiz.View().Notice; n != nil {
			msg += ": " + n.Message
		}
		return mcp.NewToolResultError(msg), nil
	}
	return s.stateResult()
}

func (s *Server) handleRetreat(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.wiz.Retreat(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.stateResult()
}

func (s *Server) handleConnectNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ssid := request.GetString("ssid", "")
	if ssid == "" {
		return mcp.NewToolResultError("missing 'ssid' parameter"), nil
	}
	res, err := s.wiz.ConnectNetwork(ctx, ssid, request.GetString("password", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("connection to %s failed: %s", ssid, res.Message)), nil
	}
	return s.stateResult()
}

func (s *Server) handleDismissNotice(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.wiz.DismissNotice()
	return s.stateResult()
}
