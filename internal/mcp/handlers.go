package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tacitsys/dncdbg-mcp/internal/engine"
	dbgerrors "github.com/tacitsys/dncdbg-mcp/internal/errors"
	"github.com/tacitsys/dncdbg-mcp/internal/version"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

func contextFromHandler() context.Context {
	return context.Background()
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// errorResult logs the request id against the failure and renders the
// DebugError in the shape the agent-facing wrapper expects: code, message,
// hint, details.
func (s *Server) errorResult(requestID string, err error) (*mcp.CallToolResult, error) {
	de := dbgerrors.FromError(err).WithDetails("requestId", requestID)
	log.Printf("mcp[%s]: %v", requestID, de)
	body, mErr := json.Marshal(map[string]interface{}{
		"code":    de.Code,
		"message": de.Message,
		"hint":    de.Hint,
		"details": de.Details,
	})
	if mErr != nil {
		return mcp.NewToolResultError(de.Error()), nil
	}
	return mcp.NewToolResultError(string(body)), nil
}

// Session management

func (s *Server) handleDebugLaunch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	appDLLPath, err := request.RequireString("app_dll_path")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("app_dll_path"))
	}
	projectPath, _ := request.RequireString("project_path")
	firstChance := request.GetBool("first_chance_exceptions", s.config.FirstChanceExceptions)

	ev, err := s.engine.Launch(ctx, engine.LaunchRequest{
		ProjectPath:           projectPath,
		AppDLLPath:            appDLLPath,
		FirstChanceExceptions: firstChance,
	})
	if err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"state":   string(types.StateStopped),
		"event":   ev,
	})
}

func (s *Server) handleDebugLaunchTest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	projectPath, err := request.RequireString("project_path")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("project_path"))
	}
	appDLLPath, err := request.RequireString("app_dll_path")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("app_dll_path"))
	}
	firstChance := request.GetBool("first_chance_exceptions", s.config.FirstChanceExceptions)

	runCmd := []string{"dotnet", "test", projectPath}
	if filter, _ := request.RequireString("filter"); filter != "" {
		runCmd = append(runCmd, "--filter", filter)
	}

	ev, err := s.engine.Launch(ctx, engine.LaunchRequest{
		ProjectPath:           projectPath,
		AppDLLPath:            appDLLPath,
		FirstChanceExceptions: firstChance,
		RunCommand:            runCmd,
	})
	if err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"state":   string(types.StateStopped),
		"event":   ev,
	})
}

func (s *Server) handleDebugAttach(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	pidFloat, err := request.RequireFloat("pid")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("pid"))
	}

	result, err := s.engine.Attach(ctx, int(pidFloat))
	if err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success":      true,
		"state":        "attached",
		"pid":          result.PID,
		"process_name": result.ProcessName,
	})
}

func (s *Server) handleDebugDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	if err := s.engine.Disconnect(ctx); err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"state":   string(types.StateIdle),
	})
}

func (s *Server) handleDebugStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.engine.Status()
	return jsonResult(map[string]interface{}{
		"state":   string(status.State),
		"version": version.Version,
	})
}

// Breakpoints

func (s *Server) handleDebugSetBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	dllPath, err := request.RequireString("dll_path")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("dll_path"))
	}
	sourceFile, err := request.RequireString("source_file")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("source_file"))
	}
	lineFloat, err := request.RequireFloat("line")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("line"))
	}

	record, err := s.engine.SetBreakpoint(ctx, dllPath, sourceFile, uint32(lineFloat))
	if err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"id":      record.ID,
		"file":    sourceFile,
		"line":    uint32(lineFloat),
	})
}

func (s *Server) handleDebugRemoveBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	idFloat, err := request.RequireFloat("id")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("id"))
	}

	if err := s.engine.RemoveBreakpoint(ctx, uint32(idFloat)); err != nil {
		return s.errorResult(reqID, err)
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"id":      uint32(idFloat),
	})
}

// Execution control

func (s *Server) handleDebugContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	ev, err := s.engine.Continue(ctx)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return stopResult(s.engine, ev)
}

func (s *Server) handleDebugStepOver(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleStep(ctx, request, s.engine.StepOver)
}

func (s *Server) handleDebugStepInto(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleStep(ctx, request, s.engine.StepInto)
}

func (s *Server) handleDebugStepOut(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleStep(ctx, request, s.engine.StepOut)
}

type stepFunc func(ctx context.Context, threadID *int32) (*types.DebugEvent, error)

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest, step stepFunc) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	var threadID *int32
	if tid, err := request.RequireFloat("thread_id"); err == nil {
		v := int32(tid)
		threadID = &v
	}

	ev, err := step(ctx, threadID)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return stopResult(s.engine, ev)
}

func (s *Server) handleDebugPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	ev, err := s.engine.Pause(ctx)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return stopResult(s.engine, ev)
}

func stopResult(eng *engine.Engine, ev *types.DebugEvent) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"success": true,
		"state":   string(eng.Status().State),
		"event":   ev,
	})
}

// Inspection

func (s *Server) handleDebugVariables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	var threadID *int32
	if tid, err := request.RequireFloat("thread_id"); err == nil {
		v := int32(tid)
		threadID = &v
	}

	vars, err := s.engine.GetLocals(ctx, threadID)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return jsonResult(vars)
}

func (s *Server) handleDebugStacktrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	var threadID *int32
	if tid, err := request.RequireFloat("thread_id"); err == nil {
		v := int32(tid)
		threadID = &v
	}

	frames, err := s.engine.GetStackTrace(ctx, threadID)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return jsonResult(frames)
}

func (s *Server) handleDebugEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.newRequestID()

	expression, err := request.RequireString("expression")
	if err != nil {
		return s.errorResult(reqID, dbgerrors.MissingParameter("expression"))
	}

	result, err := s.engine.Evaluate(ctx, expression)
	if err != nil {
		return s.errorResult(reqID, err)
	}
	return jsonResult(result)
}
