package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the spec §6 tool table. Inspection and session
// tools are always available; execution-control tools are gated by the
// configured capability mode, matching the teacher's readonly/full split.
func (s *Server) registerTools() {
	s.registerDebugLaunch()
	s.registerDebugLaunchTest()
	s.registerDebugAttach()
	s.registerDebugDisconnect()
	s.registerDebugStatus()

	s.registerDebugVariables()
	s.registerDebugStacktrace()
	s.registerDebugEvaluate()

	if s.config.CanUseControlTools() {
		s.registerDebugSetBreakpoint()
		s.registerDebugRemoveBreakpoint()
		s.registerDebugContinue()
		s.registerDebugStepOver()
		s.registerDebugStepInto()
		s.registerDebugStepOut()
		s.registerDebugPause()
	}
}

func (s *Server) registerDebugLaunch() {
	tool := mcp.NewTool("debug_launch",
		mcp.WithDescription("Build (if project_path is given) and launch a .NET app suspended at entry, then wait for the runtime to report the process created. Returns the stopped session state."),
		mcp.WithString("project_path",
			mcp.Description("Path to the .csproj/.sln to build with `dotnet build` before launching. Omit to launch app_dll_path as-is."),
		),
		mcp.WithString("app_dll_path",
			mcp.Required(),
			mcp.Description("Path to the built application DLL to run with `dotnet <app_dll_path>`."),
		),
		mcp.WithBoolean("first_chance_exceptions",
			mcp.Description("Stop on first-chance (caught) exceptions too, not just unhandled ones. Default: false."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugLaunch)
}

func (s *Server) registerDebugLaunchTest() {
	tool := mcp.NewTool("debug_launch_test",
		mcp.WithDescription("Build and launch an xUnit test project under the debugger (`dotnet test`) instead of running the app directly. Same suspended-launch/startup-callback path as debug_launch."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Path to the xUnit test project's .csproj to build and run."),
		),
		mcp.WithString("app_dll_path",
			mcp.Required(),
			mcp.Description("Path to the built test assembly DLL (used to resolve breakpoints set before the first stop)."),
		),
		mcp.WithString("filter",
			mcp.Description("`dotnet test --filter` expression to select which tests run."),
		),
		mcp.WithBoolean("first_chance_exceptions",
			mcp.Description("Stop on first-chance (caught) exceptions too. Default: false."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugLaunchTest)
}

func (s *Server) registerDebugAttach() {
	tool := mcp.NewTool("debug_attach",
		mcp.WithDescription("Attach to an already-running .NET process. The target keeps running after attach completes; use debug_pause to stop it."),
		mcp.WithNumber("pid",
			mcp.Required(),
			mcp.Description("Process ID of the running .NET process to attach to."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugAttach)
}

func (s *Server) registerDebugDisconnect() {
	tool := mcp.NewTool("debug_disconnect",
		mcp.WithDescription("Disconnect from the current debug session, stopping and terminating the debuggee process (best-effort). Idempotent; safe to call with no active session."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugDisconnect)
}

func (s *Server) registerDebugStatus() {
	tool := mcp.NewTool("debug_status",
		mcp.WithDescription("Report the current session state (idle, running, stopped, exited) and the engine's build version."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStatus)
}

func (s *Server) registerDebugSetBreakpoint() {
	tool := mcp.NewTool("debug_set_breakpoint",
		mcp.WithDescription("Set a source-level breakpoint. Resolved immediately if the owning module is already loaded, otherwise queued until it loads."),
		mcp.WithString("dll_path",
			mcp.Required(),
			mcp.Description("Path to the DLL containing the target method (used to resolve the PDB and to match the loaded module)."),
		),
		mcp.WithString("source_file",
			mcp.Required(),
			mcp.Description("Source file path as it appears in the PDB's sequence points."),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based source line number."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugSetBreakpoint)
}

func (s *Server) registerDebugRemoveBreakpoint() {
	tool := mcp.NewTool("debug_remove_breakpoint",
		mcp.WithDescription("Remove a previously set breakpoint by id. Removing an unknown id is not an error."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Breakpoint id returned from debug_set_breakpoint."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugRemoveBreakpoint)
}

func (s *Server) registerDebugContinue() {
	tool := mcp.NewTool("debug_continue",
		mcp.WithDescription("Resume execution and wait for the next stop (breakpoint, step complete, exception, pause, or exit)."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugContinue)
}

func (s *Server) registerDebugStepOver() {
	tool := mcp.NewTool("debug_step_over",
		mcp.WithDescription("Step the selected thread to the next source line without descending into called methods, then wait for the stop."),
		mcp.WithNumber("thread_id",
			mcp.Description("Thread to step. Defaults to the thread that last stopped."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStepOver)
}

func (s *Server) registerDebugStepInto() {
	tool := mcp.NewTool("debug_step_into",
		mcp.WithDescription("Step the selected thread into the next call on the current source line, then wait for the stop."),
		mcp.WithNumber("thread_id",
			mcp.Description("Thread to step. Defaults to the thread that last stopped."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStepInto)
}

func (s *Server) registerDebugStepOut() {
	tool := mcp.NewTool("debug_step_out",
		mcp.WithDescription("Run the selected thread until its current method returns to its caller, then wait for the stop."),
		mcp.WithNumber("thread_id",
			mcp.Description("Thread to step. Defaults to the thread that last stopped."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStepOut)
}

func (s *Server) registerDebugPause() {
	tool := mcp.NewTool("debug_pause",
		mcp.WithDescription("Interrupt a running debuggee and wait for the resulting pause stop. Valid while running or already stopped."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugPause)
}

func (s *Server) registerDebugVariables() {
	tool := mcp.NewTool("debug_variables",
		mcp.WithDescription("Read the locals and arguments of the active frame for a thread (or the thread that last stopped, if omitted)."),
		mcp.WithNumber("thread_id",
			mcp.Description("Thread to read. Defaults to the thread that last stopped."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugVariables)
}

func (s *Server) registerDebugStacktrace() {
	tool := mcp.NewTool("debug_stacktrace",
		mcp.WithDescription("Get the call stack for one thread, or every known thread if thread_id is omitted."),
		mcp.WithNumber("thread_id",
			mcp.Description("Specific thread, or omit for all known threads."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStacktrace)
}

func (s *Server) registerDebugEvaluate() {
	tool := mcp.NewTool("debug_evaluate",
		mcp.WithDescription("Evaluate a simple dotted identifier (local, field chain, or static field of the current method's type) in the current stopped frame. Arguments are not matched by name. Arbitrary expressions are not supported."),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("Dotted identifier, e.g. `this.customer.name` or `counter`."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugEvaluate)
}
