package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"emgpipe/internal/bridge"
	"emgpipe/internal/daemon"
	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
	"emgpipe/internal/pipeline"
	"emgpipe/internal/tracker"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	stopRequests chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	stopRequests := make(chan struct{}, 1)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, stopRequests: stopRequests}
	if err := rpcServer.RegisterName("Emgpipe", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:         path,
		daemon:       d,
		logger:       logger,
		listener:     listener,
		rpcServer:    rpcServer,
		stopRequests: stopRequests,
		ctx:          serverCtx,
		cancel:       cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// StopRequests signals once per Stop RPC so the daemon process can exit.
func (s *Server) StopRequests() <-chan struct{} {
	return s.stopRequests
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon       *daemon.Daemon
	logger       *slog.Logger
	ctx          context.Context
	stopRequests chan struct{}
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	*resp = StatusFromDaemon(status)
	return nil
}

func (s *service) Steps(_ StepsRequest, resp *StepsResponse) error {
	state, err := s.daemon.Steps(s.ctx)
	if err != nil {
		return err
	}
	resp.Workfolder = state.Root
	resp.Steps = StepViews(state.Steps)
	resp.LastCompleted = state.LastCompleted
	return nil
}

func (s *service) Reconcile(_ ReconcileRequest, resp *ReconcileResponse) error {
	s.log().Debug("reconcile requested")
	snapshot, err := s.daemon.Reconcile(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = snapshot.Total
	resp.Pending = snapshot.Pending
	resp.Edited = snapshot.Edited
	resp.Exported = snapshot.Exported
	resp.Progress = snapshot.Progress()
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	s.log().Debug("export requested", logging.Int("base_count", len(req.Bases)))
	report, err := s.daemon.Export(s.ctx, req.Bases)
	if err != nil {
		return err
	}
	*resp = ExportFromReport(report)
	s.log().Info("export finished via IPC",
		logging.String(logging.FieldEventType, "export"),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed))
	return nil
}

func (s *service) ExportGroup(req ExportGroupRequest, resp *ExportGroupResponse) error {
	s.log().Debug("multi-grid export requested", logging.String("group", req.Label))
	output, err := s.daemon.ExportGroup(s.ctx, req.Label, req.Bases)
	if err != nil {
		return err
	}
	resp.Output = output
	return nil
}

func (s *service) SkipGate(req SkipGateRequest, resp *SkipGateResponse) error {
	s.log().Debug("gate skip requested", logging.String("gate", req.Gate))
	state, err := s.daemon.SkipGate(s.ctx, req.Gate, req.Reason)
	if err != nil {
		return err
	}
	resp.Steps = StepViews(state.Steps)
	s.log().Info("quality gate skipped via IPC",
		logging.String(logging.FieldEventType, "gate_skip"),
		logging.String("gate", req.Gate))
	return nil
}

func (s *service) Journal(req JournalRequest, resp *JournalResponse) error {
	entries, err := s.daemon.JournalEntries(s.ctx, req.OnlyFailed, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = JournalViews(entries)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	select {
	case s.stopRequests <- struct{}{}:
	default:
	}
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

// StatusFromDaemon flattens daemon status into the wire DTO. The CLI reuses
// it when it runs against an in-process daemon instead of the socket.
func StatusFromDaemon(status daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		Workfolder:   status.Workfolder,
		LockPath:     status.LockPath,
		JournalPath:  status.JournalPath,
		StartedAt:    status.StartedAt,
		Total:        status.Snapshot.Total,
		Pending:      status.Snapshot.Pending,
		Edited:       status.Snapshot.Edited,
		Exported:     status.Snapshot.Exported,
		Progress:     status.Snapshot.Progress(),
		LastError:    status.Snapshot.LastError,
		JournalOK:    status.Journal.OK,
		JournalFails: status.Journal.Failed,
	}
	resp.Units = unitViews(status.Snapshot.Units)
	return resp
}

func unitViews(units []tracker.UnitStatus) []UnitView {
	views := make([]UnitView, 0, len(units))
	for _, u := range units {
		views = append(views, UnitView{
			BaseName: u.BaseName,
			Stage:    string(u.Stage),
			InFlight: u.InFlight,
		})
	}
	return views
}

// ExportFromReport flattens a batch export report into the wire DTO.
func ExportFromReport(report bridge.BatchReport) ExportResponse {
	resp := ExportResponse{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Results:   make([]ExportResult, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		out := ExportResult{BaseName: r.BaseName, Output: r.Output}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}
	return resp
}

// StepViews flattens evaluated steps into wire DTOs.
func StepViews(steps []pipeline.StepState) []StepView {
	views := make([]StepView, 0, len(steps))
	for _, st := range steps {
		views = append(views, StepView{
			Ordinal:   st.Ordinal,
			Slug:      st.Slug,
			Name:      st.Name,
			Status:    string(st.Status),
			FileCount: st.FileCount,
			Warning:   st.Warning,
			Skippable: st.Skippable,
		})
	}
	return views
}

// JournalViews flattens journal rows into wire DTOs.
func JournalViews(entries []journal.Entry) []JournalEntryView {
	views := make([]JournalEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, JournalEntryView{
			ID:         e.ID,
			CreatedAt:  e.CreatedAt,
			BaseName:   e.BaseName,
			Direction:  e.Direction,
			Outcome:    e.Outcome,
			DurationMS: e.Duration.Milliseconds(),
			ErrorText:  e.ErrorText,
		})
	}
	return views
}
