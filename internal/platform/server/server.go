package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/hr"
	"github.com/valinor-ai/hrgate/internal/platform/middleware"
	"github.com/valinor-ai/hrgate/internal/platform/telemetry"
)

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	Pool               *pgxpool.Pool
	Auth               *auth.TokenService
	AuthHandler        *auth.Handler
	Composer           *access.Composer
	HR                 *hr.Handlers
	AuditHandler       *audit.Handler
	Metrics            *telemetry.Metrics
	DevMode            bool
	DevIdentity        *auth.Identity
	TrustProxy         bool
	Logger             *slog.Logger
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer   *http.Server
	protectedMux *http.ServeMux
	pool         *pgxpool.Pool
	handler      http.Handler
}

func New(addr string, deps Dependencies) *Server {
	protectedMux := http.NewServeMux()

	var protectedHandler http.Handler = protectedMux
	protectedHandler = middleware.ClientContext(deps.TrustProxy)(protectedHandler)
	if deps.Auth != nil {
		if deps.DevMode && deps.DevIdentity != nil {
			protectedHandler = auth.MiddlewareWithDevMode(deps.Auth, deps.DevIdentity)(protectedHandler)
		} else {
			protectedHandler = auth.Middleware(deps.Auth)(protectedHandler)
		}
	}

	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		protectedMux: protectedMux,
		pool:         deps.Pool,
	}

	// Public routes
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)
	if deps.Metrics != nil {
		topMux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterRoutes(topMux)
		if deps.DevMode {
			deps.AuthHandler.RegisterDevRoutes(topMux)
		}
	}

	if deps.Composer != nil {
		guard := func(pattern, route string, h http.HandlerFunc) {
			protectedMux.Handle(pattern, access.Require(deps.Composer, route)(h))
		}

		if h := deps.HR; h != nil {
			guard("GET /api/v1/departments", access.RouteViewDepartments, h.Departments.HandleList)
			guard("POST /api/v1/departments", access.RouteCreateDepartment, h.Departments.HandleCreate)
			guard("GET /api/v1/departments/{id}", access.RouteViewDepartment, h.Departments.HandleGet)
			guard("PUT /api/v1/departments/{id}", access.RouteUpdateDepartment, h.Departments.HandleUpdate)
			guard("DELETE /api/v1/departments/{id}", access.RouteDeleteDepartment, h.Departments.HandleDelete)

			guard("GET /api/v1/documents", access.RouteViewAllDocuments, h.Documents.HandleList)
			guard("POST /api/v1/documents", access.RouteCreateDocument, h.Documents.HandleCreate)
			guard("GET /api/v1/documents/{id}", access.RouteViewDocument, h.Documents.HandleGet)
			guard("PUT /api/v1/documents/{id}", access.RouteUpdateDocument, h.Documents.HandleUpdate)
			guard("DELETE /api/v1/documents/{id}", access.RouteDeleteDocument, h.Documents.HandleDelete)
			guard("GET /api/v1/documents/{id}/permissions", access.RouteListDocumentGrants, h.Documents.HandleListGrants)
			guard("POST /api/v1/documents/{id}/permissions", access.RouteGrantDocument, h.Documents.HandleGrant)
			guard("DELETE /api/v1/documents/{id}/permissions/{userID}", access.RouteRevokeDocument, h.Documents.HandleRevoke)

			guard("GET /api/v1/profiles", access.RouteViewAllProfiles, h.Profiles.HandleList)
			guard("POST /api/v1/profiles", access.RouteCreateProfile, h.Profiles.HandleCreate)
			guard("GET /api/v1/profiles/{id}", access.RouteViewProfile, h.Profiles.HandleGet)
			guard("PUT /api/v1/profiles/{id}", access.RouteUpdateProfile, h.Profiles.HandleUpdate)
			guard("DELETE /api/v1/profiles/{id}", access.RouteDeleteProfile, h.Profiles.HandleDelete)

			guard("GET /api/v1/salaries", access.RouteViewAllSalaries, h.Salaries.HandleList)
			guard("POST /api/v1/salaries", access.RouteCreateSalary, h.Salaries.HandleCreate)
			guard("GET /api/v1/salaries/{id}", access.RouteViewSalary, h.Salaries.HandleGet)
			guard("PUT /api/v1/salaries/{id}", access.RouteUpdateSalary, h.Salaries.HandleUpdate)
			guard("DELETE /api/v1/salaries/{id}", access.RouteDeleteSalary, h.Salaries.HandleDelete)

			guard("GET /api/v1/leave-requests", access.RouteViewAllLeaveRequests, h.Leave.HandleList)
			guard("POST /api/v1/leave-requests", access.RouteCreateLeaveRequest, h.Leave.HandleCreate)
			guard("GET /api/v1/leave-requests/{id}", access.RouteViewLeaveRequest, h.Leave.HandleGet)
			guard("POST /api/v1/leave-requests/{id}/approve", access.RouteApproveLeave, h.Leave.HandleApprove)
			guard("DELETE /api/v1/leave-requests/{id}", access.RouteDeleteLeaveRequest, h.Leave.HandleDelete)

			guard("GET /api/v1/users", access.RouteGetAllUsers, h.Users.HandleList)
			guard("POST /api/v1/users", access.RouteCreateUser, h.Users.HandleCreate)
			guard("GET /api/v1/users/{id}", access.RouteGetUser, h.Users.HandleGet)
			guard("PUT /api/v1/users/{id}", access.RouteUpdateUser, h.Users.HandleUpdate)
			guard("DELETE /api/v1/users/{id}", access.RouteDeleteUser, h.Users.HandleDelete)

			guard("GET /api/v1/roles", access.RouteViewRoles, h.Roles.HandleList)
			guard("GET /api/v1/users/{id}/roles", access.RouteViewUserRoles, h.Roles.HandleListForUser)
			guard("POST /api/v1/users/{id}/roles", access.RouteAssignRole, h.Roles.HandleAssign)
			guard("DELETE /api/v1/users/{id}/roles", access.RouteRemoveRole, h.Roles.HandleRemove)

			guard("POST /api/v1/role-requests", access.RouteRequestRoleChange, h.RoleChanges.HandleRequest)
			guard("GET /api/v1/role-requests/pending", access.RouteViewPendingRoleReq, h.RoleChanges.HandleListPending)
			guard("POST /api/v1/role-requests/{id}/approve", access.RouteApproveRoleChange, h.RoleChanges.HandleApprove)
			guard("POST /api/v1/role-requests/{id}/reject", access.RouteRejectRoleChange, h.RoleChanges.HandleReject)

			guard("GET /api/v1/rules", access.RouteViewRules, h.Rules.HandleList)
			guard("POST /api/v1/rules", access.RouteCreateRule, h.Rules.HandleCreate)
			guard("DELETE /api/v1/rules/{id}", access.RouteDeleteRule, h.Rules.HandleDelete)
		}

		if deps.AuditHandler != nil {
			guard("GET /api/v1/audit/events", access.RouteViewAuditEvents, deps.AuditHandler.HandleListEvents)
			guard("GET /api/v1/audit/stream", access.RouteStreamAuditEvents, deps.AuditHandler.HandleStream)
		}
	}

	// All other routes go through auth middleware
	topMux.Handle("/", protectedHandler)

	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if deps.Metrics != nil {
		handler = deps.Metrics.Middleware(handler)
	}
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProtectedMux returns the mux for authenticated routes.
func (s *Server) ProtectedMux() *http.ServeMux {
	return s.protectedMux
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not connected",
		})
		return
	}

	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
