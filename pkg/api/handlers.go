package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/deploy"
	"github.com/newtron-network/gns3cp/pkg/provider"
)

// DeployResponse is the body of a finished deploy call.
type DeployResponse struct {
	Outcome string         `json:"outcome"`
	State   string         `json:"state"`
	Message string         `json:"message"`
	Result  *deploy.Result `json:"result,omitempty"`
}

// MessageResponse carries a one-line result.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetailsBody is the body of a details refresh.
type DetailsBody struct {
	Items []provider.DetailsRequest `json:"items"`
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return &APIError{Code: http.StatusBadRequest, Message: "invalid request body", Details: []string{err.Error()}}
	}
	return nil
}

func (s *Server) discover(c echo.Context) error {
	inv, err := s.provider.Discover(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (s *Server) deploy(c echo.Context) error {
	var req provider.DeployRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	// A caller that hangs up before the node is started gets it removed.
	cancelled := func() bool { return ctx.Err() != nil }

	out, err := s.provider.Deploy(ctx, &req, cancelled)
	if out == nil {
		return err
	}
	resp := DeployResponse{
		Outcome: out.Kind.String(),
		State:   out.State.String(),
		Message: out.Message(),
		Result:  out.Result,
	}
	if err != nil {
		ae := toAPIError(err)
		ae.Context = map[string]interface{}{"outcome": resp.Outcome, "state": resp.State}
		if out.CleanupErr != nil {
			ae.Details = append(ae.Details, "cleanup failed: "+out.CleanupErr.Error())
		}
		return ae
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteInstance(c echo.Context) error {
	msg, err := s.provider.DeleteInstance(c.Request().Context(), c.Param("reservation"), c.Param("node_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

func (s *Server) powerOn(c echo.Context) error {
	res, err := s.provider.PowerOn(c.Request().Context(), c.Param("reservation"), c.Param("node_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) powerOff(c echo.Context) error {
	res, err := s.provider.PowerOff(c.Request().Context(), c.Param("reservation"), c.Param("node_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) prepareInfra(c echo.Context) error {
	var req provider.InfraRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.provider.PrepareInfra(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) cleanupInfra(c echo.Context) error {
	res, err := s.provider.CleanupInfra(c.Request().Context(), c.Param("reservation"), c.QueryParam("action_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) applyConnectivity(c echo.Context) error {
	var req provider.ConnectivityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.provider.ApplyConnectivityChanges(&req))
}

func (s *Server) details(c echo.Context) error {
	var body DetailsBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := s.provider.VMDetails(c.Request().Context(), c.Param("reservation"), body.Items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) records(c echo.Context) error {
	recs, err := s.provider.Status(c.Request().Context(), c.Param("reservation"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}

// auditLog serves the audit trail. Query parameters: reservation,
// operation, failures=true, since (RFC 3339) and limit.
func (s *Server) auditLog(c echo.Context) error {
	f := audit.Filter{
		Reservation: c.QueryParam("reservation"),
		Operation:   c.QueryParam("operation"),
		FailureOnly: c.QueryParam("failures") == "true",
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return &APIError{Code: http.StatusBadRequest, Message: "invalid since", Details: []string{err.Error()}}
		}
		f.StartTime = t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return &APIError{Code: http.StatusBadRequest, Message: "invalid limit"}
		}
		f.Limit = n
	}
	events, err := s.provider.AuditLog(f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}
