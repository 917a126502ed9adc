package gns3test

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/newtron-network/gns3cp/pkg/gns3"
)

func apiError(c echo.Context, status int, format string, args ...interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"message": fmt.Sprintf(format, args...),
		"status":  status,
	})
}

// intercept records the request and applies any matching fault.
func (s *Server) intercept(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method
		path := c.Request().URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: method, Path: path})
		var status int
		for _, f := range s.faults {
			if f.times == 0 || f.method != method || !pathMatches(path, f.contains) {
				continue
			}
			if f.times > 0 {
				f.times--
			}
			status = f.status
			break
		}
		s.mu.Unlock()

		if status != 0 {
			return apiError(c, status, "injected fault for %s %s", method, path)
		}
		return next(c)
	}
}

func (s *Server) getVersion(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, gns3.VersionInfo{Version: s.version, Local: true})
}

func (s *Server) listComputes(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.computes)
}

// Templates

func (s *Server) listTemplates(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gns3.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *t)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) duplicateTemplate(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.template(c.Param("template_id"))
	if t == nil {
		return apiError(c, http.StatusNotFound, "template %s not found", c.Param("template_id"))
	}
	dup := *t
	dup.TemplateID = uuid.New().String()
	dup.Name = t.Name + "-copy"
	dup.Builtin = false
	s.templates = append(s.templates, &dup)
	return c.JSON(http.StatusCreated, dup)
}

func (s *Server) updateTemplate(c echo.Context) error {
	var body map[string]interface{}
	if err := decode(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.template(c.Param("template_id"))
	if t == nil {
		return apiError(c, http.StatusNotFound, "template %s not found", c.Param("template_id"))
	}
	if name, ok := body["name"].(string); ok {
		t.Name = name
	}
	if n, ok := intProp(body["adapters"]); ok {
		t.Adapters = n
	}
	return c.JSON(http.StatusOK, *t)
}

func (s *Server) deleteTemplate(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("template_id")
	for i, t := range s.templates {
		if t.TemplateID == id {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return apiError(c, http.StatusNotFound, "template %s not found", id)
}

// Projects

func (s *Server) listProjects(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gns3.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Project)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createProject(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(c, &body); err != nil || body.Name == "" {
		return apiError(c, http.StatusBadRequest, "project name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == body.Name {
			return apiError(c, http.StatusConflict, "project %q already exists", body.Name)
		}
	}
	p := &project{Project: gns3.Project{ProjectID: uuid.New().String(), Name: body.Name, Status: "opened"}}
	s.projects = append(s.projects, p)
	return c.JSON(http.StatusCreated, p.Project)
}

func (s *Server) deleteProject(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("project_id")
	for i, p := range s.projects {
		if p.ProjectID == id {
			if !s.KeepProjectOnDelete {
				s.projects = append(s.projects[:i], s.projects[i+1:]...)
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
	return apiError(c, http.StatusNotFound, "project %s not found", id)
}

// Nodes

func (s *Server) listNodes(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	out := make([]gns3.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, *n)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getNode(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	n := p.node(c.Param("node_id"))
	if n == nil {
		return apiError(c, http.StatusNotFound, "node %s not found", c.Param("node_id"))
	}
	return c.JSON(http.StatusOK, *n)
}

func (s *Server) createNode(c echo.Context) error {
	var body map[string]interface{}
	if err := decode(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	nodeType, _ := body["node_type"].(string)
	name, _ := body["name"].(string)
	if nodeType == "" || name == "" {
		return apiError(c, http.StatusBadRequest, "node_type and name are required")
	}
	props, _ := body["properties"].(map[string]interface{})

	adapters := 1
	if n, ok := intProp(props["adapters"]); ok {
		adapters = n
	}
	if nodeType == "dynamips" {
		for k, v := range props {
			if strings.HasPrefix(k, "slot") && v != "" {
				adapters++
			}
		}
	}

	n := s.newNode(p.ProjectID, name, nodeType, s.adapterPorts(adapters))
	if compute, ok := body["compute_id"].(string); ok {
		n.ComputeID = compute
	}
	for k, v := range props {
		n.Properties[k] = v
	}
	p.nodes = append(p.nodes, n)
	return c.JSON(http.StatusCreated, *n)
}

func (s *Server) createNodeFromTemplate(c echo.Context) error {
	var body map[string]interface{}
	if err := decode(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	t := s.template(c.Param("template_id"))
	if t == nil {
		return apiError(c, http.StatusNotFound, "template %s not found", c.Param("template_id"))
	}

	name := t.Name
	if v, ok := body["name"].(string); ok && v != "" {
		name = v
	}

	var n *gns3.Node
	switch t.TemplateType {
	case "ethernet_switch":
		n = s.newNode(p.ProjectID, name, "ethernet_switch", switchPorts(s.SwitchPorts))
	case "cloud":
		n = s.newNode(p.ProjectID, name, "cloud", []gns3.Port{{Name: "eth0", PortNumber: 0, AdapterNumber: 0}})
	default:
		nodeType := t.TemplateType
		if nodeType == "" {
			nodeType = "qemu"
		}
		n = s.newNode(p.ProjectID, name, nodeType, s.adapterPorts(t.Adapters))
	}
	if compute, ok := body["compute_id"].(string); ok {
		n.ComputeID = compute
	}
	p.nodes = append(p.nodes, n)
	return c.JSON(http.StatusCreated, *n)
}

func (s *Server) updateNode(c echo.Context) error {
	var body map[string]interface{}
	if err := decode(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	n := p.node(c.Param("node_id"))
	if n == nil {
		return apiError(c, http.StatusNotFound, "node %s not found", c.Param("node_id"))
	}
	if name, ok := body["name"].(string); ok {
		n.Name = name
	}
	if s.RenameChangesID {
		oldID := n.NodeID
		n.NodeID = uuid.New().String()
		for _, l := range p.links {
			for i := range l.Nodes {
				if l.Nodes[i].NodeID == oldID {
					l.Nodes[i].NodeID = n.NodeID
				}
			}
		}
	}
	return c.JSON(http.StatusOK, *n)
}

func (s *Server) deleteNode(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	id := c.Param("node_id")
	for i, n := range p.nodes {
		if n.NodeID != id {
			continue
		}
		p.nodes = append(p.nodes[:i], p.nodes[i+1:]...)
		kept := p.links[:0]
		for _, l := range p.links {
			if !l.Touches(id) {
				kept = append(kept, l)
			}
		}
		p.links = kept
		return c.NoContent(http.StatusNoContent)
	}
	return apiError(c, http.StatusNotFound, "node %s not found", id)
}

func (s *Server) setStatus(c echo.Context, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	n := p.node(c.Param("node_id"))
	if n == nil {
		return apiError(c, http.StatusNotFound, "node %s not found", c.Param("node_id"))
	}
	n.Status = status
	return c.JSON(http.StatusOK, *n)
}

func (s *Server) startNode(c echo.Context) error { return s.setStatus(c, "started") }
func (s *Server) stopNode(c echo.Context) error  { return s.setStatus(c, "stopped") }

// Links

func (s *Server) listLinks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(c.Param("project_id"))
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", c.Param("project_id"))
	}
	out := make([]gns3.Link, 0, len(p.links))
	for _, l := range p.links {
		out = append(out, *l)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createLink(c echo.Context) error {
	var body gns3.Link
	if err := decode(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body: %v", err)
	}
	projectID := c.Param("project_id")

	if hook := s.BeforeLinkCreate; hook != nil {
		hook(s, projectID, body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		return apiError(c, http.StatusNotFound, "project %s not found", projectID)
	}
	if len(body.Nodes) != 2 {
		return apiError(c, http.StatusBadRequest, "a link needs exactly two endpoints")
	}
	for _, ep := range body.Nodes {
		n := p.node(ep.NodeID)
		if n == nil {
			return apiError(c, http.StatusNotFound, "node %s not found", ep.NodeID)
		}
		if !hasPort(n, ep.AdapterNumber, ep.PortNumber) {
			return apiError(c, http.StatusBadRequest, "node %s has no port %d/%d", n.Name, ep.AdapterNumber, ep.PortNumber)
		}
		if p.endpointUsed(ep) {
			return apiError(c, http.StatusConflict, "port %d/%d of %s is already used", ep.AdapterNumber, ep.PortNumber, n.Name)
		}
	}
	l := &gns3.Link{LinkID: uuid.New().String(), Nodes: body.Nodes}
	p.links = append(p.links, l)
	return c.JSON(http.StatusCreated, *l)
}

// decode reads the JSON body only; echo's Bind would also copy path
// parameters into map destinations.
func decode(c echo.Context, v interface{}) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	return c.Echo().JSONSerializer.Deserialize(c, v)
}
