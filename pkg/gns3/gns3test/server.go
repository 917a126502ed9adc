// Package gns3test provides an in-memory GNS3 server for tests.
//
// The fake implements the subset of the v2 REST API that gns3cp uses:
// projects, nodes, templates, computes, links, start/stop and version. It
// enforces the port-uniqueness rule on links (409 when an endpoint is already
// used), records every request, and supports fault injection and hooks to
// simulate concurrent deployments.
package gns3test

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/newtron-network/gns3cp/pkg/gns3"
)

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
}

type fault struct {
	method   string
	contains string
	status   int
	times    int // remaining; < 0 means forever
}

type project struct {
	gns3.Project
	nodes []*gns3.Node
	links []*gns3.Link
}

// Server is a fake GNS3 server. Create with NewServer, stop with Close.
type Server struct {
	*httptest.Server

	// SwitchPorts is the port count of nodes created from the built-in
	// ethernet switch template.
	SwitchPorts int

	// RenameChangesID makes node updates assign a fresh node ID.
	RenameChangesID bool

	// KeepProjectOnDelete makes DELETE /v2/projects/:id report success
	// without removing the project.
	KeepProjectOnDelete bool

	// BeforeLinkCreate runs before a link-create request is applied. It is
	// called without the server lock held, so it may call AddLink to
	// simulate a racing deployment.
	BeforeLinkCreate func(s *Server, projectID string, link gns3.Link)

	// ConsoleHost is reported as console_host on created nodes.
	ConsoleHost string

	mu        sync.Mutex
	projects  []*project
	templates []*gns3.Template
	computes  []gns3.Compute
	version   string
	requests  []Request
	faults    []*fault
	console   int
	macSeq    int
}

// NewServer starts a fake with the built-in cloud and ethernet switch
// templates and a single "local" compute.
func NewServer() *Server {
	s := &Server{
		SwitchPorts: 8,
		ConsoleHost: "127.0.0.1",
		version:     "2.2.46",
		console:     5000,
		templates: []*gns3.Template{
			{TemplateID: gns3.CloudTemplateID, Name: "Cloud", TemplateType: "cloud", Builtin: true},
			{TemplateID: gns3.EthernetSwitchTemplateID, Name: "Ethernet switch", TemplateType: "ethernet_switch", Builtin: true},
		},
		computes: []gns3.Compute{
			{ComputeID: "local", Name: "gns3-server", Host: "127.0.0.1", Connected: true},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.intercept)

	e.GET("/v2/version", s.getVersion)
	e.GET("/v2/computes", s.listComputes)

	e.GET("/v2/templates", s.listTemplates)
	e.POST("/v2/templates/:template_id/duplicate", s.duplicateTemplate)
	e.PUT("/v2/templates/:template_id", s.updateTemplate)
	e.DELETE("/v2/templates/:template_id", s.deleteTemplate)

	e.GET("/v2/projects", s.listProjects)
	e.POST("/v2/projects", s.createProject)
	e.DELETE("/v2/projects/:project_id", s.deleteProject)

	e.GET("/v2/projects/:project_id/nodes", s.listNodes)
	e.POST("/v2/projects/:project_id/nodes", s.createNode)
	e.POST("/v2/projects/:project_id/templates/:template_id", s.createNodeFromTemplate)
	e.GET("/v2/projects/:project_id/nodes/:node_id", s.getNode)
	e.PUT("/v2/projects/:project_id/nodes/:node_id", s.updateNode)
	e.DELETE("/v2/projects/:project_id/nodes/:node_id", s.deleteNode)
	e.POST("/v2/projects/:project_id/nodes/:node_id/start", s.startNode)
	e.POST("/v2/projects/:project_id/nodes/:node_id/stop", s.stopNode)

	e.GET("/v2/projects/:project_id/links", s.listLinks)
	e.POST("/v2/projects/:project_id/links", s.createLink)

	s.Server = httptest.NewServer(e)
	return s
}

// Client returns a gns3.Client pointed at the fake.
func (s *Server) Client() *gns3.Client {
	c, err := gns3.NewClient(s.URL)
	if err != nil {
		panic(err)
	}
	return c
}

// Fail makes the next `times` requests whose method matches and whose path
// contains `contains` fail with status. times < 0 fails forever.
func (s *Server) Fail(method, contains string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &fault{method: method, contains: contains, status: status, times: times})
}

// SetVersion changes the reported server version.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many recorded requests match method and contain the
// path fragment. Fragments ending in "$" must match the path suffix.
func (s *Server) Count(method, contains string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && pathMatches(r.Path, contains) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func pathMatches(path, pattern string) bool {
	if strings.HasSuffix(pattern, "$") {
		return strings.HasSuffix(path, strings.TrimSuffix(pattern, "$"))
	}
	return strings.Contains(path, pattern)
}

// AddCompute registers a compute.
func (s *Server) AddCompute(c gns3.Compute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computes = append(s.computes, c)
}

// AddTemplate registers a template and returns its ID.
func (s *Server) AddTemplate(t gns3.Template) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.TemplateID == "" {
		t.TemplateID = uuid.New().String()
	}
	s.templates = append(s.templates, &t)
	return t.TemplateID
}

// Templates returns a snapshot of all templates.
func (s *Server) Templates() []gns3.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gns3.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *t)
	}
	return out
}

// AddProject creates an empty project directly and returns its ID.
func (s *Server) AddProject(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &project{Project: gns3.Project{ProjectID: uuid.New().String(), Name: name, Status: "opened"}}
	s.projects = append(s.projects, p)
	return p.ProjectID
}

// AddSwitch places an ethernet switch with n ports in the project.
func (s *Server) AddSwitch(projectID, name string, n int) gns3.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		panic("gns3test: unknown project " + projectID)
	}
	node := s.newNode(projectID, name, "ethernet_switch", switchPorts(n))
	p.nodes = append(p.nodes, node)
	return *node
}

// AddNode places a plain node with the given adapter count in the project.
func (s *Server) AddNode(projectID, name string, adapters int) gns3.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		panic("gns3test: unknown project " + projectID)
	}
	node := s.newNode(projectID, name, "qemu", s.adapterPorts(adapters))
	p.nodes = append(p.nodes, node)
	return *node
}

// AddLink inserts a link directly, bypassing conflict checks.
func (s *Server) AddLink(projectID string, a, b gns3.LinkEndpoint) gns3.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		panic("gns3test: unknown project " + projectID)
	}
	l := &gns3.Link{LinkID: uuid.New().String(), Nodes: []gns3.LinkEndpoint{a, b}}
	p.links = append(p.links, l)
	return *l
}

// ProjectID returns the ID of the first project with the given name.
func (s *Server) ProjectID(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == name {
			return p.ProjectID, true
		}
	}
	return "", false
}

// Nodes returns a snapshot of the project's nodes.
func (s *Server) Nodes(projectID string) []gns3.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		return nil
	}
	out := make([]gns3.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, *n)
	}
	return out
}

// Node returns a snapshot of one node.
func (s *Server) Node(projectID, nodeID string) (gns3.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		return gns3.Node{}, false
	}
	n := p.node(nodeID)
	if n == nil {
		return gns3.Node{}, false
	}
	return *n, true
}

// Links returns a snapshot of the project's links.
func (s *Server) Links(projectID string) []gns3.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(projectID)
	if p == nil {
		return nil
	}
	out := make([]gns3.Link, 0, len(p.links))
	for _, l := range p.links {
		out = append(out, *l)
	}
	return out
}

// ---------------------------------------------------------------------------
// internals (caller holds s.mu)
// ---------------------------------------------------------------------------

func (s *Server) project(id string) *project {
	for _, p := range s.projects {
		if p.ProjectID == id {
			return p
		}
	}
	return nil
}

func (p *project) node(id string) *gns3.Node {
	for _, n := range p.nodes {
		if n.NodeID == id {
			return n
		}
	}
	return nil
}

func (s *Server) template(id string) *gns3.Template {
	for _, t := range s.templates {
		if t.TemplateID == id {
			return t
		}
	}
	return nil
}

func (s *Server) newNode(projectID, name, nodeType string, ports []gns3.Port) *gns3.Node {
	s.console++
	return &gns3.Node{
		NodeID:      uuid.New().String(),
		ProjectID:   projectID,
		Name:        name,
		NodeType:    nodeType,
		ComputeID:   "local",
		Status:      "stopped",
		Console:     s.console,
		ConsoleHost: s.ConsoleHost,
		ConsoleType: "telnet",
		Ports:       ports,
		Properties:  map[string]interface{}{},
	}
}

func switchPorts(n int) []gns3.Port {
	ports := make([]gns3.Port, 0, n)
	for i := 0; i < n; i++ {
		ports = append(ports, gns3.Port{
			Name:          fmt.Sprintf("Ethernet%d", i),
			ShortName:     fmt.Sprintf("e%d", i),
			PortNumber:    i,
			AdapterNumber: 0,
			LinkType:      "ethernet",
		})
	}
	return ports
}

func (s *Server) adapterPorts(n int) []gns3.Port {
	if n < 1 {
		n = 1
	}
	ports := make([]gns3.Port, 0, n)
	for i := 0; i < n; i++ {
		s.macSeq++
		ports = append(ports, gns3.Port{
			Name:          fmt.Sprintf("Ethernet%d", i),
			ShortName:     fmt.Sprintf("e%d", i),
			PortNumber:    0,
			AdapterNumber: i,
			LinkType:      "ethernet",
			MACAddress:    fmt.Sprintf("0c:aa:bb:00:%02x:%02x", s.macSeq>>8&0xff, s.macSeq&0xff),
		})
	}
	return ports
}

func (p *project) endpointUsed(ep gns3.LinkEndpoint) bool {
	for _, l := range p.links {
		for _, e := range l.Nodes {
			if e == ep {
				return true
			}
		}
	}
	return false
}

func hasPort(n *gns3.Node, adapter, port int) bool {
	for _, p := range n.Ports {
		if p.AdapterNumber == adapter && p.PortNumber == port {
			return true
		}
	}
	return false
}

func intProp(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
