package gns3

import (
	"context"
	"fmt"
)

// Projects

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.Get(ctx, "/v2/projects", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject creates a project that stays open when clients disconnect.
func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	body := map[string]interface{}{
		"name":       name,
		"auto_close": false,
	}
	var out Project
	if err := c.Post(ctx, "/v2/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.Delete(ctx, fmt.Sprintf("/v2/projects/%s", projectID))
}

// Nodes

func (c *Client) ListNodes(ctx context.Context, projectID string) ([]Node, error) {
	var out []Node
	if err := c.Get(ctx, fmt.Sprintf("/v2/projects/%s/nodes", projectID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetNode(ctx context.Context, projectID, nodeID string) (*Node, error) {
	var out Node
	if err := c.Get(ctx, fmt.Sprintf("/v2/projects/%s/nodes/%s", projectID, nodeID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNode creates a node from an explicit payload (node_type, compute_id,
// properties, ...).
func (c *Client) CreateNode(ctx context.Context, projectID string, payload map[string]interface{}) (*Node, error) {
	var out Node
	if err := c.Post(ctx, fmt.Sprintf("/v2/projects/%s/nodes", projectID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNodeFromTemplate instantiates templateID inside the project.
func (c *Client) CreateNodeFromTemplate(ctx context.Context, projectID, templateID string, payload map[string]interface{}) (*Node, error) {
	var out Node
	path := fmt.Sprintf("/v2/projects/%s/templates/%s", projectID, templateID)
	if err := c.Post(ctx, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNode applies payload to the node and returns the node as the server
// now reports it. The returned ID is authoritative.
func (c *Client) UpdateNode(ctx context.Context, projectID, nodeID string, payload map[string]interface{}) (*Node, error) {
	var out Node
	if err := c.Put(ctx, fmt.Sprintf("/v2/projects/%s/nodes/%s", projectID, nodeID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteNode(ctx context.Context, projectID, nodeID string) error {
	return c.Delete(ctx, fmt.Sprintf("/v2/projects/%s/nodes/%s", projectID, nodeID))
}

func (c *Client) StartNode(ctx context.Context, projectID, nodeID string) error {
	return c.Post(ctx, fmt.Sprintf("/v2/projects/%s/nodes/%s/start", projectID, nodeID), nil, nil)
}

func (c *Client) StopNode(ctx context.Context, projectID, nodeID string) error {
	return c.Post(ctx, fmt.Sprintf("/v2/projects/%s/nodes/%s/stop", projectID, nodeID), nil, nil)
}

// Links

func (c *Client) ListLinks(ctx context.Context, projectID string) ([]Link, error) {
	var out []Link
	if err := c.Get(ctx, fmt.Sprintf("/v2/projects/%s/links", projectID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateLink(ctx context.Context, projectID string, link Link) (*Link, error) {
	var out Link
	if err := c.Post(ctx, fmt.Sprintf("/v2/projects/%s/links", projectID), link, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Computes and templates

func (c *Client) ListComputes(ctx context.Context) ([]Compute, error) {
	var out []Compute
	if err := c.Get(ctx, "/v2/computes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := c.Get(ctx, "/v2/templates", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DuplicateTemplate(ctx context.Context, templateID string) (*Template, error) {
	var out Template
	if err := c.Post(ctx, fmt.Sprintf("/v2/templates/%s/duplicate", templateID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTemplate(ctx context.Context, templateID string, payload map[string]interface{}) error {
	return c.Put(ctx, fmt.Sprintf("/v2/templates/%s", templateID), payload, nil)
}

func (c *Client) DeleteTemplate(ctx context.Context, templateID string) error {
	return c.Delete(ctx, fmt.Sprintf("/v2/templates/%s", templateID))
}

// Version reads the server version.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var out VersionInfo
	if err := c.Get(ctx, "/v2/version", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
