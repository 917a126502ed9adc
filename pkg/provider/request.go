package provider

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/gns3cp/pkg/deploy"
	"github.com/newtron-network/gns3cp/pkg/device"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// DeployRequest deploys one app into a reservation and wires it to the
// listed subnet switches.
type DeployRequest struct {
	Reservation string                 `json:"reservation" yaml:"reservation" validate:"required"`
	App         device.Request         `json:"app" yaml:"app"`
	Subnets     []deploy.SubnetRequest `json:"subnets,omitempty" yaml:"subnets,omitempty" validate:"dive"`
}

// InfraRequest prepares a reservation's project and one switch per subnet.
type InfraRequest struct {
	Reservation  string       `json:"reservation" yaml:"reservation" validate:"required"`
	ActionID     string       `json:"action_id,omitempty" yaml:"action_id,omitempty"`
	KeysActionID string       `json:"keys_action_id,omitempty" yaml:"keys_action_id,omitempty"`
	Subnets      []SubnetSpec `json:"subnets,omitempty" yaml:"subnets,omitempty" validate:"dive"`
}

// SubnetSpec describes one subnet switch to create.
type SubnetSpec struct {
	ActionID string `json:"action_id,omitempty" yaml:"action_id,omitempty"`
	CIDR     string `json:"cidr,omitempty" yaml:"cidr,omitempty" validate:"omitempty,cidr"`
	Alias    string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// SwitchName is the alias, or "Subnet <cidr>" when no alias was given.
func (s SubnetSpec) SwitchName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return "Subnet " + s.CIDR
}

// DetailsRequest asks for the details of one deployed node.
type DetailsRequest struct {
	AppName string `json:"app_name" yaml:"app_name"`
	NodeID  string `json:"node_id" yaml:"node_id" validate:"required"`
}

// ConnectivityAction is one L2 change requested by the host.
type ConnectivityAction struct {
	ActionID string `json:"action_id" yaml:"action_id"`
	Type     string `json:"type" yaml:"type"`
}

// ConnectivityRequest carries the actions of an apply-connectivity call.
type ConnectivityRequest struct {
	Actions []ConnectivityAction `json:"actions" yaml:"actions"`
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate runs the struct tags of req and then any extra checks, and
// reports every failure in one *util.ValidationError.
func validate(req interface{}, extra func(b *util.ValidationBuilder)) error {
	b := &util.ValidationBuilder{}
	if err := structValidator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			b.AddErrorf("%s: failed %q", fieldPath(fe), fe.Tag())
		}
	}
	if extra != nil {
		extra(b)
	}
	return b.Build()
}

// fieldPath drops the root struct name: "DeployRequest.app.app_name" becomes
// "app.app_name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Validate checks the request and fills in missing action IDs.
func (r *DeployRequest) Validate() error {
	if err := validate(r, nil); err != nil {
		return err
	}
	if r.App.ActionID == "" {
		r.App.ActionID = uuid.NewString()
	}
	for i := range r.Subnets {
		if r.Subnets[i].ActionID == "" {
			r.Subnets[i].ActionID = uuid.NewString()
		}
	}
	return nil
}

// Validate checks the request and fills in missing action IDs.
func (r *InfraRequest) Validate() error {
	err := validate(r, func(b *util.ValidationBuilder) {
		seen := map[string]bool{}
		for i, s := range r.Subnets {
			b.Add(s.CIDR != "" || s.Alias != "", fmt.Sprintf("subnets[%d]: cidr or alias is required", i))
			name := s.SwitchName()
			b.Add(!seen[name], fmt.Sprintf("subnets[%d]: duplicate switch name %q", i, name))
			b.Add(name != r.Reservation, fmt.Sprintf("subnets[%d]: switch name %q is the management switch", i, name))
			seen[name] = true
		}
	})
	if err != nil {
		return err
	}
	if r.ActionID == "" {
		r.ActionID = uuid.NewString()
	}
	for i := range r.Subnets {
		if r.Subnets[i].ActionID == "" {
			r.Subnets[i].ActionID = uuid.NewString()
		}
	}
	return nil
}

// validateDetails checks every details request.
func validateDetails(reqs []DetailsRequest) error {
	return validate(struct {
		Items []DetailsRequest `json:"items" validate:"dive"`
	}{reqs}, nil)
}

// LoadFile decodes a YAML (or JSON) request file into v.
func LoadFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("provider: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("provider: parse %s: %w", path, err)
	}
	return nil
}
