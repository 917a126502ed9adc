package deploy

import (
	"encoding/json"
	"fmt"
)

// State is the furthest point a deployment reached.
type State int

const (
	StatePending State = iota
	StateCreated
	StateRenamed
	StateManagementWired
	StateSubnetsWired
	StateStarted
	StateDone
	StateDeleted
)

var stateNames = map[State]string{
	StatePending:         "pending",
	StateCreated:         "created",
	StateRenamed:         "renamed",
	StateManagementWired: "management-wired",
	StateSubnetsWired:    "subnets-wired",
	StateStarted:         "started",
	StateDone:            "done",
	StateDeleted:         "deleted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Kind classifies how a deployment ended.
type Kind int

const (
	// Succeeded: the node is wired and running.
	Succeeded Kind = iota
	// Compensated: wiring or start failed and the node was deleted.
	Compensated
	// Cancelled: the caller cancelled after the node was up; it was deleted.
	Cancelled
	// Failed: nothing was created, or compensation itself failed and the
	// node may be left behind.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Compensated:
		return "compensated"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// CancelledMessage is reported for a deployment cancelled after success.
const CancelledMessage = "deployment cancelled and deleted successfully"

// Attribute is a name/value pair reported back to the caller.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// SubnetResult reports one wired subnet, keyed by the caller's action ID.
type SubnetResult struct {
	ActionID  string `json:"action_id" yaml:"action_id"`
	SubnetID  string `json:"subnet_id" yaml:"subnet_id"`
	Interface string `json:"interface" yaml:"interface"`
}

// interfaceInfo is the JSON document carried in SubnetResult.Interface.
type interfaceInfo struct {
	InterfaceID string `json:"Interface ID"`
	MACAddress  string `json:"MAC Address"`
}

func interfaceJSON(portName string) string {
	b, _ := json.Marshal(interfaceInfo{InterfaceID: portName})
	return string(b)
}

// Result describes a deployed node.
type Result struct {
	ActionID   string         `json:"action_id" yaml:"action_id"`
	ProjectID  string         `json:"project_id" yaml:"project_id"`
	NodeID     string         `json:"node_id" yaml:"node_id"`
	NodeName   string         `json:"node_name" yaml:"node_name"`
	Address    string         `json:"address" yaml:"address"`
	Attributes []Attribute    `json:"attributes" yaml:"attributes"`
	Subnets    []SubnetResult `json:"subnets" yaml:"subnets"`
	Details    *Details       `json:"details,omitempty" yaml:"details,omitempty"`
}

// Outcome is what Deploy returns. Result is set for Succeeded, and for
// Cancelled as a record of what was removed.
type Outcome struct {
	Kind   Kind
	State  State
	Result *Result
	// Cause is the error that stopped the deployment.
	Cause error
	// CleanupErr is set when deleting the node after a failure or
	// cancellation also failed.
	CleanupErr error
}

// Err returns the error the caller should see: the original cause for
// failed and compensated deployments, nil otherwise.
func (o *Outcome) Err() error {
	switch o.Kind {
	case Compensated, Failed:
		return o.Cause
	}
	return nil
}

// Message is a one-line summary for operators.
func (o *Outcome) Message() string {
	switch o.Kind {
	case Succeeded:
		return "Deployment Completed Successfully"
	case Cancelled:
		return CancelledMessage
	}
	if o.CleanupErr != nil {
		return fmt.Sprintf("deployment failed at %s: %v (cleanup failed: %v)", o.State, o.Cause, o.CleanupErr)
	}
	return fmt.Sprintf("deployment failed at %s: %v", o.State, o.Cause)
}
