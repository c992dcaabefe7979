package host

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with the host.
const (
	TypeInitialize     = "Initialize"
	TypeConfigurations = "ProjectInformation"
	TypeReferences     = "References"
	TypeSources        = "Sources"
	TypeDiagnostics    = "Diagnostics"
	TypeError          = "Error"
)

// Message is the envelope of every frame.
type Message struct {
	HostID      string          `json:"hostId"`
	MessageType string          `json:"messageType"`
	ContextID   int             `json:"contextId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// InitializePayload asks the host to load a project.
type InitializePayload struct {
	ProjectFolder string `json:"projectFolder"`
}

// Configuration is one build configuration of a project.
type Configuration struct {
	Name       string   `json:"name"`
	Frameworks []string `json:"frameworks,omitempty"`
}

// ConfigurationsPayload describes a project.
type ConfigurationsPayload struct {
	Name           string            `json:"name"`
	Configurations []Configuration   `json:"configurations"`
	Commands       map[string]string `json:"commands"`
}

// DependencyItem names a dependency of a package.
type DependencyItem struct {
	Name string `json:"name"`
}

// DependencyDescription is one package of the dependency graph.
type DependencyDescription struct {
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	Path         string           `json:"path"`
	Unresolved   bool             `json:"unresolved"`
	Dependencies []DependencyItem `json:"dependencies"`
}

// ReferencesPayload is the resolved dependency graph of a project.
type ReferencesPayload struct {
	RootDependency string                           `json:"rootDependency"`
	Dependencies   map[string]DependencyDescription `json:"dependencies"`
	FileReferences []string                         `json:"fileReferences"`
}

// SourcesPayload lists the source files of a project.
type SourcesPayload struct {
	Files          []string          `json:"files"`
	GeneratedFiles map[string]string `json:"generatedFiles"`
}

// DiagnosticsPayload carries build diagnostics in their text form.
type DiagnosticsPayload struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ErrorPayload reports a fatal host side error.
type ErrorPayload struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Event is a decoded message from the host. Payload holds the typed
// payload for Type: ConfigurationsPayload, ReferencesPayload,
// SourcesPayload, DiagnosticsPayload or ErrorPayload.
type Event struct {
	ContextID int
	Type      string
	Payload   any
}

// DecodeEvent decodes a message into an event. Unknown message types fail
// with a *ProtocolError.
func DecodeEvent(msg Message) (Event, error) {
	var (
		payload any
		err     error
	)
	switch msg.MessageType {
	case TypeConfigurations:
		payload, err = decodePayload[ConfigurationsPayload](msg.Payload)
	case TypeReferences:
		payload, err = decodePayload[ReferencesPayload](msg.Payload)
	case TypeSources:
		payload, err = decodePayload[SourcesPayload](msg.Payload)
	case TypeDiagnostics:
		payload, err = decodePayload[DiagnosticsPayload](msg.Payload)
	case TypeError:
		payload, err = decodePayload[ErrorPayload](msg.Payload)
	default:
		err = fmt.Errorf("unknown message type")
	}
	if err != nil {
		return Event{}, &ProtocolError{MessageType: msg.MessageType, Err: err}
	}
	return Event{ContextID: msg.ContextID, Type: msg.MessageType, Payload: payload}, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
