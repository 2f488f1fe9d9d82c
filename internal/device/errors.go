package device

import (
	"errors"
	"fmt"
)

// NotFoundError represents an error when a GATT resource is not found on the peripheral
type NotFoundError struct {
	Resource string   // "device", "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrTimeout      = errors.New("timeout")
	ErrUnsupported  = errors.New("unsupported")
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ErrorKind classifies failures of the link pipeline and command path.
type ErrorKind int

const (
	ScanError ErrorKind = iota + 1
	ConnectError
	DiscoveryError
	SubscribeError
	WriteError
	NotificationError
)

var errorKindNames = map[ErrorKind]string{
	ScanError:         "scan error",
	ConnectError:      "connect error",
	DiscoveryError:    "discovery error",
	SubscribeError:    "subscribe error",
	WriteError:        "write error",
	NotificationError: "notification error",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// StageError is the single reported failure of one pipeline stage or command operation.
type StageError struct {
	Kind  ErrorKind
	Stage string // state or operation name at the point of failure
	ID    string // peripheral identifier, empty for scan errors
	Err   error
}

func (e *StageError) Error() string {
	prefix := e.Kind.String()
	if e.ID != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.ID)
	}
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s during %s", prefix, e.Stage)
	}
	if e.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches another StageError by Kind, so errors.Is(err, device.ErrKind(device.WriteError)) works.
func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Stage == "" && t.ID == "" && t.Err == nil
}

// ErrKind returns a sentinel usable with errors.Is to test the kind of a StageError
func ErrKind(k ErrorKind) error {
	return &StageError{Kind: k}
}

// NewStageError wraps err as a failure of the given kind
func NewStageError(kind ErrorKind, stage, id string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, ID: id, Err: err}
}

// KindOf returns the ErrorKind of the first StageError in err's chain, or 0
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
