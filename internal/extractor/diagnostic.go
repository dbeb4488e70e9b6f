package extractor

import "fmt"

// DiagUnresolvedMethod marks a CXXMethodDecl outside any class whose owner
// could not be determined.
const DiagUnresolvedMethod = "unresolved_method"

// Diagnostic is a non-fatal observation made during extraction.
type Diagnostic struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", d.Code, d.NodeID, d.Name, d.Message)
}
