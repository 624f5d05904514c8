// Package oracle abstracts the external text-generation service agents use
// for scoring. The oracle is treated as unreliable: callers must degrade to
// their deterministic fallback rules on any error.
package oracle

import "context"

// Oracle produces a completion for a system framing plus user content.
// Implementations must respect ctx deadlines; callers bound every request.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Mock returns a canned response or error, standing in for the real service
// in tests.
type Mock struct {
	Response string
	Err      error
}

func (m Mock) Complete(_ context.Context, _, _ string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
