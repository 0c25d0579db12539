package chat

import "fmt"

// UnexpectedMessageError reports a message shape this system cannot interpret:
// neither a user prompt nor model text. It fails the whole turn and nothing is
// persisted.
type UnexpectedMessageError struct {
	Role Role
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("unexpected message role %q", e.Role)
}
