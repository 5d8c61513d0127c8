package chat

import "fmt"

// ConversationID derives the canonical conversation key for a pair of users.
// The smaller id always comes first, so both participants compute the same
// key regardless of who initiates.
func ConversationID(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("conv_%d_%d", a, b)
}
