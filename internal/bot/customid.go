package bot

import "strings"

// Component custom IDs are "<kind>:<arg>[:<arg>...]"
const (
	idApprove      = "approve"
	idDeny         = "deny"
	idPickProduct  = "pick"
	idApproveNote  = "note"
	idDenyReason   = "denyr"
	idSubmitButton = "submit"
	idSubmitModal  = "review"
	idEditModal    = "edit"
)

// Text input IDs inside modals
const (
	inputNote      = "note"
	inputReason    = "reason"
	inputText      = "text"
	inputRating    = "rating"
	inputAnonymous = "anonymous"
)

func customID(kind string, args ...string) string {
	return strings.Join(append([]string{kind}, args...), ":")
}

// parseCustomID splits a custom ID into its kind and arguments. Continuation
// tokens contain no colons, so they survive as a single argument.
func parseCustomID(id string) (string, []string) {
	parts := strings.Split(id, ":")
	return parts[0], parts[1:]
}
