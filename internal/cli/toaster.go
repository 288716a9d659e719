package cli

import (
	"fmt"
	"os"

	"github.com/taskvault/taskvault/internal/controller"
)

// terminalToaster prints action outcomes to stderr so stdout stays
// clean for piped output.
type terminalToaster struct{}

func (terminalToaster) Toast(message string, kind controller.ToastKind) {
	switch kind {
	case controller.ToastError:
		fmt.Fprintf(os.Stderr, "✗ %s\n", message)
	default:
		fmt.Fprintf(os.Stderr, "✓ %s\n", message)
	}
}
