package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptContinue asks a yes/no question on stdin. Non-interactive sessions
// answer yes.
func PromptContinue(message string) bool {
	if !IsInteractive() {
		return true
	}
	return promptContinue(os.Stdin, os.Stdout, message)
}

func promptContinue(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s [Y/n]: ", message)

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(response)

	return response == "" || response == "y" || response == "Y"
}
