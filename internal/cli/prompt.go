package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForHeadline prompts the user interactively for a feed headline.
// Returns "" if the user enters nothing.
func PromptForHeadline() string {
	fmt.Print("Headline: ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read headline")
		return ""
	}

	return strings.TrimSpace(input)
}

// ReadPayload returns the payload argument, or all of r when the argument
// is "-". An empty argument means an empty JSON object.
func ReadPayload(arg string, r io.Reader) (string, error) {
	switch strings.TrimSpace(arg) {
	case "":
		return "{}", nil
	case "-":
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read payload: %w", err)
		}
		return string(data), nil
	default:
		return arg, nil
	}
}
